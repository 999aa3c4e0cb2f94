// Package api is a client for the dnet cluster HTTP API.
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/telemetry"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultRateLimit = rate.Limit(10)
	defaultBurstSize = 5
	maxErrorBody     = 512
)

// Endpoint paths.
const (
	PathHealth          = "/health"
	PathModels          = "/v1/models"
	PathTopology        = "/v1/topology"
	PathDevices         = "/v1/devices"
	PathLoadModel       = "/v1/load_model"
	PathUnloadModel     = "/v1/unload_model"
	PathPrepareTopology = "/v1/prepare_topology"
	PathPrepareManual   = "/v1/prepare_topology_manual"
	PathChatCompletions = "/v1/chat/completions"
)

const (
	acceptJSON   = "application/json"
	acceptStream = "text/event-stream"
	maxSSELine   = 1024 * 1024
)

// Options configures a Client. Zero values take defaults.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Breaker           *BreakerConfig
	Metrics           *telemetry.Metrics
	HTTPClient        *http.Client
}

// Client talks to one dnet API server. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	streamHTTP  *http.Client
	rateLimiter *rate.Limiter
	breaker     *Breaker
	metrics     *telemetry.Metrics
}

// NewClient builds a client for baseURL (http://host:port).
func NewClient(baseURL string, opts Options) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := defaultRateLimit
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	bc := DefaultBreakerConfig()
	if opts.Breaker != nil {
		bc = *opts.Breaker
	}

	// Streams run as long as the model generates; the context ends them.
	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		streamHTTP:  &http.Client{Transport: httpClient.Transport},
		rateLimiter: rate.NewLimiter(limit, defaultBurstSize),
		breaker:     NewBreaker(bc),
		metrics:     opts.Metrics,
	}
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// BreakerState reports whether requests are currently being suppressed.
func (c *Client) BreakerState() CircuitState { return c.breaker.State() }

// Health reports whether the server answers /health with a 2xx.
func (c *Client) Health(ctx context.Context) (bool, error) {
	var healthy bool
	err := c.do(ctx, "health", http.MethodGet, c.baseURL+PathHealth, nil, func(resp *http.Response) error {
		healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
		return nil
	})
	return healthy, err
}

// Models lists the models the server knows about.
func (c *Client) Models(ctx context.Context) ([]ModelInfo, error) {
	var out listModelsResponse
	if err := c.getJSON(ctx, "models", PathModels, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Topology returns the current topology, or nil when none is prepared (the
// server answers 400).
func (c *Client) Topology(ctx context.Context) (*TopologyInfo, error) {
	var topo *TopologyInfo
	err := c.do(ctx, "topology", http.MethodGet, c.baseURL+PathTopology, nil, func(resp *http.Response) error {
		switch {
		case resp.StatusCode == http.StatusBadRequest:
			return nil
		case !success(resp):
			return statusError(resp, "get topology")
		}
		topo = &TopologyInfo{}
		return decode(resp, topo)
	})
	if err != nil {
		return nil, err
	}
	return topo, nil
}

// Devices returns the discovered devices keyed by instance name.
func (c *Client) Devices(ctx context.Context) (map[string]DeviceProperties, error) {
	var out devicesResponse
	if err := c.getJSON(ctx, "devices", PathDevices, &out); err != nil {
		return nil, err
	}
	if out.Devices == nil {
		out.Devices = map[string]DeviceProperties{}
	}
	return out.Devices, nil
}

// PrepareTopology asks the server to plan layer assignments for a model.
func (c *Client) PrepareTopology(ctx context.Context, req PrepareTopologyRequest) (*TopologyInfo, error) {
	var topo TopologyInfo
	if err := c.postJSON(ctx, "prepare_topology", PathPrepareTopology, req, &topo); err != nil {
		return nil, err
	}
	return &topo, nil
}

// LoadModel loads model onto the prepared topology. An empty model sends
// an empty body and lets the server use the prepared one.
func (c *Client) LoadModel(ctx context.Context, model string) (*LoadModelResponse, error) {
	body := map[string]string{}
	if model != "" {
		body["model"] = model
	}
	var out LoadModelResponse
	if err := c.postJSON(ctx, "load_model", PathLoadModel, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnloadModel unloads the current model from every shard.
func (c *Client) UnloadModel(ctx context.Context) error {
	return c.do(ctx, "unload_model", http.MethodPost, c.baseURL+PathUnloadModel, nil, func(resp *http.Response) error {
		if !success(resp) {
			return statusError(resp, "unload model")
		}
		return nil
	})
}

// ShardHealth queries a shard's own health endpoint.
func (c *Client) ShardHealth(ctx context.Context, d DeviceProperties) (*ShardHealth, error) {
	var out ShardHealth
	err := c.do(ctx, "shard_health", http.MethodGet, "http://"+d.Addr()+PathHealth, nil, func(resp *http.Response) error {
		if !success(resp) {
			return statusError(resp, "shard health")
		}
		return decode(resp, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PrepareTopologyManual submits a hand-made layer assignment.
func (c *Client) PrepareTopologyManual(ctx context.Context, req ManualTopologyRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "marshal manual topology")
	}
	return c.do(ctx, "prepare_topology_manual", http.MethodPost, c.baseURL+PathPrepareManual, body, func(resp *http.Response) error {
		if !success(resp) {
			return statusError(resp, "submit topology")
		}
		return nil
	})
}

// ChatStream posts a streaming chat completion and calls onDelta with each
// piece of generated text. It returns when the server finishes the stream
// or ctx is cancelled.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string)) error {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "marshal chat request")
	}
	return c.send(ctx, c.streamHTTP, acceptStream, "chat", http.MethodPost, c.baseURL+PathChatCompletions, body, func(resp *http.Response) error {
		if !success(resp) {
			return statusError(resp, "chat")
		}
		return readChatStream(ctx, resp.Body, onDelta)
	})
}

// readChatStream parses server-sent events. Lines that are not data or do
// not decode are skipped; [DONE] or a finish reason ends the stream.
func readChatStream(ctx context.Context, r io.Reader, onDelta func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil || len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			onDelta(choice.Delta.Content)
		}
		if choice.FinishReason != nil {
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeAPIRequest, "read chat stream")
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out any) error {
	return c.do(ctx, endpoint, http.MethodGet, c.baseURL+path, nil, func(resp *http.Response) error {
		if !success(resp) {
			return statusError(resp, "get "+endpoint)
		}
		return decode(resp, out)
	})
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "marshal "+endpoint+" request")
	}
	return c.do(ctx, endpoint, http.MethodPost, c.baseURL+path, body, func(resp *http.Response) error {
		if !success(resp) {
			return statusError(resp, endpoint)
		}
		return decode(resp, out)
	})
}

// do sends one request through the rate limiter and circuit breaker and
// hands the response to handle. Transport failures are API_REQUEST.
func (c *Client) do(ctx context.Context, endpoint, method, url string, body []byte, handle func(*http.Response) error) error {
	return c.send(ctx, c.httpClient, acceptJSON, endpoint, method, url, body, handle)
}

func (c *Client) send(ctx context.Context, hc *http.Client, accept, endpoint, method, url string, body []byte, handle func(*http.Response) error) error {
	start := time.Now()
	err := c.breaker.Call(func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return errors.Wrap(err, errors.ErrCodeAPIRequest, "rate limit wait").WithContext("endpoint", endpoint)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "build request").WithContext("endpoint", endpoint)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", accept)

		resp, err := hc.Do(req)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeAPIRequest, method+" "+url).
				WithContext("endpoint", endpoint).
				WithRetryable(true).
				WithUserMessage("could not reach the dnet API").
				WithRemediation("check that the dnet API is running and api.host/api.port are correct")
		}
		defer resp.Body.Close()
		return handle(resp)
	})
	c.metrics.APIRequest(endpoint, time.Since(start), err)
	return err
}

func success(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func statusError(resp *http.Response, what string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return errors.New(errors.ErrCodeAPIStatus, fmt.Sprintf("%s failed (%d): %s", what, resp.StatusCode, strings.TrimSpace(string(body)))).
		WithContext("status", resp.StatusCode)
}

func decode(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeAPIStatus, "decode response").WithContext("url", resp.Request.URL.String())
	}
	return nil
}
