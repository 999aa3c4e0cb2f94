package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/dnetui/pkg/errors"
	"github.com/odvcencio/dnetui/pkg/telemetry"
)

const topologyJSON = `{
	"model": "Qwen/Qwen3-4B-MLX-4bit",
	"num_layers": 36,
	"devices": [
		{"is_manager": true, "instance": "shard-01", "server_port": 8081, "shard_port": 50051, "local_ip": "192.168.1.10"},
		{"instance": "shard-02", "server_port": 8082, "shard_port": 50052, "local_ip": "192.168.1.11",
		 "thunderbolt": {"ip_addr": "169.254.1.2", "instances": [[{"uuid": "u1", "name": "bus_2", "device": "Mac15,12"}, [{"uuid": "u2", "name": "Macbook Air", "device": "Mac14,2"}]]]}}
	],
	"assignments": [
		{"instance": "shard-01", "layers": [[0,1,2],[18,19]], "next_instance": "shard-02", "window_size": 3, "residency_size": 3},
		{"instance": "shard-02", "layers": [[3,4]], "next_instance": "shard-01", "window_size": 2, "residency_size": 2}
	],
	"kv_bits": "8bit"
}`

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", Options{RequestsPerSecond: 1000}), srv
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("  http://127.0.0.1:8080/ ", Options{})

	assert.Equal(t, "http://127.0.0.1:8080", c.BaseURL())
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, defaultRateLimit, c.rateLimiter.Limit())
	assert.Equal(t, CircuitClosed, c.BreakerState())
}

func TestClient_Health(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"server error", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, PathHealth, r.URL.Path)
				w.WriteHeader(tt.status)
			})
			healthy, err := c.Health(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, healthy)
		})
	}
}

func TestClient_Models(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathModels, r.URL.Path)
		_, _ = io.WriteString(w, `{"object":"list","data":[{"created":1700000000,"id":"openai/gpt-oss-20b","object":"model","owned_by":"local"}]}`)
	})

	models, err := c.Models(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "openai/gpt-oss-20b", models[0].ID)
	assert.Equal(t, int64(1700000000), models[0].Created)
	assert.Equal(t, "local", models[0].OwnedBy)
}

func TestClient_Topology(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, topologyJSON)
	})

	topo, err := c.Topology(context.Background())
	require.NoError(t, err)
	require.NotNil(t, topo)

	assert.True(t, topo.ModelLoaded())
	assert.Equal(t, "Qwen/Qwen3-4B-MLX-4bit", topo.ModelName())
	assert.Equal(t, 36, topo.NumLayers)
	require.Len(t, topo.Devices, 2)
	assert.True(t, topo.Devices[0].IsManager)
	assert.Equal(t, "192.168.1.10:8081", topo.Devices[0].Addr())

	tb := topo.Devices[1].Thunderbolt
	require.NotNil(t, tb)
	require.Len(t, tb.Instances, 1)
	assert.Equal(t, "bus_2", tb.Instances[0].Instance.Name)
	require.Len(t, tb.Instances[0].Connected, 1)
	assert.Equal(t, "Mac14,2", tb.Instances[0].Connected[0].Device)

	a, ok := topo.Assignment("shard-01")
	require.True(t, ok)
	assert.Equal(t, 5, a.LayerCount())
	assert.Equal(t, "shard-02", a.NextInstance)
	_, ok = topo.Assignment("ghost")
	assert.False(t, ok)
}

func TestClient_TopologyBadRequestMeansNone(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no topology", http.StatusBadRequest)
	})

	topo, err := c.Topology(context.Background())
	require.NoError(t, err)
	assert.Nil(t, topo)
	assert.False(t, topo.ModelLoaded())
	assert.Equal(t, "", topo.ModelName())
}

func TestClient_TopologyWithoutModel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"model": null, "num_layers": 0, "devices": [], "assignments": []}`)
	})

	topo, err := c.Topology(context.Background())
	require.NoError(t, err)
	require.NotNil(t, topo)
	assert.False(t, topo.ModelLoaded())
}

func TestClient_StatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Devices(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAPIStatus), "got %v", err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, CircuitClosed, c.BreakerState(), "status errors do not trip the breaker")
}

func TestClient_Devices(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"devices": {"shard-01": {"instance": "shard-01", "server_port": 8081, "shard_port": 50051, "local_ip": "10.0.0.1", "is_busy": true}}}`)
	})

	devices, err := c.Devices(context.Background())
	require.NoError(t, err)
	require.Contains(t, devices, "shard-01")
	assert.True(t, devices["shard-01"].IsBusy)
	assert.False(t, devices["shard-01"].IsManager)
	assert.Nil(t, devices["shard-01"].Thunderbolt)
}

func TestClient_LoadModel(t *testing.T) {
	var bodies []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathLoadModel, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		_, _ = io.WriteString(w, `{"model":"m","success":false,"shard_statuses":[
			{"instance":"shard-01","success":true,"layers_loaded":[0,1,2]},
			{"instance":"shard-02","success":false,"message":"oom"}],"message":"partial"}`)
	})

	resp, err := c.LoadModel(context.Background(), "m")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "partial", resp.Message)
	require.Len(t, resp.ShardStatuses, 2)
	assert.Equal(t, "[0..2]", resp.ShardStatuses[0].LayerRange())
	assert.Equal(t, "[]", resp.ShardStatuses[1].LayerRange())
	assert.Equal(t, "oom", resp.ShardStatuses[1].Message)

	_, err = c.LoadModel(context.Background(), "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"m"}`, bodies[0])
	assert.JSONEq(t, `{}`, bodies[1])
}

func TestClient_PrepareTopology(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathPrepareTopology, r.URL.Path)
		var req PrepareTopologyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, PrepareTopologyRequest{Model: "m", KVBits: "4bit", SeqLen: 2048, MaxBatchExp: 1}, req)
		_, _ = io.WriteString(w, topologyJSON)
	})

	topo, err := c.PrepareTopology(context.Background(), PrepareTopologyRequest{Model: "m", KVBits: "4bit", SeqLen: 2048, MaxBatchExp: 1})
	require.NoError(t, err)
	assert.Len(t, topo.Assignments, 2)
}

func TestClient_PrepareTopologyManual(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathPrepareManual, r.URL.Path)
		var req ManualTopologyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "m", req.Model)
		assert.Equal(t, 4, req.NumLayers)
		require.Len(t, req.Assignments, 2)
		assert.Equal(t, "shard-02", req.Assignments[0].NextInstance)
		if len(req.Devices) == 0 {
			http.Error(w, "no devices", http.StatusUnprocessableEntity)
		}
	})

	req := ManualTopologyRequest{
		Model:     "m",
		NumLayers: 4,
		Devices:   []DeviceProperties{{Instance: "shard-01"}, {Instance: "shard-02"}},
		Assignments: []AssignmentInfo{
			{Instance: "shard-01", Layers: [][]int{{0, 1}}, NextInstance: "shard-02", WindowSize: 2, ResidencySize: 2},
			{Instance: "shard-02", Layers: [][]int{{2, 3}}, NextInstance: "shard-01", WindowSize: 2, ResidencySize: 2},
		},
	}
	require.NoError(t, c.PrepareTopologyManual(context.Background(), req))

	req.Devices = nil
	err := c.PrepareTopologyManual(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no devices")
}

func TestClient_ChatStream(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathChatCompletions, r.URL.Path)
		assert.Equal(t, acceptStream, r.Header.Get("Accept"))
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, 500, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		assert.Equal(t, []ChatMessage{{Role: "user", Content: "hi"}}, req.Messages)

		w.Header().Set("Content-Type", acceptStream)
		_, _ = io.WriteString(w, ": keep-alive\n\n")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"role":"assistant"}}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"Hel"}}]}`+"\n\n")
		_, _ = io.WriteString(w, "data: not json\n\n")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"choices":[{"index":0,"delta":{"content":" ignored"}}]}`+"\n\n")
	})

	var got strings.Builder
	err := c.ChatStream(context.Background(), ChatRequest{
		Model:       "m",
		Messages:    []ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens:   500,
		Temperature: 0.7,
	}, func(d string) { got.WriteString(d) })
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.String())
}

func TestClient_ChatStreamDoneAndErrors(t *testing.T) {
	fail := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "no model loaded", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":"a"}}]}`+"\n")
		_, _ = io.WriteString(w, "data: [DONE]\n")
	})

	var deltas []string
	require.NoError(t, c.ChatStream(context.Background(), ChatRequest{Model: "m"}, func(d string) { deltas = append(deltas, d) }))
	assert.Equal(t, []string{"a"}, deltas)

	fail = true
	err := c.ChatStream(context.Background(), ChatRequest{Model: "m"}, func(string) {})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAPIStatus))
	assert.Contains(t, err.Error(), "no model loaded")
	assert.Zero(t, c.streamHTTP.Timeout, "streams are bounded by their context, not a client timeout")
}

func TestClient_ChatStreamStopped(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `data: {"choices":[{"delta":{"content":"partial"}}]}`+"\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	for range 4 {
		ctx, cancel := context.WithCancel(context.Background())
		err := c.ChatStream(ctx, ChatRequest{Model: "m"}, func(string) { cancel() })
		cancel()
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, uint32(0), c.breaker.FailureCount(), "stopping generation is not a server failure")
	assert.Equal(t, CircuitClosed, c.BreakerState())
}

func TestClient_UnloadModel(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, PathUnloadModel, r.URL.Path)
		if calls > 1 {
			http.Error(w, "nothing loaded", http.StatusConflict)
		}
	})

	require.NoError(t, c.UnloadModel(context.Background()))
	err := c.UnloadModel(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAPIStatus))
}

func TestClient_ShardHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok","running":true,"model_loaded":true,"model_path":"/m","assigned_layers":[1,2],"queue_size":0,"grpc_port":50051,"http_port":8081,"instance":"shard-01"}`)
	}))
	defer srv.Close()

	host, port, ok := strings.Cut(strings.TrimPrefix(srv.URL, "http://"), ":")
	require.True(t, ok)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	c := NewClient("http://unused", Options{})
	h, err := c.ShardHealth(context.Background(), DeviceProperties{LocalIP: host, ServerPort: portNum})
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, []int{1, 2}, h.AssignedLayers)
	require.NotNil(t, h.ModelPath)
}

func TestClient_UnreachableTripsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	metrics := telemetry.NewMetrics()
	c := NewClient(url, Options{
		Metrics:           metrics,
		RequestsPerSecond: 1000,
		Breaker:           &BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})

	for i := 0; i < 2; i++ {
		_, err := c.Health(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeAPIRequest))
		assert.True(t, errors.IsRetryable(err))
	}
	assert.Equal(t, CircuitOpen, c.BreakerState())

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry suppressed")

	expected := `
# HELP dnetui_api_requests_total dnet API requests by endpoint and outcome
# TYPE dnetui_api_requests_total counter
dnetui_api_requests_total{endpoint="health",outcome="error"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "dnetui_api_requests_total"))
}

func TestClient_CancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Models(ctx)
	require.Error(t, err)
	assert.Equal(t, uint32(0), c.breaker.FailureCount(), "cancellation is not a server failure")
}

func TestThunderboltLink_RoundTrip(t *testing.T) {
	link := ThunderboltLink{Instance: ThunderboltInstance{UUID: "a", Name: "n", Device: "d"}}
	data, err := json.Marshal(link)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"uuid":"a","name":"n","device":"d"},[]]`, string(data))

	var bad ThunderboltLink
	assert.Error(t, json.Unmarshal([]byte(`[{"uuid":"a"}]`), &bad))
}
