package api

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
)

// DeviceProperties describes one discovered device. It mirrors the device
// record published by the dnet discovery service.
type DeviceProperties struct {
	IsManager   bool             `json:"is_manager"`
	IsBusy      bool             `json:"is_busy"`
	Instance    string           `json:"instance"`
	ServerPort  int              `json:"server_port"`
	ShardPort   int              `json:"shard_port"`
	LocalIP     string           `json:"local_ip"`
	Thunderbolt *ThunderboltData `json:"thunderbolt,omitempty"`
}

// Addr returns ip:server_port.
func (d DeviceProperties) Addr() string {
	return net.JoinHostPort(d.LocalIP, strconv.Itoa(d.ServerPort))
}

// ThunderboltData is present on devices with a Thunderbolt bridge.
type ThunderboltData struct {
	IPAddr    string            `json:"ip_addr"` // expected 169.254.x.x
	Instances []ThunderboltLink `json:"instances"`
}

// ThunderboltInstance identifies one end of a Thunderbolt connection.
type ThunderboltInstance struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Device string `json:"device"`
}

// ThunderboltLink is a local instance and the instances connected to it. On
// the wire it is a two element array.
type ThunderboltLink struct {
	Instance  ThunderboltInstance
	Connected []ThunderboltInstance
}

func (l *ThunderboltLink) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("thunderbolt link: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &l.Instance); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &l.Connected)
}

func (l ThunderboltLink) MarshalJSON() ([]byte, error) {
	connected := l.Connected
	if connected == nil {
		connected = []ThunderboltInstance{}
	}
	return json.Marshal([]any{l.Instance, connected})
}

// TopologyInfo is the layer assignment the API prepared for a model.
type TopologyInfo struct {
	// Model is nil when the topology was prepared but the model later
	// unloaded.
	Model       *string            `json:"model"`
	NumLayers   int                `json:"num_layers"`
	Devices     []DeviceProperties `json:"devices"`
	Assignments []AssignmentInfo   `json:"assignments"`
	KVBits      string             `json:"kv_bits,omitempty"`
}

// ModelLoaded reports whether a model is currently loaded.
func (t *TopologyInfo) ModelLoaded() bool {
	return t != nil && t.Model != nil && *t.Model != ""
}

// ModelName returns the loaded model or "".
func (t *TopologyInfo) ModelName() string {
	if !t.ModelLoaded() {
		return ""
	}
	return *t.Model
}

// Assignment returns the assignment for an instance.
func (t *TopologyInfo) Assignment(instance string) (AssignmentInfo, bool) {
	if t == nil {
		return AssignmentInfo{}, false
	}
	for _, a := range t.Assignments {
		if a.Instance == instance {
			return a, true
		}
	}
	return AssignmentInfo{}, false
}

// AssignmentInfo lists which layers an instance holds. Layers is grouped by
// round; NextInstance closes the ring.
type AssignmentInfo struct {
	Instance      string  `json:"instance"`
	Layers        [][]int `json:"layers"`
	NextInstance  string  `json:"next_instance"`
	WindowSize    int     `json:"window_size"`
	ResidencySize int     `json:"residency_size"`
}

// LayerCount returns the total number of layers assigned.
func (a AssignmentInfo) LayerCount() int {
	n := 0
	for _, round := range a.Layers {
		n += len(round)
	}
	return n
}

// ModelInfo is one entry of /v1/models.
type ModelInfo struct {
	Created int64  `json:"created"`
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type listModelsResponse struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

type devicesResponse struct {
	Devices map[string]DeviceProperties `json:"devices"`
}

// PrepareTopologyRequest asks the API to plan a layer assignment.
type PrepareTopologyRequest struct {
	Model       string `json:"model"`
	KVBits      string `json:"kv_bits"`
	SeqLen      int    `json:"seq_len"`
	MaxBatchExp int    `json:"max_batch_exp"`
}

// LoadModelResponse reports the outcome of /v1/load_model.
type LoadModelResponse struct {
	Model         string            `json:"model"`
	Success       bool              `json:"success"`
	ShardStatuses []ShardLoadStatus `json:"shard_statuses"`
	Message       string            `json:"message,omitempty"`
}

// ShardLoadStatus is one shard's part of a load.
type ShardLoadStatus struct {
	Instance     string `json:"instance"`
	Success      bool   `json:"success"`
	LayersLoaded []int  `json:"layers_loaded,omitempty"`
	Message      string `json:"message,omitempty"`
}

// LayerRange renders loaded layers as "[first..last]" or "[]".
func (s ShardLoadStatus) LayerRange() string {
	if len(s.LayersLoaded) == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%d..%d]", s.LayersLoaded[0], s.LayersLoaded[len(s.LayersLoaded)-1])
}

// ManualTopologyRequest is a layer assignment chosen by hand.
type ManualTopologyRequest struct {
	Model       string             `json:"model"`
	Devices     []DeviceProperties `json:"devices"`
	Assignments []AssignmentInfo   `json:"assignments"`
	NumLayers   int                `json:"num_layers"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of /v1/chat/completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// ShardHealth is served by each shard's own /health endpoint.
type ShardHealth struct {
	Status         string  `json:"status"`
	Running        bool    `json:"running"`
	ModelLoaded    bool    `json:"model_loaded"`
	ModelPath      *string `json:"model_path"`
	AssignedLayers []int   `json:"assigned_layers"`
	QueueSize      int     `json:"queue_size"`
	GRPCPort       int     `json:"grpc_port"`
	HTTPPort       int     `json:"http_port"`
	Instance       string  `json:"instance"`
}
