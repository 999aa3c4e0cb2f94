package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/dnetui/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "reading config")
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigParse, "parsing YAML")
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigParse, "parsing YAML")
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Zero values leave base untouched
// except for booleans present in the raw document.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.API.Host != "" {
		base.API.Host = override.API.Host
	}
	if override.API.Port != 0 {
		base.API.Port = override.API.Port
	}
	if override.API.Timeout != 0 {
		base.API.Timeout = override.API.Timeout
	}
	if override.API.RequestsPerSecond != 0 {
		base.API.RequestsPerSecond = override.API.RequestsPerSecond
	}

	if override.Chat.MaxTokens != 0 {
		base.Chat.MaxTokens = override.Chat.MaxTokens
	}
	if fieldSet(raw, "chat", "temperature") {
		base.Chat.Temperature = override.Chat.Temperature
	}

	if override.UI.Tick != 0 {
		base.UI.Tick = override.UI.Tick
	}
	if fieldSet(raw, "ui", "strict") {
		base.UI.Strict = override.UI.Strict
	}

	if override.Refresh.Devices != 0 {
		base.Refresh.Devices = override.Refresh.Devices
	}
	if override.Refresh.Topology != 0 {
		base.Refresh.Topology = override.Refresh.Topology
	}
	if override.Refresh.Health != 0 {
		base.Refresh.Health = override.Refresh.Health
	}

	if override.Topology.KVBits != "" {
		base.Topology.KVBits = override.Topology.KVBits
	}
	if override.Topology.SeqLen != 0 {
		base.Topology.SeqLen = override.Topology.SeqLen
	}
	if fieldSet(raw, "topology", "max_batch_exp") {
		base.Topology.MaxBatchExp = override.Topology.MaxBatchExp
	}

	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}
	if override.Log.File != "" {
		base.Log.File = override.Log.File
	}
}

// fieldSet reports whether the dotted path exists in the raw document, so
// explicit false and zero values can override defaults.
func fieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
