package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/dnetui/pkg/errors"
)

// Default configuration values exported for documentation and validation
const (
	DefaultAPIHost           = "127.0.0.1"
	DefaultAPIPort           = 8080
	DefaultAPITimeout        = 5 * time.Second
	DefaultRequestsPerSecond = 10
	DefaultMaxTokens         = 2000
	DefaultTemperature       = 0.7
	DefaultTick              = 100 * time.Millisecond
	DefaultDevicesRefresh    = 5 * time.Second
	DefaultTopologyRefresh   = time.Second
	DefaultHealthRefresh     = 2 * time.Second
	DefaultLogLevel          = "info"
	DefaultKVBits            = "8bit"
	DefaultSeqLen            = 4096
	DefaultMaxBatchExp       = 2

	// FileName is the config file name looked up in each location.
	FileName = "dnetui.yaml"
)

// Config represents the complete dnetui configuration
type Config struct {
	API      APIConfig      `yaml:"api"`
	Chat     ChatConfig     `yaml:"chat"`
	UI       UIConfig       `yaml:"ui"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Topology TopologyConfig `yaml:"topology"`
	Log      LogConfig      `yaml:"log"`

	location string
}

// APIConfig points at the dnet API server
type APIConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// ChatConfig holds generation defaults sent with chat requests
type ChatConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// UIConfig controls the event loop
type UIConfig struct {
	Tick   time.Duration `yaml:"tick"`
	Strict bool          `yaml:"strict"` // Rejected view transitions end the run
}

// RefreshConfig sets the background polling cadence
type RefreshConfig struct {
	Devices  time.Duration `yaml:"devices"`
	Topology time.Duration `yaml:"topology"`
	Health   time.Duration `yaml:"health"`
}

// TopologyConfig is sent with prepare_topology when a model is loaded
type TopologyConfig struct {
	KVBits      string `yaml:"kv_bits"`       // 4bit, 8bit or fp16
	SeqLen      int    `yaml:"seq_len"`       // Sequence length to optimize for
	MaxBatchExp int    `yaml:"max_batch_exp"` // Max batch size as a power of two
}

// KVBitsOptions lists the accepted kv cache quantizations.
var KVBitsOptions = []string{"4bit", "8bit", "fp16"}

// LogConfig controls the diagnostic log file
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // Empty means ~/.dria/dnet/dnetui.log
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:              DefaultAPIHost,
			Port:              DefaultAPIPort,
			Timeout:           DefaultAPITimeout,
			RequestsPerSecond: DefaultRequestsPerSecond,
		},
		Chat: ChatConfig{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		UI: UIConfig{
			Tick: DefaultTick,
		},
		Refresh: RefreshConfig{
			Devices:  DefaultDevicesRefresh,
			Topology: DefaultTopologyRefresh,
			Health:   DefaultHealthRefresh,
		},
		Topology: TopologyConfig{
			KVBits:      DefaultKVBits,
			SeqLen:      DefaultSeqLen,
			MaxBatchExp: DefaultMaxBatchExp,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads the user config (~/.dria/dnet/dnetui.yaml), then the project
// config (./dnetui.yaml), then applies environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	if userPath := UserConfigPath(); userPath != "" {
		if err := loadAndMerge(cfg, userPath); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, errors.GetCode(err), "loading user config").
				WithContext("path", userPath)
		} else if err == nil {
			cfg.location = userPath
		}
	}

	projectPath := filepath.Join(".", FileName)
	if err := loadAndMerge(cfg, projectPath); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, errors.GetCode(err), "loading project config").
			WithContext("path", projectPath)
	} else if err == nil {
		cfg.location = projectPath
	}

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	configEnv := loadConfigEnvVars()

	path = expandHomeDir(path)
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, errors.Wrap(err, errors.GetCode(err), "loading config from "+path).
			WithContext("path", path)
	}
	cfg.location = path

	applyEnvOverrides(cfg, configEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Values from the
// process environment win over ~/.dria/dnet/config.env.
func applyEnvOverrides(cfg *Config, configEnv map[string]string) {
	get := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return configEnv[key]
	}

	if v := get("DNETUI_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := get("DNETUI_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := get("DNETUI_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.UI.Tick = d
		}
	}
	if val, ok := parseBool(get("DNETUI_STRICT")); ok {
		cfg.UI.Strict = val
	}
	if v := get("DNETUI_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := get("DNETUI_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func parseBool(val string) (bool, bool) {
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// Validate checks the configuration for values the UI cannot run with.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return errors.Newf(errors.ErrCodeConfigInvalid, "invalid %s: "+format, append([]any{field}, args...)...).
			WithContext("field", field).
			WithRemediation("fix " + field + " in " + c.Location())
	}

	if strings.TrimSpace(c.API.Host) == "" {
		return invalid("api.host", "must not be empty")
	}
	if strings.ContainsAny(c.API.Host, "/ ") {
		return invalid("api.host", "%q must be a host name or address", c.API.Host)
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return invalid("api.port", "%d (must be 1-65535)", c.API.Port)
	}
	if c.API.Timeout <= 0 {
		return invalid("api.timeout", "must be positive")
	}
	if c.API.RequestsPerSecond <= 0 {
		return invalid("api.requests_per_second", "must be positive")
	}
	if c.Chat.MaxTokens <= 0 {
		return invalid("chat.max_tokens", "%d (must be positive)", c.Chat.MaxTokens)
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return invalid("chat.temperature", "%.2f (must be 0-2)", c.Chat.Temperature)
	}
	if c.UI.Tick < 10*time.Millisecond || c.UI.Tick > 10*time.Second {
		return invalid("ui.tick", "%s (must be between 10ms and 10s)", c.UI.Tick)
	}
	if c.Refresh.Devices <= 0 || c.Refresh.Topology <= 0 || c.Refresh.Health <= 0 {
		return invalid("refresh", "intervals must be positive")
	}
	if !slices.Contains(KVBitsOptions, c.Topology.KVBits) {
		return invalid("topology.kv_bits", "%s (valid: %s)", c.Topology.KVBits, strings.Join(KVBitsOptions, ", "))
	}
	if c.Topology.SeqLen <= 0 {
		return invalid("topology.seq_len", "%d (must be positive)", c.Topology.SeqLen)
	}
	if c.Topology.MaxBatchExp < 0 || c.Topology.MaxBatchExp > 10 {
		return invalid("topology.max_batch_exp", "%d (must be 0-10)", c.Topology.MaxBatchExp)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return invalid("log.level", "%s (valid: debug, info, warn, error)", c.Log.Level)
	}
	return nil
}

// APIURL returns the base URL of the dnet API in http://host:port form.
func (c *Config) APIURL() string {
	return "http://" + net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// Location reports the file the config was loaded from, for display.
func (c *Config) Location() string {
	if c.location != "" {
		return c.location
	}
	return "./" + FileName + " (not found)"
}

// Save writes the config as YAML, creating parent directories. The saved
// file becomes the reported location.
func (c *Config) Save(path string) error {
	path = expandHomeDir(path)
	if path == "" {
		return errors.New(errors.ErrCodeConfigLoad, "no config path to save to")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "encoding config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "creating config directory").WithContext("path", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "writing config").WithContext("path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, errors.ErrCodeConfigLoad, "writing config").WithContext("path", path)
	}
	c.location = path
	return nil
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func (c *Config) String() string {
	return fmt.Sprintf("api=%s tick=%s strict=%t", c.APIURL(), c.UI.Tick, c.UI.Strict)
}

func loadConfigEnvVars() map[string]string {
	dir := DataDir()
	if dir == "" {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.env"))
	if err != nil {
		return nil
	}

	vars := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		vars[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	return vars
}
