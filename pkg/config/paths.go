package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir returns ~/.dria/dnet, or "" when no home directory is known.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		home = os.Getenv("HOME")
	}
	if strings.TrimSpace(home) == "" {
		return ""
	}
	return filepath.Join(home, ".dria", "dnet")
}

// UserConfigPath is where the settings window saves to.
func UserConfigPath() string {
	dir := DataDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, FileName)
}

// SavePath is the file the settings window writes: the file the config was
// loaded from, else the user config path.
func (c *Config) SavePath() string {
	if c.location != "" {
		return c.location
	}
	return UserConfigPath()
}

// LogPath resolves the diagnostic log file: the configured path with ~
// expanded, or dnetui.log in the data directory.
func (c *Config) LogPath() string {
	if p := expandHomeDir(c.Log.File); p != "" {
		return p
	}
	if dir := DataDir(); dir != "" {
		return filepath.Join(dir, "dnetui.log")
	}
	return "dnetui.log"
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
