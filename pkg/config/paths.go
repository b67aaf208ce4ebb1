package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for an explicit config path
	EnvConfigPath = "OMNIGATE_CONFIG"
	// FileName is the config file name looked up in the working directory
	FileName = "omnigate.yaml"
	// DirName is the config directory name under XDG and the home directory
	DirName = "omnigate"
)

// FindPath searches for a config file in priority order and returns the
// first one that exists, or an empty string.
func FindPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(FileName) {
		if abs, err := filepath.Abs(FileName); err == nil {
			return abs
		}
		return FileName
	}

	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, DirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, "."+DirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	systemPath := filepath.Join("/etc", DirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
