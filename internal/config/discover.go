package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfig names the variable that points at a config file.
const EnvConfig = "SCRAPEARR_CONFIG"

// DefaultPath is $XDG_CONFIG_HOME/scrapearr/config.toml, falling back to
// ~/.config and then the working directory.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "scrapearr", "config.toml")
}

// candidates lists the places Discover looks, in order.
func candidates() []string {
	return []string{
		"scrapearr.toml",
		"config.toml",
		DefaultPath(),
		"/etc/scrapearr/config.toml",
	}
}

// Discover returns the config file named by SCRAPEARR_CONFIG or the first
// existing file among scrapearr.toml and config.toml in the working
// directory, DefaultPath and /etc/scrapearr/config.toml.
func Discover() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s=%s: %w", EnvConfig, p, err)
		}
		return p, nil
	}

	paths := candidates()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("config not found, checked: %s", strings.Join(paths, ", "))
}
