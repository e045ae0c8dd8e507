package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	const path = "/etc/scrapearr/config.toml"
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "nothing collected",
			err:  &ConfigError{Path: path},
			want: "",
		},
		{
			name: "missing variables",
			err:  &ConfigError{Path: path, Missing: []string{"RUTRACKER_USERNAME", "API_KEY: set the server key"}},
			want: path + ":\nmissing environment variables: RUTRACKER_USERNAME, API_KEY: set the server key",
		},
		{
			name: "validation only, no path",
			err:  &ConfigError{Errors: []string{"server.port: must be 1-65535", "sites: at least one site is required"}},
			want: "validation failed:\n  - server.port: must be 1-65535\n  - sites: at least one site is required",
		},
		{
			name: "both",
			err:  &ConfigError{Path: path, Missing: []string{"X"}, Errors: []string{"log.level: bad"}},
			want: path + ":\nmissing environment variables: X\nvalidation failed:\n  - log.level: bad",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.Equal(t, tt.want != "", tt.err.HasErrors())
		})
	}
}

func TestConfigError_Is(t *testing.T) {
	err := fmt.Errorf("loading: %w", &ConfigError{Missing: []string{"X"}})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.NotErrorIs(t, errors.New("reading config"), ErrInvalid)
}
