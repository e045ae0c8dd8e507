package config

import (
	"errors"
	"strings"
)

// ErrInvalid matches every *ConfigError through errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// ConfigError collects everything wrong with one config file so it can be
// reported at once: unresolved ${VAR} references and validation failures.
type ConfigError struct {
	Path    string
	Missing []string
	Errors  []string
}

func (e *ConfigError) Error() string {
	if !e.HasErrors() {
		return ""
	}
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path + ":\n")
	}
	if len(e.Missing) > 0 {
		b.WriteString("missing environment variables: " + strings.Join(e.Missing, ", ") + "\n")
	}
	if len(e.Errors) > 0 {
		b.WriteString("validation failed:\n")
		for _, msg := range e.Errors {
			b.WriteString("  - " + msg + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalid }

// HasErrors reports whether anything was collected.
func (e *ConfigError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Errors) > 0
}
