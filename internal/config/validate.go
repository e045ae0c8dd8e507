package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validLogFormats = map[string]bool{
	"text": true, "json": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level: must be one of debug, info, warn, error; got %q", c.Log.Level))
	}
	if !validLogFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format: must be text or json; got %q", c.Log.Format))
	}

	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Transport.RatePerHost < 0 {
		errs = append(errs, "transport.rate_per_host: must not be negative")
	}
	if c.Transport.Timeout < 0 || c.Transport.RetryDelay < 0 {
		errs = append(errs, "transport: durations must not be negative")
	}

	if len(c.Sites) == 0 {
		errs = append(errs, "sites: at least one site must be configured")
	}
	names := make([]string, 0, len(c.Sites))
	for name := range c.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		site := c.Sites[name]
		prefix := "sites." + name
		if site.URL != "" {
			u, err := url.Parse(site.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, fmt.Sprintf("%s.url: must be an absolute http(s) URL, got %q", prefix, site.URL))
			}
		}
		if site.Username != "" && site.Password == "" {
			errs = append(errs, fmt.Sprintf("%s.password: required when username is set", prefix))
		}
		if site.MaxItems < 0 {
			errs = append(errs, fmt.Sprintf("%s.max_items: must not be negative", prefix))
		}
		if site.Concurrency < 0 {
			errs = append(errs, fmt.Sprintf("%s.concurrency: must not be negative", prefix))
		}
		if site.Selectors != "" {
			if _, err := os.Stat(site.Selectors); err != nil {
				errs = append(errs, fmt.Sprintf("%s.selectors: %v", prefix, err))
			}
		}
	}

	return errs
}
