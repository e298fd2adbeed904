package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/sevigo/gwdata/charset"
	"github.com/sevigo/gwdata/schema"
)

var (
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"text", "json"}
	headerModes = []string{string(schema.HeaderPresent), string(schema.HeaderAbsent), string(schema.HeaderAuto)}
)

// Validate checks ranges and enumerations. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of %v, got %q", logLevels, c.LogLevel))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format must be one of %v, got %q", logFormats, c.LogFormat))
	}

	if c.Fetch.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_size must be positive, got %d", c.Fetch.MaxSize))
	}
	if c.Fetch.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("fetch.chunk_size must be positive, got %d", c.Fetch.ChunkSize))
	}
	if c.Fetch.Timeout < 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must not be negative, got %s", c.Fetch.Timeout))
	}
	if _, _, err := charset.Lookup(c.Fetch.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("fetch.encoding: %w", err))
	}

	if !slices.Contains(headerModes, c.Parse.Header) {
		errs = append(errs, fmt.Errorf("parse.header must be one of %v, got %q", headerModes, c.Parse.Header))
	}
	if c.Parse.SampleSize < 0 {
		errs = append(errs, fmt.Errorf("parse.sample_size must not be negative, got %d", c.Parse.SampleSize))
	}

	if c.Proxy.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("proxy.max_size must be positive, got %d", c.Proxy.MaxSize))
	}
	if c.Proxy.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("proxy.chunk_size must be positive, got %d", c.Proxy.ChunkSize))
	}
	if c.Proxy.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("proxy.timeout must be positive, got %s", c.Proxy.Timeout))
	}
	if c.Proxy.DownloadProxy != "" {
		if err := absoluteURL(c.Proxy.DownloadProxy); err != nil {
			errs = append(errs, fmt.Errorf("proxy.download_proxy: %w", err))
		}
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ResourceURL != "" {
		if err := absoluteURL(c.Server.ResourceURL); err != nil {
			errs = append(errs, fmt.Errorf("server.resource_url: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func absoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}
