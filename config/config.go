// Package config loads gwdata settings from defaults, a YAML file, GWDATA_
// environment variables and command line flags, in increasing precedence.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/gwdata/schema"
)

// Config holds all gwdata settings.
type Config struct {
	LogLevel  string       `koanf:"log_level" yaml:"log_level"`
	LogFormat string       `koanf:"log_format" yaml:"log_format"`
	Fetch     FetchConfig  `koanf:"fetch" yaml:"fetch"`
	Parse     ParseConfig  `koanf:"parse" yaml:"parse"`
	Proxy     ProxyConfig  `koanf:"proxy" yaml:"proxy"`
	Server    ServerConfig `koanf:"server" yaml:"server"`

	// File is the config file that was read, if any.
	File string `koanf:"-" yaml:"-"`
}

type FetchConfig struct {
	MaxSize    int64         `koanf:"max_size" yaml:"max_size"`
	ChunkSize  int           `koanf:"chunk_size" yaml:"chunk_size"`
	Timeout    time.Duration `koanf:"timeout" yaml:"-"`
	Encoding   string        `koanf:"encoding" yaml:"encoding"`
	AutoCommit bool          `koanf:"auto_commit" yaml:"auto_commit"`
	UserAgent  string        `koanf:"user_agent" yaml:"user_agent"`
}

type ParseConfig struct {
	Header string `koanf:"header" yaml:"header"`
	// SampleSize > 0 switches to reservoir sampling of that many rows.
	SampleSize int    `koanf:"sample_size" yaml:"sample_size"`
	Seed       uint64 `koanf:"seed" yaml:"seed"`
}

// ProxyConfig configures the same-origin resource proxy.
type ProxyConfig struct {
	Enabled       bool          `koanf:"enabled" yaml:"enabled"`
	Timeout       time.Duration `koanf:"timeout" yaml:"-"`
	MaxSize       int64         `koanf:"max_size" yaml:"max_size"`
	ChunkSize     int           `koanf:"chunk_size" yaml:"chunk_size"`
	DownloadProxy string        `koanf:"download_proxy" yaml:"download_proxy"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
	// ResourceURL is the resource offered to clients as the default download.
	ResourceURL string `koanf:"resource_url" yaml:"resource_url"`
}

// Sampling returns the row sampling configuration for parsers.
func (c ParseConfig) Sampling() schema.SamplingConfig {
	if c.SampleSize <= 0 {
		return schema.DefaultSampling()
	}
	return schema.SamplingConfig{Mode: schema.SamplingReservoir, Size: c.SampleSize, Seed: c.Seed}
}

func (c ParseConfig) HeaderMode() schema.HeaderMode {
	return schema.HeaderMode(c.Header)
}

// MarshalYAML writes durations in their human readable form.
func (c FetchConfig) MarshalYAML() (any, error) {
	type Fields FetchConfig
	return struct {
		Fields  `yaml:",inline"`
		Timeout string `yaml:"timeout"`
	}{Fields(c), c.Timeout.String()}, nil
}

func (c ProxyConfig) MarshalYAML() (any, error) {
	type Fields ProxyConfig
	return struct {
		Fields  `yaml:",inline"`
		Timeout string `yaml:"timeout"`
	}{Fields(c), c.Timeout.String()}, nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
