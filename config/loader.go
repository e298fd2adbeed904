package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/sevigo/gwdata/fetcher"
	"github.com/sevigo/gwdata/schema"
)

const (
	// EnvPrefix is stripped from environment variables; "__" separates
	// nesting levels, so GWDATA_FETCH__MAX_SIZE sets fetch.max_size.
	EnvPrefix = "GWDATA_"

	DefaultFile  = "gwdata.yaml"
	DefaultAddr  = ":8080"
	proxyMaxSize = 1024 * 1024 * 1024
)

// flagKeys maps command line flag names to config keys. Flags missing here
// are command options, not settings.
var flagKeys = map[string]string{
	"log-level":      "log_level",
	"log-format":     "log_format",
	"max-size":       "fetch.max_size",
	"chunk-size":     "fetch.chunk_size",
	"timeout":        "fetch.timeout",
	"encoding":       "fetch.encoding",
	"commit":         "fetch.auto_commit",
	"user-agent":     "fetch.user_agent",
	"header":         "parse.header",
	"sample-size":    "parse.sample_size",
	"seed":           "parse.seed",
	"proxy":          "proxy.enabled",
	"download-proxy": "proxy.download_proxy",
	"addr":           "server.addr",
	"resource-url":   "server.resource_url",
}

func defaults() map[string]any {
	return map[string]any{
		"log_level":            "info",
		"log_format":           "text",
		"fetch.max_size":       fetcher.DefaultMaxSize,
		"fetch.chunk_size":     fetcher.DefaultChunkSize,
		"fetch.timeout":        fetcher.DefaultTimeout.String(),
		"fetch.encoding":       schema.DefaultEncoding,
		"fetch.auto_commit":    false,
		"fetch.user_agent":     "gwdata",
		"parse.header":         string(schema.HeaderPresent),
		"parse.sample_size":    0,
		"parse.seed":           0,
		"proxy.enabled":        true,
		"proxy.timeout":        "30s",
		"proxy.max_size":       proxyMaxSize,
		"proxy.chunk_size":     4096,
		"proxy.download_proxy": "",
		"server.addr":          DefaultAddr,
		"server.resource_url":  "",
	}
}

// Load builds the configuration. cfgFile may be empty, in which case
// gwdata.yaml in the working directory is used when present. Only flags that
// were explicitly set override lower layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns GWDATA_FETCH__MAX_SIZE into fetch.max_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{DefaultFile, "gwdata.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
