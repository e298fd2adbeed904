package cli

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sevigo/gwdata/config"
	"github.com/sevigo/gwdata/datasource"
	"github.com/sevigo/gwdata/fetcher"
	"github.com/sevigo/gwdata/parsers"
	"github.com/sevigo/gwdata/proxy"
	"github.com/sevigo/gwdata/store"
)

func newRemote(cfg *config.Config, logger *slog.Logger) (*datasource.Remote, error) {
	registry, err := parsers.RegisterRowParsers(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register parsers: %w", err)
	}

	f := fetcher.New(
		fetcher.WithHTTPClient(&http.Client{Timeout: cfg.Fetch.Timeout}),
		fetcher.WithLogger(logger),
		fetcher.WithMaxSize(cfg.Fetch.MaxSize),
		fetcher.WithChunkSize(cfg.Fetch.ChunkSize),
		fetcher.WithUserAgent(cfg.Fetch.UserAgent),
	)

	return datasource.NewRemote(store.NewStaging(logger), f, registry,
		datasource.WithLogger(logger),
		datasource.WithAutoCommit(cfg.Fetch.AutoCommit),
		datasource.WithResourceURL(cfg.Server.ResourceURL),
		datasource.WithDefaultEncoding(cfg.Fetch.Encoding),
		datasource.WithSampling(cfg.Parse.Sampling()),
		datasource.WithHeaderMode(cfg.Parse.HeaderMode()),
	), nil
}

// newProxy returns nil when the proxy is disabled.
func newProxy(cfg *config.Config, logger *slog.Logger) (http.Handler, error) {
	if !cfg.Proxy.Enabled {
		return nil, nil
	}
	return proxy.New(
		proxy.WithLogger(logger),
		proxy.WithTimeout(cfg.Proxy.Timeout),
		proxy.WithMaxSize(cfg.Proxy.MaxSize),
		proxy.WithChunkSize(cfg.Proxy.ChunkSize),
		proxy.WithDownloadProxy(cfg.Proxy.DownloadProxy),
	)
}
