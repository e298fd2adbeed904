package fetcher

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultMaxSize is the byte ceiling for a single remote download (10 MiB).
	DefaultMaxSize int64 = 10 * 1024 * 1024
	// DefaultChunkSize is the read buffer size used when streaming a body.
	DefaultChunkSize = 32 * 1024
	DefaultTimeout   = 2 * time.Minute
)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	maxSize    int64
	chunkSize  int
	userAgent  string
}

// Option defines a function type for configuring the fetcher.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
		maxSize:    DefaultMaxSize,
		chunkSize:  DefaultChunkSize,
	}
}

// WithHTTPClient allows providing a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxSize overrides the byte ceiling. Non-positive values are ignored.
func WithMaxSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithChunkSize sets the size of the buffer each body read fills.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}
