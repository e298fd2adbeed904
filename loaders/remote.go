package loaders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"sync"

	"github.com/sevigo/gwdata/fetcher"
	"github.com/sevigo/gwdata/parsers"
	"github.com/sevigo/gwdata/schema"
)

// ErrEmptyResult is returned when a payload parses without producing any rows.
var ErrEmptyResult = errors.New("no rows parsed")

// ParseError wraps a failure to turn a downloaded payload into rows.
type ParseError struct {
	Parser string
	Err    error
}

func (e *ParseError) Error() string {
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Remote downloads a URL and parses it into a dataset.
type Remote struct {
	URL      string
	Fetcher  *fetcher.Fetcher
	Registry parsers.ParserRegistry

	encoding   string
	sampling   schema.SamplingConfig
	header     schema.HeaderMode
	onProgress fetcher.ProgressFunc
	logger     *slog.Logger

	mu     sync.Mutex
	result *fetcher.Result
}

// Option configures a Remote loader.
type Option func(*Remote)

// WithEncoding sets the character encoding label used to decode the payload.
func WithEncoding(label string) Option {
	return func(r *Remote) {
		r.encoding = label
	}
}

func WithSampling(cfg schema.SamplingConfig) Option {
	return func(r *Remote) {
		r.sampling = cfg
	}
}

func WithHeaderMode(mode schema.HeaderMode) Option {
	return func(r *Remote) {
		r.header = mode
	}
}

// WithProgress registers a callback invoked after every received chunk.
func WithProgress(fn fetcher.ProgressFunc) Option {
	return func(r *Remote) {
		r.onProgress = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Remote) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRemote creates a loader for a single remote resource.
func NewRemote(url string, f *fetcher.Fetcher, registry parsers.ParserRegistry, opts ...Option) *Remote {
	r := &Remote{
		URL:      url,
		Fetcher:  f,
		Registry: registry,
		encoding: schema.DefaultEncoding,
		sampling: schema.DefaultSampling(),
		header:   schema.HeaderPresent,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "remote_loader")
	return r
}

// Load fetches the resource and parses it with the parser matching its content
// type or extension.
func (r *Remote) Load(ctx context.Context) (schema.TabularDataset, error) {
	res, err := r.Fetcher.Fetch(ctx, r.URL, r.onProgress)
	if err != nil {
		return schema.TabularDataset{}, err
	}

	r.mu.Lock()
	r.result = res
	r.mu.Unlock()

	parser, err := r.Registry.ParserFor(r.URL, res.ContentType)
	if err != nil {
		return schema.TabularDataset{}, fmt.Errorf("failed to select parser: %w", err)
	}

	opts := schema.ParseOptions{
		Encoding:   r.encoding,
		Sampling:   r.sampling,
		Header:     r.header,
		SourceName: r.URL,
	}
	if isTabSeparated(res.ContentType) {
		opts.Delimiter = '\t'
	}

	ds, err := parser.Parse(ctx, bytes.NewReader(res.Data), opts)
	if err != nil {
		return schema.TabularDataset{}, &ParseError{Parser: parser.Name(), Err: err}
	}
	if len(ds.Rows) == 0 {
		return schema.TabularDataset{}, ErrEmptyResult
	}

	r.logger.Info("Remote resource loaded",
		"url", r.URL,
		"parser", parser.Name(),
		"encoding", r.encoding,
		"bytes", len(res.Data),
		"rows", len(ds.Rows),
		"fields", len(ds.Fields),
	)
	return ds, nil
}

// Result returns the metadata of the last successful fetch, or nil.
func (r *Remote) Result() *fetcher.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

func isTabSeparated(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/tab-separated-values"
}
