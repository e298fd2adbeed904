// Package datasource drives remote downloads: it owns the download state,
// runs one attempt at a time and stages the parsed result for commit.
package datasource

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/gwdata/fetcher"
	"github.com/sevigo/gwdata/loaders"
	"github.com/sevigo/gwdata/metrics"
	"github.com/sevigo/gwdata/parsers"
	"github.com/sevigo/gwdata/schema"
	"github.com/sevigo/gwdata/store"
)

type options struct {
	autoCommit      bool
	resourceURL     string
	logger          *slog.Logger
	sampling        schema.SamplingConfig
	header          schema.HeaderMode
	defaultEncoding string
}

// Option configures a Remote data source.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:          slog.Default(),
		sampling:        schema.DefaultSampling(),
		header:          schema.HeaderPresent,
		defaultEncoding: schema.DefaultEncoding,
	}
}

// WithAutoCommit commits every successful download right away instead of
// leaving it staged for review.
func WithAutoCommit(enabled bool) Option {
	return func(o *options) {
		o.autoCommit = enabled
	}
}

// WithResourceURL pre-supplies the resource downloaded by LoadResource.
func WithResourceURL(url string) Option {
	return func(o *options) {
		o.resourceURL = url
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithSampling(cfg schema.SamplingConfig) Option {
	return func(o *options) {
		o.sampling = cfg
	}
}

func WithHeaderMode(mode schema.HeaderMode) Option {
	return func(o *options) {
		if mode != "" {
			o.header = mode
		}
	}
}

// WithDefaultEncoding sets the encoding used when Download is called without one.
func WithDefaultEncoding(label string) Option {
	return func(o *options) {
		if label != "" {
			o.defaultEncoding = label
		}
	}
}

// Remote is the download controller for remote resources.
type Remote struct {
	staging  *store.Staging
	fetcher  *fetcher.Fetcher
	registry parsers.ParserRegistry
	state    *store.Value[schema.DownloadState]
	inFlight atomic.Bool
	opts     *options
	logger   *slog.Logger
}

func NewRemote(staging *store.Staging, f *fetcher.Fetcher, registry parsers.ParserRegistry, opts ...Option) *Remote {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Remote{
		staging:  staging,
		fetcher:  f,
		registry: registry,
		state:    store.NewValue(schema.DownloadState{}),
		opts:     o,
		logger:   o.logger.With("component", "remote_datasource"),
	}
}

// State exposes the download state for reading and subscribing.
func (r *Remote) State() *store.Value[schema.DownloadState] {
	return r.state
}

func (r *Remote) Staging() *store.Staging {
	return r.staging
}

// ResourceURL returns the pre-supplied resource URL, if any.
func (r *Remote) ResourceURL() string {
	return r.opts.resourceURL
}

// Downloading reports whether an attempt is currently running.
func (r *Remote) Downloading() bool {
	return r.inFlight.Load()
}

// DownloadOption adjusts a single Download call.
type DownloadOption func(*downloadOptions)

type downloadOptions struct {
	commit   bool
	onCommit func(schema.Snapshot)
}

// WithCommit commits the staged dataset within the same attempt, whatever
// the data source's auto-commit setting is.
func WithCommit(enabled bool) DownloadOption {
	return func(o *downloadOptions) {
		o.commit = o.commit || enabled
	}
}

// OnCommit receives the snapshot when the attempt commits.
func OnCommit(fn func(schema.Snapshot)) DownloadOption {
	return func(o *downloadOptions) {
		o.onCommit = fn
	}
}

// Download fetches url, decodes it with encoding and stages the parsed rows as
// the temporary dataset. Failures are recorded in the download state and also
// returned; the temporary dataset is only replaced on success.
func (r *Remote) Download(ctx context.Context, url string, encoding string, opts ...DownloadOption) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrDownloadInProgress
	}
	defer r.inFlight.Store(false)
	defer r.state.Update(func(s schema.DownloadState) schema.DownloadState {
		s.Downloading = false
		return s
	})

	do := downloadOptions{commit: r.opts.autoCommit}
	for _, opt := range opts {
		opt(&do)
	}
	if encoding == "" {
		encoding = r.opts.defaultEncoding
	}

	attemptID := uuid.NewString()
	r.state.Set(schema.DownloadState{
		Downloading: true,
		URL:         url,
		AttemptID:   attemptID,
	})

	logger := r.logger.With("attempt_id", attemptID, "url", url)
	logger.Info("Download started", "encoding", encoding)
	start := time.Now()

	loader := loaders.NewRemote(url, r.fetcher, r.registry,
		loaders.WithEncoding(encoding),
		loaders.WithSampling(r.opts.sampling),
		loaders.WithHeaderMode(r.opts.header),
		loaders.WithLogger(r.opts.logger),
		loaders.WithProgress(r.onProgress),
	)

	ds, err := loader.Load(ctx)
	if err != nil {
		code := Code(err)
		r.state.Update(func(s schema.DownloadState) schema.DownloadState {
			s.ErrorMessage = Message(err)
			s.ErrorCode = code
			return s
		})
		metrics.RecordDownload(code, 0, time.Since(start))
		logger.Warn("Download failed", "code", code, "error", err)
		return err
	}

	r.staging.UpdateTempDS(ds)
	r.staging.UpdateTempName(DisplayName(url))
	if do.commit {
		snapshot := r.Commit()
		if do.onCommit != nil {
			do.onCommit(snapshot)
		}
	}

	size := 0
	if res := loader.Result(); res != nil {
		size = len(res.Data)
	}
	metrics.RecordDownload(metrics.OutcomeSuccess, size, time.Since(start))
	logger.Info("Download staged",
		"rows", ds.Len(),
		"fields", len(ds.Fields),
		"bytes", size,
		"committed", do.commit,
		"duration", time.Since(start),
	)
	return nil
}

// LoadResource downloads the pre-supplied resource URL.
func (r *Remote) LoadResource(ctx context.Context, encoding string, opts ...DownloadOption) error {
	if r.opts.resourceURL == "" {
		return ErrNoResourceURL
	}
	return r.Download(ctx, r.opts.resourceURL, encoding, opts...)
}

// CanCommit reports whether the temporary dataset is ready to be committed.
func (r *Remote) CanCommit() bool {
	return r.staging.CanCommit()
}

// Commit promotes the temporary dataset.
func (r *Remote) Commit() schema.Snapshot {
	snapshot := r.staging.CommitTempDS()
	metrics.RecordCommit()
	return snapshot
}

// onProgress only moves the percentage when the response declared its length.
func (r *Remote) onProgress(p fetcher.Progress) {
	if p.Total <= 0 {
		return
	}
	r.state.Update(func(s schema.DownloadState) schema.DownloadState {
		s.ProgressPercent = max(s.ProgressPercent, p.Percent)
		return s
	})
}
