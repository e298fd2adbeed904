// Package fetcher streams remote resources under a strict byte ceiling while
// reporting download progress.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// Progress is reported after every chunk read from the response body.
// Percent stays 0 when the response does not declare its length.
type Progress struct {
	Received int64
	Total    int64
	Percent  int
	Chunks   int
}

// ProgressFunc receives progress updates. It runs on the fetching goroutine.
type ProgressFunc func(Progress)

// Result is a fully downloaded payload.
type Result struct {
	URL           string
	Data          []byte
	ContentType   string
	ContentLength int64
	Chunks        int
	Duration      time.Duration
}

// Fetcher downloads remote resources. It does not de-duplicate concurrent
// calls; callers decide whether overlapping downloads are allowed.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
	maxSize    int64
	chunkSize  int
	userAgent  string
}

// New creates a new fetcher.
func New(opts ...Option) *Fetcher {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Fetcher{
		httpClient: options.httpClient,
		logger:     options.logger.With("component", "fetcher"),
		maxSize:    options.maxSize,
		chunkSize:  options.chunkSize,
		userAgent:  options.userAgent,
	}
}

// MaxSize returns the byte ceiling enforced on every download.
func (f *Fetcher) MaxSize() int64 {
	return f.maxSize
}

// Fetch issues a GET for rawURL and reads the body chunk by chunk. The read is
// aborted as soon as more than MaxSize bytes have arrived, whatever the
// response declared.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, onProgress ProgressFunc) (*Result, error) {
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Debug("remote returned error status", "url", rawURL, "status", resp.StatusCode)
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	// http.NoBody is an empty stream, not a missing one.
	if resp.Body == nil {
		return nil, ErrStreamUnavailable
	}

	total := resp.ContentLength
	contentType := resp.Header.Get("Content-Type")

	data, chunks, err := f.readBody(resp.Body, total, onProgress)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) {
			f.logger.Warn("download aborted: content exceeded max size", "url", rawURL, "max_size", f.maxSize)
		}
		return nil, err
	}

	result := &Result{
		URL:           rawURL,
		Data:          data,
		ContentType:   contentType,
		ContentLength: total,
		Chunks:        chunks,
		Duration:      time.Since(start),
	}

	f.logger.Debug("download completed",
		"url", rawURL,
		"bytes", len(data),
		"chunks", chunks,
		"content_type", contentType,
		"duration", result.Duration,
	)
	return result, nil
}

// readBody accumulates the body in arrival order and concatenates it once the
// stream ends. Nothing read so far is returned when the ceiling is exceeded.
func (f *Fetcher) readBody(body io.ReadCloser, total int64, onProgress ProgressFunc) ([]byte, int, error) {
	var (
		received int64
		chunks   [][]byte
		buf      = make([]byte, f.chunkSize)
	)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			received += int64(n)
			if received > f.maxSize {
				_ = body.Close()
				return nil, len(chunks), fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, f.maxSize)
			}
			chunks = append(chunks, bytes.Clone(buf[:n]))

			if onProgress != nil {
				onProgress(Progress{
					Received: received,
					Total:    max(total, 0),
					Percent:  percent(received, total),
					Chunks:   len(chunks),
				})
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, len(chunks), &TransportError{Err: fmt.Errorf("failed to read response body: %w", readErr)}
		}
	}

	full := make([]byte, received)
	offset := 0
	for _, chunk := range chunks {
		offset += copy(full[offset:], chunk)
	}
	return full, len(chunks), nil
}

// percent is min(100, round(received/total*100)), or 0 when total is unknown.
func percent(received, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(received) / float64(total) * 100))
	return min(p, 100)
}
