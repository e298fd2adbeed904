// Package proxy serves remote resources from the local origin so browsers can
// read them without cross-origin restrictions.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sevigo/gwdata/metrics"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxSize   = 1024 * 1024 * 1024
	DefaultChunkSize = 4096

	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36" +
		" (KHTML, like Gecko) Chrome/94.0.4606.72 Safari/537.36"
)

type options struct {
	timeout       time.Duration
	maxSize       int64
	chunkSize     int
	downloadProxy string
	userAgent     string
	transport     http.RoundTripper
	logger        *slog.Logger
}

// Option configures the proxy handler.
type Option func(*options)

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxSize caps the number of bytes relayed per request.
func WithMaxSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithDownloadProxy routes outbound requests through an HTTP proxy.
func WithDownloadProxy(rawURL string) Option {
	return func(o *options) {
		o.downloadProxy = rawURL
	}
}

func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithTransport replaces the outbound transport. Timeout and download proxy
// settings do not apply to a custom transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Handler relays GET /gw/proxy_view?url=... to the remote resource.
type Handler struct {
	client    *http.Client
	maxSize   int64
	chunkSize int
	userAgent string
	logger    *slog.Logger
}

// New creates a proxy handler. It fails only when the download proxy URL is
// invalid.
func New(opts ...Option) (*Handler, error) {
	o := &options{
		timeout:   DefaultTimeout,
		maxSize:   DefaultMaxSize,
		chunkSize: DefaultChunkSize,
		userAgent: defaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	transport := o.transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.DialContext = (&net.Dialer{Timeout: o.timeout, KeepAlive: 30 * time.Second}).DialContext
		t.ResponseHeaderTimeout = o.timeout
		if o.downloadProxy != "" {
			proxyURL, err := url.Parse(o.downloadProxy)
			if err != nil || proxyURL.Scheme == "" || proxyURL.Host == "" {
				return nil, fmt.Errorf("invalid download proxy %q", o.downloadProxy)
			}
			t.Proxy = http.ProxyURL(proxyURL)
		}
		transport = t
	}

	return &Handler{
		client:    &http.Client{Transport: transport},
		maxSize:   o.maxSize,
		chunkSize: o.chunkSize,
		userAgent: o.userAgent,
		logger:    o.logger.With("component", "proxy"),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.fail(w, http.StatusNotFound, "No URL specified")
		return
	}
	h.proxyResource(w, r, rawURL)
}

func (h *Handler) proxyResource(w http.ResponseWriter, r *http.Request, rawURL string) {
	h.logger.Debug("Proxying resource", "url", rawURL)

	parts, err := url.Parse(rawURL)
	if err != nil || parts.Scheme == "" || parts.Host == "" {
		h.fail(w, http.StatusConflict, "Invalid URL.")
		return
	}

	ctx := r.Context()
	header := http.Header{}
	if rng := r.Header.Get("Range"); rng != "" {
		header.Set("Range", rng)
	}
	header.Set("User-Agent", h.userAgent)

	resp, err := h.do(ctx, http.MethodHead, rawURL, header)
	if err != nil {
		h.failTransport(w, err)
		return
	}
	didGet := false

	// Some servers refuse HEAD outright; ask for the body instead.
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusMethodNotAllowed:
		resp.Body.Close()
		resp, err = h.do(ctx, http.MethodGet, rawURL, header)
		if err != nil {
			h.failTransport(w, err)
			return
		}
		didGet = true
	}

	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		h.fail(w, http.StatusConflict, fmt.Sprintf("Could not proxy resource. Server responded with %d %s",
			resp.StatusCode, http.StatusText(resp.StatusCode)))
		return
	}

	if !didGet {
		resp.Body.Close()
		resp, err = h.do(ctx, http.MethodGet, rawURL, header)
		if err != nil {
			h.failTransport(w, err)
			return
		}
	}
	defer resp.Body.Close()

	if resp.ContentLength > h.maxSize {
		h.fail(w, http.StatusConflict, "Content is too large to be proxied.")
		return
	}

	out := w.Header()
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Set("Content-Type", ct)
	}
	if resp.ContentLength >= 0 {
		out.Set("Content-Length", resp.Header.Get("Content-Length"))
	}
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		out.Set("Content-Range", cr)
	}
	out.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)
	metrics.RecordProxyRequest(resp.StatusCode)

	h.stream(w, resp.Body, rawURL)
}

// stream copies body to w chunk by chunk and stops once the total would pass
// the size limit. The client sees a truncated body in that case.
func (h *Handler) stream(w http.ResponseWriter, body io.Reader, rawURL string) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, h.chunkSize)
	var total int64

	for {
		n, err := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > h.maxSize {
				h.logger.Warn("Proxying stopped: content exceeded max size", "url", rawURL, "max_size", h.maxSize)
				return
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.logger.Debug("Client went away", "url", rawURL, "error", werr)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Warn("Proxying stopped: upstream read failed", "url", rawURL, "error", err)
			}
			return
		}
	}
}

func (h *Handler) do(ctx context.Context, method, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()
	return h.client.Do(req)
}

func (h *Handler) failTransport(w http.ResponseWriter, err error) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		h.fail(w, http.StatusGatewayTimeout, "Could not proxy resource because the connection timed out.")
		return
	}
	h.fail(w, http.StatusBadGateway, fmt.Sprintf("Could not proxy resource because a connection error occurred. %v", err))
}

func (h *Handler) fail(w http.ResponseWriter, code int, msg string) {
	metrics.RecordProxyRequest(code)
	h.logger.Debug("Proxy request rejected", "status", code, "reason", msg)
	http.Error(w, msg, code)
}
