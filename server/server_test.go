package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/gwdata/datasource"
	"github.com/sevigo/gwdata/fetcher"
	"github.com/sevigo/gwdata/parsers"
	logger "github.com/sevigo/gwdata/parsers/testing"
	"github.com/sevigo/gwdata/proxy"
	"github.com/sevigo/gwdata/schema"
	"github.com/sevigo/gwdata/server"
	"github.com/sevigo/gwdata/store"
)

const salesCSV = "region,amount\nnorth,10\nsouth,20\neast,30\n"

type fixture struct {
	remote   *datasource.Remote
	api      *httptest.Server
	upstream *httptest.Server
	release  chan struct{}
}

func newFixture(t *testing.T, opts ...datasource.Option) *fixture {
	t.Helper()
	return newFixtureFunc(t, func(string) []datasource.Option { return opts })
}

// newFixtureFunc builds options once the upstream address is known.
func newFixtureFunc(t *testing.T, optsFor func(upstreamURL string) []datasource.Option) *fixture {
	t.Helper()
	log, _ := logger.NewTestLogger(t)

	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/sales.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, salesCSV)
	})
	mux.HandleFunc("/slow.csv", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, salesCSV)
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	registry, err := parsers.RegisterRowParsers(log)
	require.NoError(t, err)

	remote := datasource.NewRemote(
		store.NewStaging(log),
		fetcher.New(fetcher.WithLogger(log)),
		registry,
		append([]datasource.Option{datasource.WithLogger(log)}, optsFor(upstream.URL)...)...,
	)

	p, err := proxy.New(proxy.WithLogger(log))
	require.NoError(t, err)

	srv := server.NewServer(server.Config{Remote: remote, Proxy: p, Logger: log})
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &fixture{remote: remote, api: api, upstream: upstream, release: release}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.api.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

type downloadResponse struct {
	State     schema.DownloadState `json:"state"`
	Name      string               `json:"name"`
	Rows      int                  `json:"rows"`
	Committed *schema.Snapshot     `json:"committed"`
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"), "request id middleware is mounted")

	req, err := http.NewRequest(http.MethodGet, f.api.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "trace-42")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-42", resp.Header.Get("X-Request-Id"))
}

func TestServer_Charsets(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/api/charsets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	opts := decode[[]map[string]string](t, body)
	require.NotEmpty(t, opts)
	assert.Equal(t, "utf-8", opts[0]["key"])
}

func TestServer_DownloadAndCommit(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/download", map[string]any{"url": f.upstream.URL + "/sales.csv"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	dl := decode[downloadResponse](t, body)
	assert.False(t, dl.State.Downloading)
	assert.Equal(t, 100, dl.State.ProgressPercent)
	assert.Equal(t, "Sales", dl.Name)
	assert.Equal(t, 3, dl.Rows)
	assert.Nil(t, dl.Committed)

	resp, _ = f.do(t, http.MethodGet, "/api/datasets/committed", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodPut, "/api/datasets/temporary/name", map[string]string{"name": " Q1 sales "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"name":"Q1 sales"}`, string(body))

	resp, body = f.do(t, http.MethodPost, "/api/datasets/commit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snapshot := decode[schema.Snapshot](t, body)
	assert.Equal(t, "Q1 sales", snapshot.Name)
	assert.Equal(t, 3, snapshot.Dataset.Len())

	resp, body = f.do(t, http.MethodGet, "/api/datasets/committed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, snapshot.ID, decode[schema.Snapshot](t, body).ID)
}

func TestServer_DownloadWithCommitFlag(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/download", map[string]any{
		"url":    f.upstream.URL + "/sales.csv",
		"commit": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dl := decode[downloadResponse](t, body)
	require.NotNil(t, dl.Committed)
	assert.Equal(t, "Sales", dl.Committed.Name)
	assert.Equal(t, dl.Committed.ID, f.remote.Staging().Committed().ID)

	// a later staged-only download reports no commit and leaves the snapshot alone
	resp, body = f.do(t, http.MethodPost, "/api/download", map[string]any{"url": f.upstream.URL + "/sales.csv"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode[downloadResponse](t, body).Committed)
	assert.Equal(t, dl.Committed.ID, f.remote.Staging().Committed().ID)
}

func TestServer_DownloadAutoCommit(t *testing.T) {
	f := newFixture(t, datasource.WithAutoCommit(true))

	var commits atomic.Int32
	f.remote.Staging().SubscribeCommitted(func(schema.Snapshot) { commits.Add(1) })

	resp, body := f.do(t, http.MethodPost, "/api/download", map[string]any{
		"url":    f.upstream.URL + "/sales.csv",
		"commit": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dl := decode[downloadResponse](t, body)
	require.NotNil(t, dl.Committed)
	assert.Equal(t, int32(1), commits.Load(), "the commit flag does not commit twice")
}

func TestServer_DownloadFailure(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/download", map[string]any{"url": f.upstream.URL + "/missing.csv"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	dl := decode[downloadResponse](t, body)
	assert.Equal(t, "fetch error: HTTP status 404", dl.State.ErrorMessage)
	assert.Equal(t, datasource.CodeFetchError, dl.State.ErrorCode)

	resp, body = f.do(t, http.MethodGet, "/api/download", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fetch error: HTTP status 404", decode[schema.DownloadState](t, body).ErrorMessage)
}

func TestServer_DownloadBadRequest(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing url", map[string]any{"encoding": "utf-8"}},
		{"blank url", map[string]any{"url": "   "}},
		{"unknown field", map[string]any{"url": "http://x", "bogus": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := f.do(t, http.MethodPost, "/api/download", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServer_RejectsConcurrentDownload(t *testing.T) {
	f := newFixture(t)

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(f.api.URL+"/api/download", "application/json",
			strings.NewReader(`{"url":"`+f.upstream.URL+`/slow.csv"}`))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, f.remote.Downloading, 2*time.Second, 5*time.Millisecond)

	resp, body := f.do(t, http.MethodPost, "/api/download", map[string]any{"url": f.upstream.URL + "/sales.csv"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	dl := decode[downloadResponse](t, body)
	assert.True(t, dl.State.Downloading)
	assert.Contains(t, dl.State.URL, "/slow.csv")

	close(f.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestServer_DownloadResource(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t)
		resp, _ := f.do(t, http.MethodPost, "/api/download/resource", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, body := f.do(t, http.MethodGet, "/api/resource", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"url":""}`, string(body))
	})

	t.Run("configured", func(t *testing.T) {
		f := newFixtureFunc(t, func(upstreamURL string) []datasource.Option {
			return []datasource.Option{datasource.WithResourceURL(upstreamURL + "/sales.csv")}
		})
		target := f.upstream.URL + "/sales.csv"

		resp, body := f.do(t, http.MethodGet, "/api/resource", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"url":"`+target+`"}`, string(body))

		resp, body = f.do(t, http.MethodPost, "/api/download/resource", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, 3, decode[downloadResponse](t, body).Rows)
	})
}

func TestServer_TemporaryAndPreview(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/api/datasets/temporary/preview", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/datasets/commit", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/download", map[string]any{"url": f.upstream.URL + "/sales.csv"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodGet, "/api/datasets/temporary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tmp := decode[struct {
		Name    string                `json:"name"`
		Dataset schema.TabularDataset `json:"dataset"`
	}](t, body)
	assert.Equal(t, "Sales", tmp.Name)
	assert.Len(t, tmp.Dataset.Rows, 3)
	assert.Len(t, tmp.Dataset.Fields, 2)

	resp, body = f.do(t, http.MethodGet, "/api/datasets/temporary/preview?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "<table>")
	assert.Contains(t, string(body), "north")
	assert.NotContains(t, string(body), "east")

	resp, _ = f.do(t, http.MethodGet, "/api/datasets/temporary/preview?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_CommitEvents(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/download", map[string]any{
		"url":    f.upstream.URL + "/sales.csv",
		"commit": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.api.URL+"/api/datasets/committed/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Contains(t, stream.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(stream.Body)
	waitFor := func(needle string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), needle) {
				return
			}
		}
		t.Fatalf("stream ended before %q arrived: %v", needle, lines.Err())
	}

	waitFor("datastar-patch-signals")
	waitFor(`"name":"Sales"`)
	waitFor("committed-preview")

	f.remote.Staging().UpdateTempName("Renamed")
	resp, _ = f.do(t, http.MethodPost, "/api/datasets/commit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	waitFor(`"name":"Renamed"`)
}

func TestServer_ProxyAndMetricsMounted(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/gw/proxy_view", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "No URL specified")

	resp, body = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "gwdata_proxy_requests_total")
}

func TestServer_ServeShutsDown(t *testing.T) {
	f := newFixture(t)
	srv := server.NewServer(server.Config{Remote: f.remote})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
