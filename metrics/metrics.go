// Package metrics exposes Prometheus collectors for downloads, commits and the
// resource proxy.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gwdata"

// OutcomeSuccess labels successful downloads; failures carry their error code.
const OutcomeSuccess = "success"

var (
	// downloadsTotal counts download attempts.
	// Labels: outcome (success, or the error code of the failure)
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloads_total",
		Help:      "Total remote download attempts by outcome",
	}, []string{"outcome"})

	downloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "download_bytes",
		Help:      "Size of successfully downloaded payloads in bytes",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8), // 1 KiB to 16 MiB
	})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "download_duration_seconds",
		Help:      "Duration of download attempts including parsing",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	commitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commits_total",
		Help:      "Total commits of the temporary dataset",
	})

	// proxyRequestsTotal counts proxied resource requests.
	// Labels: code (HTTP status returned to the client)
	proxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proxy_requests_total",
		Help:      "Total resource proxy requests by response status",
	}, []string{"code"})
)

// RecordDownload records the outcome of one download attempt.
func RecordDownload(outcome string, bytes int, duration time.Duration) {
	downloadsTotal.WithLabelValues(outcome).Inc()
	downloadDuration.Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		downloadBytes.Observe(float64(bytes))
	}
}

func RecordCommit() {
	commitsTotal.Inc()
}

func RecordProxyRequest(code int) {
	proxyRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}
