// Package metrics 暴露解析引擎的 Prometheus 指标，注册在默认 Registry 上。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_hub_resolutions_total",
			Help: "Total number of file resolutions by category and source",
		},
		[]string{"category", "source"},
	)

	resolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_hub_resolve_duration_seconds",
			Help:    "Time spent resolving a file, including upstream attempts",
			Buckets: prometheus.DefBuckets,
		},
	)

	upstreamFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_hub_upstream_fetches_total",
			Help: "Total upstream candidate downloads by result",
		},
		[]string{"result"},
	)

	upstreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_hub_upstream_bytes_total",
			Help: "Total bytes downloaded from upstream origins",
		},
	)

	listingEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asset_hub_listing_entries",
			Help: "Number of entries in the most recent listing of an instance",
		},
		[]string{"instance"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordResolution 记录一次解析的类别、来源与耗时。
func RecordResolution(category, source string, duration time.Duration) {
	resolutionsTotal.WithLabelValues(category, source).Inc()
	resolveDuration.Observe(duration.Seconds())
}

// RecordUpstreamFetch 记录一次候选下载的结果。
func RecordUpstreamFetch(bytes int64, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	upstreamFetchesTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		upstreamBytesTotal.Add(float64(bytes))
	}
}

// SetListingEntries 记录实例最近一次列表的条目数。
func SetListingEntries(instance string, count int) {
	listingEntries.WithLabelValues(instance).Set(float64(count))
}
