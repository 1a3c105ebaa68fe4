package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/muspy/assets"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram
	OutputBytes      metric.Int64Counter

	// Dev server metrics
	AssetRequestsTotal metric.Int64Counter
	CompressCacheHits  metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments come from the global provider, so they are no-ops until InitTelemetry runs.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// Tracer returns the tracer used for build spans
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"muspy.assets.builds.total",
		metric.WithDescription("Total number of asset builds, including watch rebuilds"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"muspy.assets.builds.errors.total",
		metric.WithDescription("Total number of asset builds that failed"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"muspy.assets.builds.duration",
		metric.WithDescription("Duration of asset builds"),
		metric.WithUnit("ms"),
	)

	m.OutputBytes, _ = meter.Int64Counter(
		"muspy.assets.output.bytes",
		metric.WithDescription("Bytes written by asset builds"),
		metric.WithUnit("By"),
	)

	m.AssetRequestsTotal, _ = meter.Int64Counter(
		"muspy.assets.http.requests.total",
		metric.WithDescription("Total number of asset requests served by the dev server"),
		metric.WithUnit("{request}"),
	)

	m.CompressCacheHits, _ = meter.Int64Counter(
		"muspy.assets.http.compress_cache.hits.total",
		metric.WithDescription("Responses served from the in-memory compression cache"),
		metric.WithUnit("{hit}"),
	)

	return m
}
