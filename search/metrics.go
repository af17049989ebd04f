package search

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("codebreaker.search")
	meter  = otel.Meter("codebreaker.search")
)

var (
	// candidatesEvaluated counts decryptions scored, by shape
	candidatesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codebreaker_candidates_evaluated_total",
		Help: "Candidate plaintexts scored by shape",
	}, []string{"shape"})

	// searchDuration tracks how long each run takes
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codebreaker_search_duration_seconds",
		Help:    "Search run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"shape", "mode"})
)

var (
	runsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		runsTotal, metricsErr = meter.Int64Counter(
			"codebreaker_search_runs_total",
			metric.WithDescription("Search runs by shape, mode and outcome"),
		)
	})
	return metricsErr
}

func startSearchSpan(ctx context.Context, shape, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine."+mode,
		trace.WithAttributes(
			attribute.String("search.shape", shape),
			attribute.String("search.mode", mode),
		),
	)
}

func setSearchSpanResult(span trace.Span, res *Result) {
	span.SetAttributes(
		attribute.Int("search.evaluated", res.Evaluated),
		attribute.Int("search.candidates", len(res.Candidates)),
		attribute.Bool("search.truncated", res.Truncated),
		attribute.String("search.status", res.Status),
	)
}

func recordSearchMetrics(ctx context.Context, res *Result, mode string, duration time.Duration) {
	candidatesEvaluated.WithLabelValues(res.Shape).Add(float64(res.Evaluated))
	searchDuration.WithLabelValues(res.Shape, mode).Observe(duration.Seconds())

	if err := initMetrics(); err != nil {
		return
	}
	runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("shape", res.Shape),
		attribute.String("mode", mode),
		attribute.String("status", res.Status),
	))
}
