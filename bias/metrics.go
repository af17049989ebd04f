package bias

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("codebreaker.bias")
	meter  = otel.Meter("codebreaker.bias")
)

var (
	// trialsTotal counts keystream trials observed, by cipher
	trialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codebreaker_bias_trials_total",
		Help: "Keystream trials observed by the bias analyzer",
	}, []string{"cipher"})

	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codebreaker_bias_analysis_duration_seconds",
		Help:    "Bias analysis duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"cipher"})
)

var (
	findingsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		findingsTotal, metricsErr = meter.Int64Counter(
			"codebreaker_bias_findings_total",
			metric.WithDescription("Flagged bias findings by cipher and kind"),
		)
	})
	return metricsErr
}

func startAnalysisSpan(ctx context.Context, cipher string, trials, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyzer.Analyze",
		trace.WithAttributes(
			attribute.String("bias.cipher", cipher),
			attribute.Int("bias.trials", trials),
			attribute.Int("bias.workers", workers),
		),
	)
}

func recordAnalysisMetrics(ctx context.Context, span trace.Span, r *Report) {
	span.SetAttributes(
		attribute.Int("bias.trials_run", r.Trials),
		attribute.Int("bias.flagged", len(r.Flagged)),
		attribute.Int("bias.keystream_flagged", len(r.KeystreamFlagged)),
		attribute.Float64("bias.max", r.MaxBias),
		attribute.Bool("bias.truncated", r.Truncated),
	)
	trialsTotal.WithLabelValues(r.Cipher).Add(float64(r.Trials))
	analysisDuration.WithLabelValues(r.Cipher).Observe(r.Duration.Seconds())

	if err := initMetrics(); err != nil {
		return
	}
	findingsTotal.Add(ctx, int64(len(r.Flagged)), metric.WithAttributes(
		attribute.String("cipher", r.Cipher),
		attribute.String("kind", "key"),
	))
	findingsTotal.Add(ctx, int64(len(r.KeystreamFlagged)), metric.WithAttributes(
		attribute.String("cipher", r.Cipher),
		attribute.String("kind", "keystream"),
	))
}
