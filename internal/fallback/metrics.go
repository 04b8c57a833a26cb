package fallback

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	fallbackMetricsOnce sync.Once
	stepsTotal          otelmetric.Int64Counter
	escalationsTotal    otelmetric.Int64Counter
)

func initFallbackMetrics() {
	meter := otel.Meter("legalmcp/fallback")
	var err error
	stepsTotal, err = meter.Int64Counter(
		"fallback_steps_total",
		otelmetric.WithDescription("Strategy steps executed by outcome"),
	)
	if err != nil {
		log.Printf("fallback metrics init: fallback_steps_total: %v", err)
	}
	escalationsTotal, err = meter.Int64Counter(
		"browser_escalations_total",
		otelmetric.WithDescription("Static fetches escalated to headless rendering"),
	)
	if err != nil {
		log.Printf("fallback metrics init: browser_escalations_total: %v", err)
	}
}

func recordStep(ctx context.Context, source, step, result string) {
	fallbackMetricsOnce.Do(initFallbackMetrics)
	if stepsTotal == nil {
		return
	}
	stepsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("step", step),
		attribute.String("result", result),
	))
}

func recordEscalation(ctx context.Context, source, reason string) {
	fallbackMetricsOnce.Do(initFallbackMetrics)
	if escalationsTotal == nil {
		return
	}
	escalationsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("reason", reason),
	))
}
