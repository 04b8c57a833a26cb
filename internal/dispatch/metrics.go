package dispatch

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

const (
	statusOK      = "ok"
	statusCached  = "cached"
	statusError   = "error"
	statusInvalid = "invalid"
	statusUnknown = "unknown"
)

var (
	dispatchMetricsOnce sync.Once
	callsTotal          otelmetric.Int64Counter
	callDuration        otelmetric.Float64Histogram
)

func initDispatchMetrics() {
	meter := otel.Meter("legalmcp/dispatch")
	var err error
	callsTotal, err = meter.Int64Counter(
		"tool_calls_total",
		otelmetric.WithDescription("Tool calls by tool and status"),
	)
	if err != nil {
		log.Printf("dispatch metrics init: tool_calls_total: %v", err)
	}
	callDuration, err = meter.Float64Histogram(
		"tool_call_duration_seconds",
		otelmetric.WithDescription("Tool call latency"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Printf("dispatch metrics init: tool_call_duration_seconds: %v", err)
	}
}

func recordCall(ctx context.Context, tool, status string, seconds float64) {
	dispatchMetricsOnce.Do(initDispatchMetrics)
	attrs := otelmetric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	if callsTotal != nil {
		callsTotal.Add(ctx, 1, attrs)
	}
	if callDuration != nil && status != statusUnknown {
		callDuration.Record(ctx, seconds, attrs)
	}
}
