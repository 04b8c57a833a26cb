package transport

import (
	"context"
	"log"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	transportMetricsOnce sync.Once
	requestsTotal        otelmetric.Int64Counter
	retriesTotal         otelmetric.Int64Counter
	requestDuration      otelmetric.Float64Histogram
)

func initTransportMetrics() {
	meter := otel.Meter("legalmcp/transport")
	var err error
	requestsTotal, err = meter.Int64Counter(
		"transport_requests_total",
		otelmetric.WithDescription("Outbound HTTP attempts by source and status"),
	)
	if err != nil {
		log.Printf("transport metrics init: transport_requests_total: %v", err)
	}
	retriesTotal, err = meter.Int64Counter(
		"transport_retries_total",
		otelmetric.WithDescription("Retries scheduled after transient failures"),
	)
	if err != nil {
		log.Printf("transport metrics init: transport_retries_total: %v", err)
	}
	requestDuration, err = meter.Float64Histogram(
		"transport_request_duration_seconds",
		otelmetric.WithDescription("Latency of individual outbound attempts"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Printf("transport metrics init: transport_request_duration_seconds: %v", err)
	}
}

func recordAttempt(ctx context.Context, source string, status int, seconds float64) {
	transportMetricsOnce.Do(initTransportMetrics)
	attrs := otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", strconv.Itoa(status)),
	)
	if requestsTotal != nil {
		requestsTotal.Add(ctx, 1, attrs)
	}
	if requestDuration != nil {
		requestDuration.Record(ctx, seconds, otelmetric.WithAttributes(attribute.String("source", source)))
	}
}

func recordRetry(ctx context.Context, source string) {
	transportMetricsOnce.Do(initTransportMetrics)
	if retriesTotal != nil {
		retriesTotal.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("source", source)))
	}
}
