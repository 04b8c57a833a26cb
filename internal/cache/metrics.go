package cache

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	cacheMetricsOnce sync.Once
	lookupsTotal     otelmetric.Int64Counter
)

func initCacheMetrics() {
	meter := otel.Meter("legalmcp/cache")
	var err error
	lookupsTotal, err = meter.Int64Counter(
		"cache_lookups_total",
		otelmetric.WithDescription("Response cache lookups by backend and result"),
	)
	if err != nil {
		log.Printf("cache metrics init: cache_lookups_total: %v", err)
	}
}

func recordLookup(ctx context.Context, backend string, hit bool) {
	cacheMetricsOnce.Do(initCacheMetrics)
	if lookupsTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	lookupsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("result", result),
	))
}
