package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/legalmcp/config"
	"go.opentelemetry.io/otel"
)

func TestSetupExposesOtelCounters(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, config.TelemetryConfig{}, Options{ServiceName: "legalmcp-test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer tel.Shutdown(ctx)

	counter, err := otel.Meter("legalmcp/test").Int64Counter("probe_total")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(ctx, 3)

	srv := httptest.NewServer(tel.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "probe_total") {
		t.Fatalf("expected probe_total in exposition, got:\n%s", body)
	}
	if tel.Tracer() == nil {
		t.Fatalf("expected a tracer")
	}
}

func TestNilTelemetryIsUsable(t *testing.T) {
	var tel *Telemetry
	if tel.Handler() == nil || tel.Tracer() == nil {
		t.Fatalf("nil telemetry should fall back to defaults")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
