package telemetry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupServesMetrics(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, Config{Service: "whisperia-test", Version: "dev", MetricsAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer tel.Shutdown(ctx)

	if tel.Addr() == "" {
		t.Fatal("metrics endpoint not bound")
	}

	counter, err := otel.Meter("telemetry_test").Int64Counter("whisperia.test.hits")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(ctx, 3)

	resp, err := http.Get("http://" + tel.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "whisperia_test_hits") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}

func TestShutdownWithoutServer(t *testing.T) {
	tel := &Telemetry{}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if tel.Addr() != "" {
		t.Errorf("Addr = %q, want empty", tel.Addr())
	}
}
