package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadConfig()
		if cfg.Enabled {
			t.Error("metrics should default to disabled")
		}
		if cfg.Addr != "127.0.0.1:9090" {
			t.Errorf("Addr = %q", cfg.Addr)
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("METRICS_ENABLED", "true")
		t.Setenv("METRICS_ADDR", ":9191")
		cfg := LoadConfig()
		if !cfg.Enabled {
			t.Error("Enabled should be true")
		}
		if cfg.Addr != ":9191" {
			t.Errorf("Addr = %q", cfg.Addr)
		}
	})
}

func TestMetricsCounters(t *testing.T) {
	m := InitMetrics()

	m.IncrementRecordsCaptured("request")
	m.IncrementRecordsCaptured("request")
	m.IncrementRecordsCaptured("response")
	if got := testutil.ToFloat64(m.RecordsCaptured.WithLabelValues("request")); got != 2 {
		t.Errorf("captured(request) = %v, want 2", got)
	}

	m.IncrementRecordsDropped("bad_url")
	if got := testutil.ToFloat64(m.RecordsDropped.WithLabelValues("bad_url")); got != 1 {
		t.Errorf("dropped(bad_url) = %v, want 1", got)
	}

	m.IncrementRecordsClassified("websocket")
	m.IncrementRecordsClassified("websocket")
	if got := testutil.ToFloat64(m.RecordsClassified.WithLabelValues("websocket")); got != 2 {
		t.Errorf("classified(websocket) = %v, want 2", got)
	}

	m.IncrementProvidersDetected("Sportradar")
	if got := testutil.ToFloat64(m.ProvidersDetected.WithLabelValues("Sportradar")); got != 1 {
		t.Errorf("providers(Sportradar) = %v, want 1", got)
	}

	m.IncrementSinkErrors("kafka", "produce")
	if got := testutil.ToFloat64(m.SinkErrors.WithLabelValues("kafka", "produce")); got != 1 {
		t.Errorf("sink errors = %v, want 1", got)
	}
}

func TestInitMetricsSingleton(t *testing.T) {
	if InitMetrics() != InitMetrics() {
		t.Error("InitMetrics should return the same instance")
	}
}

func TestDisabledServerLifecycle(t *testing.T) {
	s := NewServer(Config{Enabled: false, Addr: "127.0.0.1:0"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
