package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the Prometheus metrics for the capture pipeline
type Metrics struct {
	// Counters
	RecordsCaptured   *prometheus.CounterVec
	RecordsDropped    *prometheus.CounterVec
	RecordsClassified *prometheus.CounterVec
	ProvidersDetected *prometheus.CounterVec
	SinkErrors        *prometheus.CounterVec

	// Gauges
	ActivePages prometheus.Gauge

	// Histograms
	PageDuration *prometheus.HistogramVec
}

// Config holds configuration for the metrics server
type Config struct {
	Enabled     bool
	Addr        string
	TLSCert     string
	TLSKey      string
	ClientCA    string
	RequireTLS  bool
	RequireAuth bool
}

// LoadConfig loads metrics configuration from environment variables
func LoadConfig() Config {
	return Config{
		Enabled:     getBool("METRICS_ENABLED", false),
		Addr:        getOr("METRICS_ADDR", "127.0.0.1:9090"),
		TLSCert:     getOr("METRICS_TLS_CERT", ""),
		TLSKey:      getOr("METRICS_TLS_KEY", ""),
		ClientCA:    getOr("METRICS_CLIENT_CA", ""),
		RequireTLS:  getBool("METRICS_REQUIRE_TLS", false),
		RequireAuth: getBool("METRICS_REQUIRE_AUTH", false),
	}
}

// NewMetrics creates and registers all pipeline metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsCaptured: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddstrace_records_captured_total",
				Help: "Total normalized records produced by capture sinks",
			},
			[]string{"direction"},
		),

		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddstrace_records_dropped_total",
				Help: "Total raw events dropped at the capture boundary",
			},
			[]string{"reason"},
		),

		RecordsClassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddstrace_records_classified_total",
				Help: "Total records classified, by category",
			},
			[]string{"category"},
		),

		ProvidersDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddstrace_providers_detected_total",
				Help: "Total external-provider sightings, by provider name",
			},
			[]string{"provider"},
		),

		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddstrace_sink_errors_total",
				Help: "Total errors writing to a sink",
			},
			[]string{"sink", "error_type"},
		),

		ActivePages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "oddstrace_active_pages",
				Help: "Pages currently under analysis",
			},
		),

		PageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddstrace_page_duration_seconds",
				Help:    "End-to-end analysis duration per page",
				Buckets: []float64{1, 2.5, 5, 10, 15, 30, 45, 60, 120},
			},
			[]string{"page"},
		),
	}

	// Register all metrics
	prometheus.MustRegister(m.RecordsCaptured)
	prometheus.MustRegister(m.RecordsDropped)
	prometheus.MustRegister(m.RecordsClassified)
	prometheus.MustRegister(m.ProvidersDetected)
	prometheus.MustRegister(m.SinkErrors)
	prometheus.MustRegister(m.ActivePages)
	prometheus.MustRegister(m.PageDuration)

	return m
}

// Server represents the metrics HTTP server
type Server struct {
	server *http.Server
	config Config
}

// NewServer creates a new metrics server
func NewServer(config Config) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.RequireTLS && config.TLSCert != "" && config.TLSKey != "" {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		if config.ClientCA != "" {
			clientCAs, err := loadCertPool(config.ClientCA)
			if err != nil {
				log.Printf("metrics: failed to load client CA: %v", err)
			} else {
				tlsConfig.ClientCAs = clientCAs
				tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
				log.Printf("metrics: mTLS enabled with client CA: %s", config.ClientCA)
			}
		}

		srv.TLSConfig = tlsConfig
	}

	return &Server{
		server: srv,
		config: config,
	}
}

// Start starts the metrics server in a separate goroutine
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		log.Printf("metrics: disabled (METRICS_ENABLED=false)")
		return nil
	}

	go func() {
		var err error
		if s.config.RequireTLS && s.config.TLSCert != "" && s.config.TLSKey != "" {
			log.Printf("metrics: HTTPS server listening on %s", s.config.Addr)
			err = s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
		} else {
			log.Printf("metrics: HTTP server listening on %s", s.config.Addr)
			err = s.server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Printf("metrics: server error: %v", err)
		}
	}()

	// Wait for server to start (give it a moment)
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	log.Printf("metrics: shutting down server...")
	return s.server.Shutdown(ctx)
}

// Helper functions
func getOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func loadCertPool(certFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(certFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", certFile)
	}
	return pool, nil
}

// Global metrics instance
var defaultMetrics *Metrics

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	if defaultMetrics == nil {
		defaultMetrics = NewMetrics()
	}
	return defaultMetrics
}

// Convenience methods for common operations
func (m *Metrics) IncrementRecordsCaptured(direction string) {
	m.RecordsCaptured.WithLabelValues(direction).Inc()
}

func (m *Metrics) IncrementRecordsDropped(reason string) {
	m.RecordsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementRecordsClassified(category string) {
	m.RecordsClassified.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementProvidersDetected(provider string) {
	m.ProvidersDetected.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncrementSinkErrors(sink, errorType string) {
	m.SinkErrors.WithLabelValues(sink, errorType).Inc()
}

func (m *Metrics) ObservePageDuration(page string, duration time.Duration) {
	m.PageDuration.WithLabelValues(page).Observe(duration.Seconds())
}
