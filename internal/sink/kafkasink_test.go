package sink

import (
	"context"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

func TestNewKafkaSinkFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := NewKafkaSinkFromEnv()
		if len(s.config.Brokers) != 1 || s.config.Brokers[0] != "localhost:9092" {
			t.Errorf("Brokers = %v", s.config.Brokers)
		}
		if s.config.Topic != "oddstrace.traffic" {
			t.Errorf("Topic = %q", s.config.Topic)
		}
		if s.config.Acks != "all" {
			t.Errorf("Acks = %q", s.config.Acks)
		}
	})

	t.Run("reads env overrides", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")
		t.Setenv("KAFKA_TOPIC", "recon.traffic")
		t.Setenv("KAFKA_ACKS", "1")
		t.Setenv("KAFKA_COMPRESSION", "snappy")
		t.Setenv("KAFKA_SASL_MECHANISM", "PLAIN")
		t.Setenv("KAFKA_SASL_USER", "svc")
		t.Setenv("KAFKA_SASL_PASSWORD", "secret")
		t.Setenv("KAFKA_TLS_SKIP_VERIFY", "true")

		s := NewKafkaSinkFromEnv()
		if len(s.config.Brokers) != 2 || s.config.Brokers[1] != "b2:9092" {
			t.Errorf("Brokers = %v", s.config.Brokers)
		}
		if s.config.Topic != "recon.traffic" {
			t.Errorf("Topic = %q", s.config.Topic)
		}
		if s.config.Acks != "1" {
			t.Errorf("Acks = %q", s.config.Acks)
		}
		if s.config.Compression != "snappy" {
			t.Errorf("Compression = %q", s.config.Compression)
		}
		if s.config.SASLMechanism != "PLAIN" || s.config.SASLUser != "svc" {
			t.Errorf("SASL config = %+v", s.config)
		}
		if !s.config.TLSSkipVerify {
			t.Error("TLSSkipVerify should be true")
		}
	})
}

func TestKafkaSinkEnqueueBeforeStart(t *testing.T) {
	s := NewKafkaSink([]string{"localhost:9092"}, "recon.traffic")
	if err := s.Enqueue(RecordEnvelope("run-1", testEntry("rec-1", "https://a.test/"))); err == nil {
		t.Error("expected error when producer not initialized")
	}
}

func TestKafkaSinkCloseWithoutStart(t *testing.T) {
	s := NewKafkaSink([]string{"localhost:9092"}, "recon.traffic")
	if err := s.Close(); err != nil {
		t.Errorf("Close without Start should be nil, got %v", err)
	}
}

func TestDrainDeliveryReports(t *testing.T) {
	t.Run("returns when the events channel closes", func(t *testing.T) {
		events := make(chan kafka.Event, 1)
		events <- kafka.NewError(kafka.ErrAllBrokersDown, "test", false)
		close(events)

		done := make(chan struct{})
		go func() {
			drainDeliveryReports(context.Background(), events)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("drain did not return after channel close")
		}
	})

	t.Run("returns on context cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		events := make(chan kafka.Event)

		done := make(chan struct{})
		go func() {
			drainDeliveryReports(ctx, events)
			close(done)
		}()

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("drain did not return after cancel")
		}
	})
}
