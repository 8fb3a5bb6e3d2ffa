package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netrecon/oddstrace/internal/analysis"
	"github.com/netrecon/oddstrace/internal/browser"
	"github.com/netrecon/oddstrace/internal/metrics"
	"github.com/netrecon/oddstrace/internal/pipeline"
	"github.com/netrecon/oddstrace/internal/resolve"
	"github.com/netrecon/oddstrace/internal/sink"
	"github.com/netrecon/oddstrace/internal/stream"
	"github.com/netrecon/oddstrace/pkg/config"
)

func run(ctx context.Context, cfg config.Config, input string) error {
	if input == "" && len(cfg.Targets) == 0 {
		return errors.New("no targets configured; set TARGET_URLS or pass --target (or --input for offline replay)")
	}

	m := metrics.InitMetrics()
	metricsSrv := metrics.NewServer(metrics.LoadConfig())
	if err := metricsSrv.Start(ctx); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	sinks, err := buildSinks(cfg)
	if err != nil {
		return err
	}
	for _, s := range sinks {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start %s sink: %w", s.Name(), err)
		}
	}
	defer func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				log.Printf("close %s sink: %v", s.Name(), err)
			}
		}
	}()

	var streamSrv *stream.Server
	if cfg.StreamAddr != "" {
		streamSrv = stream.NewServer(cfg.StreamAddr)
		if err := streamSrv.Start(ctx); err != nil {
			return fmt.Errorf("start stream server: %w", err)
		}
	}

	var resolver pipeline.HostResolver
	if cfg.ResolveHint {
		resolver = resolve.New(cfg.ResolverAddr)
	}

	runID := uuid.NewString()
	emit := func(e analysis.Entry) {
		env := sink.RecordEnvelope(runID, e)
		for _, s := range sinks {
			if err := s.Enqueue(env); err != nil {
				log.Printf("enqueue to %s: %v", s.Name(), err)
				m.IncrementSinkErrors(s.Name(), "enqueue")
			}
		}
		if streamSrv != nil {
			streamSrv.Broadcast(env)
		}
	}

	var summaries []*analysis.Summary
	if input != "" {
		s, err := replayFile(ctx, runID, input, cfg, m, emit, resolver)
		if err != nil {
			return err
		}
		summaries = append(summaries, s)
	} else {
		driver, err := browser.Launch(cfg.Headless)
		if err != nil {
			return err
		}
		defer driver.Close()

		for _, target := range cfg.Targets {
			if ctx.Err() != nil {
				break
			}
			log.Printf("analyzing %s", target)
			m.ActivePages.Inc()
			start := time.Now()

			p := pipeline.New(runID, target, cfg, m, emit)
			if err := driver.CapturePage(ctx, target, cfg.NavTimeout, p); err != nil {
				log.Printf("capture %s: %v", target, err)
			}
			s := p.Finalize(ctx, resolver)

			m.ActivePages.Dec()
			m.ObservePageDuration(target, time.Since(start))
			log.Printf("page %s: %d records, providers=%v, dropped=%d",
				target, s.Total, s.Providers, s.Dropped)
			summaries = append(summaries, s)
		}
	}

	merged := analysis.Merge(summaries...)
	env := sink.SummaryEnvelope(merged)
	for _, s := range sinks {
		if err := s.Enqueue(env); err != nil {
			log.Printf("enqueue summary to %s: %v", s.Name(), err)
			m.IncrementSinkErrors(s.Name(), "enqueue")
		}
	}
	log.Printf("run %s: %d records across %d page(s), providers=%v, %d endpoint hint(s)",
		runID, merged.Total, len(summaries), merged.Providers, len(merged.Endpoints))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if streamSrv != nil {
		if err := streamSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("stream shutdown: %v", err)
		}
	}
	return metricsSrv.Shutdown(shutdownCtx)
}

func buildSinks(cfg config.Config) ([]sink.Sink, error) {
	var sinks []sink.Sink
	for _, name := range cfg.Outputs {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "log":
			sinks = append(sinks, sink.NewLogSink(cfg.LogPath))
		case "kafka":
			sinks = append(sinks, sink.NewKafkaSinkFromEnv())
		case "postgres", "pg":
			sinks = append(sinks, sink.NewPGSinkFromEnv())
		case "":
		default:
			return nil, fmt.Errorf("unknown output %q (want log, kafka, or postgres)", name)
		}
	}
	return sinks, nil
}
