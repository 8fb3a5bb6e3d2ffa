package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/netrecon/oddstrace/internal/analysis"
	"github.com/netrecon/oddstrace/internal/capture"
	"github.com/netrecon/oddstrace/internal/classify"
	"github.com/netrecon/oddstrace/internal/sink"
	"github.com/netrecon/oddstrace/pkg/config"
)

// sampleEnvelopes builds a representative record-and-summary set for sink
// connectivity checks, covering every category a real run can produce.
func sampleEnvelopes() []sink.Envelope {
	runID := uuid.NewString()
	now := time.Now().UTC()

	entries := []analysis.Entry{
		{
			Record: capture.Record{
				RecordID: uuid.NewString(), RunID: runID, TS: now,
				Direction: capture.DirRequest,
				URL:       "https://www.betika.com/api/v1/odds?sport=football",
				Scheme:    "https", Host: "www.betika.com", Path: "/api/v1/odds",
				Method: "GET",
			},
			Classification: classify.Classification{Category: classify.CategoryAPI},
		},
		{
			Record: capture.Record{
				RecordID: uuid.NewString(), RunID: runID, TS: now.Add(time.Second),
				Direction: capture.DirRequest,
				URL:       "wss://feed.betika.com/odds",
				Scheme:    "wss", Host: "feed.betika.com", Path: "/odds",
				Method: "GET",
			},
			Classification: classify.Classification{Category: classify.CategoryWebsocket, Live: true},
		},
		{
			Record: capture.Record{
				RecordID: uuid.NewString(), RunID: runID, TS: now.Add(2 * time.Second),
				Direction: capture.DirResponse,
				URL:       "https://api.sportradar.com/odds/v1/match/5",
				Scheme:    "https", Host: "api.sportradar.com", Path: "/odds/v1/match/5",
				Status:    200, ContentType: "application/json",
				Body: `{"match":"sr:match:5","odds":{"home":2.1,"draw":3.4,"away":3.0}}`,
			},
			Classification: classify.Classification{
				Category:    classify.CategoryExternal,
				Provider:    "Sportradar",
				PayloadKind: classify.PayloadOdds,
			},
		},
	}

	envelopes := make([]sink.Envelope, 0, len(entries)+1)
	agg := analysis.NewAggregator(runID, "selftest")
	for _, e := range entries {
		envelopes = append(envelopes, sink.RecordEnvelope(runID, e))
		if err := agg.Add(e.Record, e.Classification); err != nil {
			log.Printf("selftest: %v", err)
		}
	}
	envelopes = append(envelopes, sink.SummaryEnvelope(agg.Finalize()))
	return envelopes
}

// runSinkSelfTest pushes the samples through every configured sink, the same
// path a real run uses, and reports per-sink results.
func runSinkSelfTest(ctx context.Context, cfg config.Config) error {
	sinks, err := buildSinks(cfg)
	if err != nil {
		return err
	}

	failures := 0
	for _, s := range sinks {
		if err := s.Start(ctx); err != nil {
			log.Printf("selftest: start %s: %v", s.Name(), err)
			failures++
			continue
		}
		ok := true
		for _, env := range sampleEnvelopes() {
			if err := s.Enqueue(env); err != nil {
				log.Printf("selftest: enqueue to %s: %v", s.Name(), err)
				ok = false
			}
		}
		if err := s.Close(); err != nil {
			log.Printf("selftest: close %s: %v", s.Name(), err)
			ok = false
		}
		if ok {
			log.Printf("selftest: %s sink OK", s.Name())
		} else {
			failures++
		}
	}

	if failures > 0 {
		log.Printf("selftest: %d sink(s) failed", failures)
	} else {
		log.Printf("selftest: all %d sink(s) passed", len(sinks))
	}
	return nil
}
