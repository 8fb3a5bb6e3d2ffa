// Package pipeline composes one page's analysis chain: capture sink ->
// classifier -> aggregator, with per-record fan-out for sinks and the
// observer stream. Data flows one way; no stage calls back into an earlier
// one. Each pipeline serves a single event stream, so everything here runs
// synchronously per event with no locking.
package pipeline

import (
	"context"
	"log"

	"github.com/netrecon/oddstrace/internal/analysis"
	"github.com/netrecon/oddstrace/internal/capture"
	"github.com/netrecon/oddstrace/internal/classify"
	"github.com/netrecon/oddstrace/internal/discover"
	"github.com/netrecon/oddstrace/internal/metrics"
	"github.com/netrecon/oddstrace/pkg/config"
)

// HostResolver is the optional DNS-evidence collaborator.
type HostResolver interface {
	Lookup(ctx context.Context, host string) ([]string, error)
}

type Pipeline struct {
	runID   string
	pageURL string

	sink       *capture.Sink
	classifier *classify.Classifier
	agg        *analysis.Aggregator
	scanner    *discover.Scanner
	m          *metrics.Metrics
	onRecord   func(analysis.Entry)
}

// New builds an isolated pipeline for one page. onRecord receives every
// classified record in capture order and may be nil.
func New(runID, pageURL string, cfg config.Config, m *metrics.Metrics, onRecord func(analysis.Entry)) *Pipeline {
	p := &Pipeline{
		runID:   runID,
		pageURL: pageURL,
		classifier: classify.New(classify.Config{
			SiteDomain:     cfg.SiteDomain,
			Providers:      cfg.Providers,
			ExternalHosts:  cfg.ExternalHosts,
			BodySignatures: cfg.BodySignatures,
			LiveKeywords:   cfg.LiveKeywords,
			StaticExts:     cfg.StaticExts,
		}),
		agg:      analysis.NewAggregator(runID, pageURL),
		scanner:  discover.NewScanner(pageURL),
		m:        m,
		onRecord: onRecord,
	}
	p.sink = capture.NewSink(runID, pageURL, cfg.BodyCap, p.handle,
		capture.WithDropHook(func(reason string) {
			if m != nil {
				m.IncrementRecordsDropped(reason)
			}
		}))
	return p
}

// OnRequest and OnResponse are the two callbacks the browser driver feeds.
func (p *Pipeline) OnRequest(raw capture.RawExchange)  { p.sink.OnRequest(raw) }
func (p *Pipeline) OnResponse(raw capture.RawExchange) { p.sink.OnResponse(raw) }

func (p *Pipeline) handle(rec capture.Record) {
	cls := p.classifier.Classify(rec)
	p.scanner.Scan(rec.Body)

	entry := analysis.Entry{Record: rec, Classification: cls}
	if err := p.agg.Add(rec, cls); err != nil {
		// Records arriving after finalize mean the driver outlived the run
		// teardown; surface the defect instead of quietly counting on.
		log.Printf("pipeline: %v (url=%s)", err, rec.URL)
		return
	}

	if p.m != nil {
		p.m.IncrementRecordsCaptured(string(rec.Direction))
		p.m.IncrementRecordsClassified(string(cls.Category))
		if cls.Provider != "" {
			p.m.IncrementProvidersDetected(cls.Provider)
		}
	}

	if p.onRecord != nil {
		p.onRecord(entry)
	}
}

// Finalize attaches discovery and DNS evidence, freezes the aggregator, and
// returns the page summary. The resolver may be nil.
func (p *Pipeline) Finalize(ctx context.Context, resolver HostResolver) *analysis.Summary {
	if err := p.agg.SetEndpoints(p.scanner.Endpoints()); err != nil {
		log.Printf("pipeline: %v", err)
	}
	if err := p.agg.NoteDropped(p.sink.Dropped()); err != nil {
		log.Printf("pipeline: %v", err)
	}
	if resolver != nil {
		for _, host := range p.agg.ExternalHosts() {
			records, err := resolver.Lookup(ctx, host)
			if err != nil {
				log.Printf("pipeline: dns evidence for %s: %v", host, err)
			}
			if err := p.agg.AddDNSEvidence(host, records); err != nil {
				log.Printf("pipeline: %v", err)
			}
		}
	}
	return p.agg.Finalize()
}
