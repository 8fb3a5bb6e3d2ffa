package sink

import (
	"context"

	"github.com/netrecon/oddstrace/internal/analysis"
)

// Envelope is the one payload shape sinks accept: either a single classified
// record or a finalized run summary.
type Envelope struct {
	Kind    string            `json:"kind"` // "record" or "summary"
	RunID   string            `json:"run_id,omitempty"`
	Record  *analysis.Entry   `json:"record,omitempty"`
	Summary *analysis.Summary `json:"summary,omitempty"`
}

const (
	KindRecord  = "record"
	KindSummary = "summary"
)

// RecordEnvelope wraps one classified record.
func RecordEnvelope(runID string, e analysis.Entry) Envelope {
	return Envelope{Kind: KindRecord, RunID: runID, Record: &e}
}

// SummaryEnvelope wraps a finalized summary.
func SummaryEnvelope(s *analysis.Summary) Envelope {
	runID := ""
	if s != nil {
		runID = s.RunID
	}
	return Envelope{Kind: KindSummary, RunID: runID, Summary: s}
}

// ID returns the stable identity of the payload, used as a partition key.
func (e Envelope) ID() string {
	if e.Kind == KindRecord && e.Record != nil {
		return e.Record.Record.RecordID
	}
	return e.RunID
}

type Sink interface {
	Start(ctx context.Context) error
	Enqueue(e Envelope) error
	Close() error
	Name() string // Returns the sink name for metrics and logging
}
