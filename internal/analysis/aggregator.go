package analysis

import (
	"errors"
	"sort"
	"time"

	"github.com/netrecon/oddstrace/internal/capture"
	"github.com/netrecon/oddstrace/internal/classify"
	"github.com/netrecon/oddstrace/internal/discover"
)

// ErrFinalized signals a caller logic defect: records kept flowing into an
// aggregator after its snapshot was taken. This fails loudly on purpose.
var ErrFinalized = errors.New("analysis: aggregator already finalized")

// Entry pairs a record with its classification. Per-category entry lists
// preserve arrival order, which downstream timeline reconstruction relies on.
type Entry struct {
	Record         capture.Record          `json:"record"`
	Classification classify.Classification `json:"classification"`
}

// Aggregator folds one page's classified record stream into a Summary. It is
// single-use and single-writer: records must arrive from one logical event
// stream, so no locking is needed. Concurrent page analyses each own their
// own Aggregator, merged after every one finalizes.
type Aggregator struct {
	runID     string
	pageURL   string
	startedAt time.Time

	counts     map[classify.Category]int
	byCategory map[classify.Category][]Entry
	providers  map[string]struct{}
	endpoints  []discover.Endpoint
	dns        map[string][]string
	dropped    int

	snapshot *Summary
}

func NewAggregator(runID, pageURL string) *Aggregator {
	return &Aggregator{
		runID:      runID,
		pageURL:    pageURL,
		startedAt:  time.Now().UTC(),
		counts:     make(map[classify.Category]int),
		byCategory: make(map[classify.Category][]Entry),
		providers:  make(map[string]struct{}),
		dns:        make(map[string][]string),
	}
}

// Add appends the record to its category bucket and folds the provider name
// into the deduplicated provider set.
func (a *Aggregator) Add(rec capture.Record, cls classify.Classification) error {
	if a.snapshot != nil {
		return ErrFinalized
	}
	a.counts[cls.Category]++
	a.byCategory[cls.Category] = append(a.byCategory[cls.Category], Entry{Record: rec, Classification: cls})
	if cls.Provider != "" {
		a.providers[cls.Provider] = struct{}{}
	}
	return nil
}

// SetEndpoints attaches discovered endpoint hints to the run.
func (a *Aggregator) SetEndpoints(eps []discover.Endpoint) error {
	if a.snapshot != nil {
		return ErrFinalized
	}
	a.endpoints = eps
	return nil
}

// AddDNSEvidence attaches resolver observations for a provider host.
func (a *Aggregator) AddDNSEvidence(host string, records []string) error {
	if a.snapshot != nil {
		return ErrFinalized
	}
	if len(records) > 0 {
		a.dns[host] = records
	}
	return nil
}

// NoteDropped records how many raw events the capture sink discarded, so a
// summary accounts for the whole stream even though dropped events never
// reach classification.
func (a *Aggregator) NoteDropped(n int) error {
	if a.snapshot != nil {
		return ErrFinalized
	}
	a.dropped = n
	return nil
}

// ExternalHosts returns the unique hosts seen in external-category entries,
// in first-seen order.
func (a *Aggregator) ExternalHosts() []string {
	seen := make(map[string]struct{})
	var hosts []string
	for _, e := range a.byCategory[classify.CategoryExternal] {
		host := e.Record.Host
		if host == "" {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts
}

// Finalize freezes the aggregator and returns its snapshot. It may be called
// early; the state is always consistent to snapshot. Repeated calls return
// the same snapshot.
func (a *Aggregator) Finalize() *Summary {
	if a.snapshot != nil {
		return a.snapshot
	}

	total := 0
	counts := make(map[classify.Category]int, len(a.counts))
	for cat, n := range a.counts {
		counts[cat] = n
		total += n
	}

	byCategory := make(map[classify.Category][]Entry, len(a.byCategory))
	for cat, entries := range a.byCategory {
		byCategory[cat] = append([]Entry(nil), entries...)
	}

	providers := make([]string, 0, len(a.providers))
	for p := range a.providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	dns := make(map[string][]string, len(a.dns))
	for host, recs := range a.dns {
		dns[host] = append([]string(nil), recs...)
	}

	a.snapshot = &Summary{
		RunID:       a.runID,
		PageURL:     a.pageURL,
		StartedAt:   a.startedAt,
		FinishedAt:  time.Now().UTC(),
		Total:       total,
		Dropped:     a.dropped,
		Counts:      counts,
		Providers:   providers,
		ByCategory:  byCategory,
		Endpoints:   append([]discover.Endpoint(nil), a.endpoints...),
		ProviderDNS: dns,
	}
	return a.snapshot
}
