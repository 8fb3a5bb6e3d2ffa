package analysis

import (
	"sort"
	"time"

	"github.com/netrecon/oddstrace/internal/classify"
	"github.com/netrecon/oddstrace/internal/discover"
)

// Summary is the frozen result of one page analysis (or a merge of several).
// It is read-only once produced; the report writers serialize it as they
// please.
type Summary struct {
	RunID      string    `json:"run_id"`
	PageURL    string    `json:"page_url,omitempty"`
	Pages      []string  `json:"pages,omitempty"` // set on merged summaries
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Total   int `json:"total_records"`
	Dropped int `json:"dropped_events,omitempty"`

	Counts     map[classify.Category]int     `json:"counts"`
	Providers  []string                      `json:"providers"`
	ByCategory map[classify.Category][]Entry `json:"by_category"`

	Endpoints   []discover.Endpoint `json:"discovered_endpoints,omitempty"`
	ProviderDNS map[string][]string `json:"provider_dns,omitempty"`
}

// Count returns the number of records in one category.
func (s *Summary) Count(cat classify.Category) int { return s.Counts[cat] }

// Merge combines finalized per-page summaries into one run-level summary.
// Entry order within a category follows the argument order, so per-page
// capture order is preserved inside each page's span.
func Merge(summaries ...*Summary) *Summary {
	merged := &Summary{
		Counts:      make(map[classify.Category]int),
		ByCategory:  make(map[classify.Category][]Entry),
		ProviderDNS: make(map[string][]string),
		Providers:   []string{},
	}
	providerSet := make(map[string]struct{})
	endpointSet := make(map[string]discover.Endpoint)

	for _, s := range summaries {
		if s == nil {
			continue
		}
		if merged.RunID == "" {
			merged.RunID = s.RunID
		}
		if page := s.PageURL; page != "" {
			merged.Pages = append(merged.Pages, page)
		}
		merged.Pages = append(merged.Pages, s.Pages...)
		if merged.StartedAt.IsZero() || s.StartedAt.Before(merged.StartedAt) {
			merged.StartedAt = s.StartedAt
		}
		if s.FinishedAt.After(merged.FinishedAt) {
			merged.FinishedAt = s.FinishedAt
		}
		merged.Total += s.Total
		merged.Dropped += s.Dropped
		for cat, n := range s.Counts {
			merged.Counts[cat] += n
		}
		for cat, entries := range s.ByCategory {
			merged.ByCategory[cat] = append(merged.ByCategory[cat], entries...)
		}
		for _, p := range s.Providers {
			providerSet[p] = struct{}{}
		}
		for _, ep := range s.Endpoints {
			endpointSet[ep.URL] = ep
		}
		for host, recs := range s.ProviderDNS {
			merged.ProviderDNS[host] = unionStrings(merged.ProviderDNS[host], recs)
		}
	}

	for p := range providerSet {
		merged.Providers = append(merged.Providers, p)
	}
	sort.Strings(merged.Providers)

	for _, ep := range endpointSet {
		merged.Endpoints = append(merged.Endpoints, ep)
	}
	sort.Slice(merged.Endpoints, func(i, j int) bool {
		return merged.Endpoints[i].URL < merged.Endpoints[j].URL
	})

	return merged
}

// unionStrings folds add into base, skipping duplicates and preserving
// first-seen order. base is never a caller's slice; Merge only passes its
// own accumulator here.
func unionStrings(base, add []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, s := range base {
		seen[s] = struct{}{}
	}
	for _, s := range add {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		base = append(base, s)
	}
	return base
}
