// Package discover scans captured textual bodies (HTML, JavaScript, JSON)
// for endpoint references the page never exercised during capture: API paths
// embedded in scripts, websocket URLs, apiUrl/endpoint assignments. Hits are
// hints for follow-up probing, not observed traffic, and carry a confidence
// grade accordingly.
package discover

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Endpoint is one discovered endpoint hint.
type Endpoint struct {
	URL        string     `json:"url"`
	Source     string     `json:"source"` // which pattern family matched
	Confidence Confidence `json:"confidence"`
}

var (
	apiPathRe   = regexp.MustCompile(`(?i)['"](/(?:api|ajax)/[^'"\s]+)['"]`)
	assignRe    = regexp.MustCompile(`(?i)(?:apiUrl|endpoint)\s*[:=]\s*['"]((?:https?:)?/[^'"\s]+)['"]`)
	websocketRe = regexp.MustCompile(`(?i)wss?://[^\s'"<>]+`)
)

// Scanner extracts endpoint hints from bodies and deduplicates them by
// resolved URL across a whole run.
type Scanner struct {
	base *url.URL
	seen map[string]Endpoint
}

// NewScanner builds a scanner resolving relative hits against baseURL.
// A nil base is fine; relative hits are then kept as-is.
func NewScanner(baseURL string) *Scanner {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}
	return &Scanner{base: base, seen: make(map[string]Endpoint)}
}

// Scan inspects one body. Non-textual records arrive with empty bodies and
// cost nothing.
func (s *Scanner) Scan(body string) {
	if body == "" {
		return
	}
	for _, m := range apiPathRe.FindAllStringSubmatch(body, -1) {
		s.record(m[1], "embedded_api_path", ConfidenceMedium)
	}
	for _, m := range assignRe.FindAllStringSubmatch(body, -1) {
		s.record(m[1], "endpoint_assignment", ConfidenceMedium)
	}
	for _, m := range websocketRe.FindAllString(body, -1) {
		s.record(strings.TrimRight(m, ".,;)"), "websocket_literal", ConfidenceHigh)
	}
}

func (s *Scanner) record(ref, source string, conf Confidence) {
	resolved := s.resolve(ref)
	if resolved == "" {
		return
	}
	if prev, ok := s.seen[resolved]; ok {
		// Keep the higher-confidence sighting.
		if prev.Confidence == ConfidenceHigh || conf != ConfidenceHigh {
			return
		}
	}
	s.seen[resolved] = Endpoint{URL: resolved, Source: source, Confidence: conf}
}

func (s *Scanner) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	if s.base == nil {
		return ref
	}
	return s.base.ResolveReference(u).String()
}

// Endpoints returns the deduplicated hints sorted by URL for stable output.
func (s *Scanner) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(s.seen))
	for _, ep := range s.seen {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
