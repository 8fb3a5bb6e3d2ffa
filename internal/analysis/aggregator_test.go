package analysis

import (
	"errors"
	"testing"

	"github.com/netrecon/oddstrace/internal/capture"
	"github.com/netrecon/oddstrace/internal/classify"
	"github.com/netrecon/oddstrace/internal/discover"
)

func apiEntry(url string) (capture.Record, classify.Classification) {
	return capture.Record{URL: url}, classify.Classification{Category: classify.CategoryAPI}
}

func externalEntry(url, provider string) (capture.Record, classify.Classification) {
	return capture.Record{URL: url}, classify.Classification{
		Category: classify.CategoryExternal,
		Provider: provider,
	}
}

func TestAggregatorAdd(t *testing.T) {
	t.Run("counts sum to records added", func(t *testing.T) {
		a := NewAggregator("run-1", "https://www.betika.com/")
		cats := []classify.Category{
			classify.CategoryAPI, classify.CategoryAPI, classify.CategoryAjax,
			classify.CategoryWebsocket, classify.CategoryStatic, classify.CategoryOther,
			classify.CategoryExternal,
		}
		for i, cat := range cats {
			cls := classify.Classification{Category: cat}
			if cat == classify.CategoryExternal {
				cls.Provider = "Sportradar"
			}
			if err := a.Add(capture.Record{URL: "https://x.test/"}, cls); err != nil {
				t.Fatalf("Add #%d: %v", i, err)
			}
		}
		s := a.Finalize()
		sum := 0
		for _, n := range s.Counts {
			sum += n
		}
		if sum != len(cats) || s.Total != len(cats) {
			t.Errorf("sum(counts) = %d, Total = %d, want %d", sum, s.Total, len(cats))
		}
	})

	t.Run("preserves insertion order per category", func(t *testing.T) {
		a := NewAggregator("run-1", "")
		urls := []string{"https://a.test/api/1", "https://a.test/api/2", "https://a.test/api/3"}
		for _, u := range urls {
			rec, cls := apiEntry(u)
			if err := a.Add(rec, cls); err != nil {
				t.Fatal(err)
			}
		}
		s := a.Finalize()
		got := s.ByCategory[classify.CategoryAPI]
		if len(got) != 3 {
			t.Fatalf("got %d api entries, want 3", len(got))
		}
		for i, u := range urls {
			if got[i].Record.URL != u {
				t.Errorf("entry %d = %q, want %q", i, got[i].Record.URL, u)
			}
		}
	})

	t.Run("dedupes providers", func(t *testing.T) {
		a := NewAggregator("run-1", "")
		for _, host := range []string{"api.sportradar.com", "lt.betradar.com"} {
			rec, cls := externalEntry("https://"+host+"/feed", "Sportradar")
			if err := a.Add(rec, cls); err != nil {
				t.Fatal(err)
			}
		}
		rec, cls := externalEntry("https://api.lsports.eu/feed", "LSports")
		if err := a.Add(rec, cls); err != nil {
			t.Fatal(err)
		}
		s := a.Finalize()
		want := []string{"LSports", "Sportradar"}
		if len(s.Providers) != 2 || s.Providers[0] != want[0] || s.Providers[1] != want[1] {
			t.Errorf("Providers = %v, want %v", s.Providers, want)
		}
	})
}

func TestAggregatorFinalize(t *testing.T) {
	t.Run("add after finalize fails loudly and leaves snapshot intact", func(t *testing.T) {
		a := NewAggregator("run-1", "")
		rec, cls := apiEntry("https://a.test/api/1")
		if err := a.Add(rec, cls); err != nil {
			t.Fatal(err)
		}
		s := a.Finalize()

		rec2, cls2 := apiEntry("https://a.test/api/2")
		if err := a.Add(rec2, cls2); !errors.Is(err, ErrFinalized) {
			t.Fatalf("Add after Finalize = %v, want ErrFinalized", err)
		}
		if err := a.NoteDropped(9); !errors.Is(err, ErrFinalized) {
			t.Errorf("NoteDropped after Finalize = %v, want ErrFinalized", err)
		}
		if s.Total != 1 || len(s.ByCategory[classify.CategoryAPI]) != 1 {
			t.Errorf("snapshot mutated after rejected Add: %+v", s)
		}
	})

	t.Run("finalize is repeatable", func(t *testing.T) {
		a := NewAggregator("run-1", "")
		first := a.Finalize()
		second := a.Finalize()
		if first != second {
			t.Error("repeated Finalize should return the same snapshot")
		}
	})

	t.Run("early finalize is consistent", func(t *testing.T) {
		a := NewAggregator("run-1", "")
		s := a.Finalize()
		if s.Total != 0 || len(s.Providers) != 0 {
			t.Errorf("empty snapshot not empty: %+v", s)
		}
		if s.FinishedAt.Before(s.StartedAt) {
			t.Error("FinishedAt before StartedAt")
		}
	})

	t.Run("carries endpoints, evidence, and drop count", func(t *testing.T) {
		a := NewAggregator("run-1", "")
		if err := a.SetEndpoints([]discover.Endpoint{{URL: "wss://feed.test/odds", Source: "websocket_literal", Confidence: discover.ConfidenceHigh}}); err != nil {
			t.Fatal(err)
		}
		if err := a.AddDNSEvidence("api.sportradar.com", []string{"cname edge.sportradar.com"}); err != nil {
			t.Fatal(err)
		}
		if err := a.NoteDropped(2); err != nil {
			t.Fatal(err)
		}
		s := a.Finalize()
		if len(s.Endpoints) != 1 || s.Endpoints[0].URL != "wss://feed.test/odds" {
			t.Errorf("Endpoints = %v", s.Endpoints)
		}
		if len(s.ProviderDNS["api.sportradar.com"]) != 1 {
			t.Errorf("ProviderDNS = %v", s.ProviderDNS)
		}
		if s.Dropped != 2 {
			t.Errorf("Dropped = %d, want 2", s.Dropped)
		}
	})
}

func TestMerge(t *testing.T) {
	build := func(page string, n int, provider string) *Summary {
		a := NewAggregator("run-1", page)
		for i := 0; i < n; i++ {
			rec, cls := apiEntry(page + "/api")
			if err := a.Add(rec, cls); err != nil {
				t.Fatal(err)
			}
		}
		if provider != "" {
			rec, cls := externalEntry("https://ext.test/feed", provider)
			if err := a.Add(rec, cls); err != nil {
				t.Fatal(err)
			}
		}
		return a.Finalize()
	}

	t.Run("sums counts and unions providers", func(t *testing.T) {
		s1 := build("https://www.betika.com/en-ke/", 2, "Sportradar")
		s2 := build("https://www.betika.com/en-ke/live", 3, "Sportradar")
		m := Merge(s1, s2)

		if m.Total != 7 {
			t.Errorf("Total = %d, want 7", m.Total)
		}
		if m.Counts[classify.CategoryAPI] != 5 {
			t.Errorf("api count = %d, want 5", m.Counts[classify.CategoryAPI])
		}
		if len(m.Providers) != 1 || m.Providers[0] != "Sportradar" {
			t.Errorf("Providers = %v, want single Sportradar", m.Providers)
		}
		if len(m.Pages) != 2 {
			t.Errorf("Pages = %v, want 2 entries", m.Pages)
		}
		if m.RunID != "run-1" {
			t.Errorf("RunID = %q", m.RunID)
		}
	})

	t.Run("concatenates entries in argument order", func(t *testing.T) {
		s1 := build("https://p1.test", 1, "")
		s2 := build("https://p2.test", 1, "")
		m := Merge(s1, s2)
		entries := m.ByCategory[classify.CategoryAPI]
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
		if entries[0].Record.URL != "https://p1.test/api" || entries[1].Record.URL != "https://p2.test/api" {
			t.Errorf("order wrong: %q then %q", entries[0].Record.URL, entries[1].Record.URL)
		}
	})

	t.Run("unions DNS evidence per host", func(t *testing.T) {
		dns := func(page string, recs ...string) *Summary {
			a := NewAggregator("run-1", page)
			if err := a.AddDNSEvidence("api.sportradar.com", recs); err != nil {
				t.Fatal(err)
			}
			return a.Finalize()
		}
		s1 := dns("https://p1.test", "cname edge.sportradar.com.", "a 203.0.113.5")
		s2 := dns("https://p2.test", "cname edge.sportradar.com.", "a 203.0.113.6")
		m := Merge(s1, s2)

		got := m.ProviderDNS["api.sportradar.com"]
		want := []string{"cname edge.sportradar.com.", "a 203.0.113.5", "a 203.0.113.6"}
		if len(got) != len(want) {
			t.Fatalf("ProviderDNS = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("ProviderDNS[%d] = %q, want %q", i, got[i], want[i])
			}
		}
		if len(s1.ProviderDNS["api.sportradar.com"]) != 2 {
			t.Errorf("merge mutated the source summary: %v", s1.ProviderDNS)
		}
	})

	t.Run("ignores nil summaries", func(t *testing.T) {
		m := Merge(nil, build("https://p1.test", 1, ""), nil)
		if m.Total != 1 {
			t.Errorf("Total = %d, want 1", m.Total)
		}
	})
}
