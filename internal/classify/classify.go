package classify

import (
	"strings"

	"github.com/netrecon/oddstrace/internal/capture"
)

type Category string

const (
	CategoryAPI       Category = "api"
	CategoryAjax      Category = "ajax"
	CategoryWebsocket Category = "websocket"
	CategoryExternal  Category = "external"
	CategoryStatic    Category = "static"
	CategoryOther     Category = "other"
)

// Classification is derived from a record and immutable once computed.
// Provider is set only for external traffic; it never contradicts Category.
type Classification struct {
	Category    Category    `json:"category"`
	Provider    string      `json:"provider,omitempty"`
	Live        bool        `json:"live"`
	PayloadKind PayloadKind `json:"payload_kind,omitempty"`
}

// Config carries the classification tables. All matching is substring/keyword
// based and therefore heuristic: false positives and negatives are inherent
// (a path containing "live" by coincidence will flag as live traffic), and a
// detected provider host proves only that the browser talked to it, nothing
// about the target's backend.
type Config struct {
	// SiteDomain is the analyzed site's own registrable domain. Its hosts
	// are never classified external.
	SiteDomain string

	// Providers maps host substrings to provider display names.
	Providers map[string]string

	// ExternalHosts are extra allow-listed host substrings that classify as
	// external even without a Providers entry; their provider resolves to
	// "unknown" unless a body signature says otherwise.
	ExternalHosts []string

	// BodySignatures maps payload substrings to provider names, used as a
	// fallback when the host table has no entry.
	BodySignatures map[string]string

	LiveKeywords []string
	StaticExts   []string
}

// ProviderUnknown is reported for allow-listed external hosts that resolve
// to no table entry. Partial information beats dropping the record.
const ProviderUnknown = "unknown"

type Classifier struct {
	cfg Config
}

func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify assigns exactly one category per record using a fixed first-match
// rule order: websocket scheme, then api/ajax path, then external host, then
// static extension, then other. Protocol and host checks run before the
// generic extension check so a wss URL under an /api/ path stays websocket
// and a provider-hosted .js file stays external. Classify is a pure function
// of (record, config).
func (c *Classifier) Classify(rec capture.Record) Classification {
	cls := Classification{Category: c.categorize(rec)}

	if cls.Category == CategoryExternal {
		cls.Provider = c.resolveProvider(rec)
	}

	cls.Live = cls.Category == CategoryWebsocket || c.matchesLiveKeyword(rec)
	cls.PayloadKind = classifyPayload(rec.Body)

	return cls
}

func (c *Classifier) categorize(rec capture.Record) Category {
	if rec.Scheme == "ws" || rec.Scheme == "wss" {
		return CategoryWebsocket
	}

	path := strings.ToLower(rec.Path)
	if hasPathSegment(path, "api") {
		return CategoryAPI
	}
	if hasPathSegment(path, "ajax") {
		return CategoryAjax
	}

	if c.isExternalHost(rec.Host) {
		return CategoryExternal
	}

	for _, ext := range c.cfg.StaticExts {
		if ext != "" && strings.HasSuffix(path, strings.ToLower(ext)) {
			return CategoryStatic
		}
	}

	return CategoryOther
}

func (c *Classifier) isExternalHost(host string) bool {
	if host == "" || c.isOwnHost(host) {
		return false
	}
	if _, ok := lookupProvider(c.cfg.Providers, host); ok {
		return true
	}
	for _, h := range c.cfg.ExternalHosts {
		if h != "" && strings.Contains(host, strings.ToLower(h)) {
			return true
		}
	}
	return false
}

func (c *Classifier) isOwnHost(host string) bool {
	own := strings.ToLower(c.cfg.SiteDomain)
	if own == "" {
		return false
	}
	return host == own || strings.HasSuffix(host, "."+own)
}

func (c *Classifier) resolveProvider(rec capture.Record) string {
	if name, ok := lookupProvider(c.cfg.Providers, rec.Host); ok {
		return name
	}
	if name, ok := lookupSignature(c.cfg.BodySignatures, rec.Body); ok {
		return name
	}
	return ProviderUnknown
}

func (c *Classifier) matchesLiveKeyword(rec capture.Record) bool {
	url := strings.ToLower(rec.URL)
	body := strings.ToLower(rec.Body)
	for _, kw := range c.cfg.LiveKeywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(url, kw) || strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// hasPathSegment reports whether a lowercased path contains seg as a whole
// segment, so "/api/v1/odds" and "/v2/ajax" match but "/rapid/" does not.
func hasPathSegment(path, seg string) bool {
	for _, p := range strings.Split(path, "/") {
		if p == seg {
			return true
		}
	}
	return false
}
