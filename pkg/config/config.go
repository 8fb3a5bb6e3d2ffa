package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Targets      []string // page URLs to analyze
	SiteDomain   string   // the target site's own domain; its hosts are never "external"
	BodyCap      int      // max stored body characters per record
	NavTimeout   time.Duration
	Headless     bool
	Outputs      []string // enabled sinks: log, kafka, postgres
	LogPath      string   // NDJSON output path; empty means stderr
	StreamAddr   string   // live observer feed address; empty disables
	ResolveHint  bool     // DNS-enrich detected provider hosts
	ResolverAddr string   // upstream DNS server for provider enrichment

	LiveKeywords  []string
	StaticExts    []string
	ExternalHosts []string // extra allow-listed external host substrings

	// Provider detection tables. Providers maps a host substring to a
	// display name; BodySignatures maps a payload substring to the same.
	Providers      map[string]string
	BodySignatures map[string]string
}

func getOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
	switch v {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getStringSlice(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getStringMap parses "key=value,key2=value2" pairs. Malformed pairs are
// skipped rather than failing the whole load.
func getStringMap(k string, def map[string]string) map[string]string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	m := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		m[strings.ToLower(key)] = val
	}
	if len(m) == 0 {
		return def
	}
	return m
}

// DefaultProviders is the built-in host-substring lookup table for known
// odds/data vendors. Longest substring wins at classification time.
// Detection is a network-observation heuristic only: seeing traffic to one
// of these hosts says nothing verified about the target's backend.
func DefaultProviders() map[string]string {
	return map[string]string{
		"sportradar":   "Sportradar",
		"betradar":     "Sportradar",
		"lsports":      "LSports",
		"geniussports": "Genius Sports",
		"betgenius":    "Genius Sports",
		"kambi":        "Kambi",
		"betconstruct": "BetConstruct",
		"altenar":      "Altenar",
	}
}

// DefaultBodySignatures maps payload substrings to provider names. These are
// vendor data-format tells (e.g. Sportradar's "sr:" URN prefix).
func DefaultBodySignatures() map[string]string {
	return map[string]string{
		"sportradar":   "Sportradar",
		"betradar":     "Sportradar",
		"sr:match":     "Sportradar",
		"unified_odds": "Sportradar",
		"lsports":      "LSports",
		"betconstruct": "BetConstruct",
		"kambi":        "Kambi",
	}
}

func Load() Config {
	return Config{
		Targets:        getStringSlice("TARGET_URLS", ""),
		SiteDomain:     getOr("SITE_DOMAIN", ""),
		BodyCap:        getInt("BODY_CAP", 10000),
		NavTimeout:     getDuration("NAV_TIMEOUT", 30*time.Second),
		Headless:       getBool("HEADLESS", true),
		Outputs:        getStringSlice("OUTPUTS", "log"),
		LogPath:        getOr("LOG_PATH", ""),
		StreamAddr:     getOr("STREAM_ADDR", ""),
		ResolveHint:    getBool("RESOLVE_PROVIDERS", false),
		ResolverAddr:   getOr("RESOLVER_ADDR", "1.1.1.1:53"),
		LiveKeywords:   getStringSlice("LIVE_KEYWORDS", "live,inplay,update,ws://,wss://"),
		ExternalHosts:  getStringSlice("EXTERNAL_HOSTS", ""),
		StaticExts:     getStringSlice("STATIC_EXTS", ".js,.css,.png,.jpg,.jpeg,.gif,.svg,.ico,.woff,.woff2,.ttf,.map"),
		Providers:      getStringMap("PROVIDERS", DefaultProviders()),
		BodySignatures: getStringMap("PROVIDER_SIGNATURES", DefaultBodySignatures()),
	}
}
