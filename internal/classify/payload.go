package classify

import "strings"

// PayloadKind is a coarse keyword-based label for what a textual payload
// appears to carry. Empty means the body had no recognizable betting data.
type PayloadKind string

const (
	PayloadLiveOdds PayloadKind = "live_odds"
	PayloadUpcoming PayloadKind = "upcoming_matches"
	PayloadLeague   PayloadKind = "league_data"
	PayloadOdds     PayloadKind = "odds_data"
	PayloadGeneral  PayloadKind = "general_betting_data"
	PayloadNone     PayloadKind = ""
)

var bettingKeywords = []string{
	"odds", "bet", "match", "team", "league", "sport", "game",
	"fixture", "event", "market", "outcome", "stake", "win",
	"football", "soccer",
}

// classifyPayload labels a body by keyword families, most specific first.
func classifyPayload(body string) PayloadKind {
	if body == "" {
		return PayloadNone
	}
	b := strings.ToLower(body)

	if containsAny(b, "live", "inplay", "running") {
		return PayloadLiveOdds
	}
	if containsAny(b, "upcoming", "fixture", "schedule") {
		return PayloadUpcoming
	}
	if containsAny(b, "league", "competition", "tournament") {
		return PayloadLeague
	}
	if containsAny(b, "odds", "market", "outcome") {
		return PayloadOdds
	}
	if containsAny(b, bettingKeywords...) {
		return PayloadGeneral
	}
	return PayloadNone
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
