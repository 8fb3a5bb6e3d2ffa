package classify

import "strings"

// lookupProvider resolves a host against the host-substring table. The
// longest matching key wins so "betradar.sportradar.com" style hosts resolve
// to the most specific entry.
func lookupProvider(table map[string]string, host string) (string, bool) {
	host = strings.ToLower(host)
	best := ""
	for key := range table {
		k := strings.ToLower(key)
		if k == "" || !strings.Contains(host, k) {
			continue
		}
		if len(k) > len(best) {
			best = key
		}
	}
	if best == "" {
		return "", false
	}
	return table[best], true
}

// lookupSignature scans a payload for vendor data-format tells. Longest
// matching signature wins, mirroring the host lookup.
func lookupSignature(table map[string]string, body string) (string, bool) {
	if body == "" {
		return "", false
	}
	body = strings.ToLower(body)
	best := ""
	for key := range table {
		k := strings.ToLower(key)
		if k == "" || !strings.Contains(body, k) {
			continue
		}
		if len(k) > len(best) {
			best = key
		}
	}
	if best == "" {
		return "", false
	}
	return table[best], true
}
