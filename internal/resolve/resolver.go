// Package resolve adds DNS evidence to detected provider hosts. A CNAME
// chain frequently points at the CDN or vendor actually fronting a host,
// which is one more observable signal for the run summary. Lookups are
// best-effort: failures produce empty evidence, never a failed run.
package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

type Resolver struct {
	server string
	client *dns.Client
}

func New(server string) *Resolver {
	return &Resolver{
		server: server,
		client: &dns.Client{Timeout: 5 * time.Second},
	}
}

// Lookup queries CNAME and A records for host and renders them as evidence
// strings ("cname edge.provider.net.", "a 203.0.113.5").
func (r *Resolver) Lookup(ctx context.Context, host string) ([]string, error) {
	var out []string
	for _, qtype := range []uint16{dns.TypeCNAME, dns.TypeA} {
		answers, err := r.query(ctx, host, qtype)
		if err != nil {
			return out, err
		}
		out = append(out, answers...)
	}
	return dedupe(out), nil
}

func (r *Resolver) query(ctx context.Context, host string, qtype uint16) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	return formatAnswers(in.Answer), nil
}

func formatAnswers(answers []dns.RR) []string {
	var out []string
	for _, rr := range answers {
		switch v := rr.(type) {
		case *dns.CNAME:
			out = append(out, "cname "+v.Target)
		case *dns.A:
			out = append(out, "a "+v.A.String())
		case *dns.AAAA:
			out = append(out, "aaaa "+v.AAAA.String())
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
