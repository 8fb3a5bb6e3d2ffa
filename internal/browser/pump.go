package browser

import (
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/netrecon/oddstrace/internal/capture"
)

// eventPump serializes every sink call behind one mutex. CDP event handlers
// run on the page's event goroutine, which cancel() does not join, so a
// handler can still be mid-flight when the capture window ends; the pump is
// the single point where those calls and the final flush are mutually
// excluded. After close the pump drops events instead of emitting into a
// torn-down pipeline.
type eventPump struct {
	mu      sync.Mutex
	sink    EventSink
	pending map[proto.NetworkRequestID]*proto.NetworkResponse
	closed  bool
}

func newEventPump(sink EventSink) *eventPump {
	return &eventPump{
		sink:    sink,
		pending: make(map[proto.NetworkRequestID]*proto.NetworkResponse),
	}
}

func (p *eventPump) request(raw capture.RawExchange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.sink.OnRequest(raw)
}

// stash holds a response until its loading-finished event arrives.
func (p *eventPump) stash(id proto.NetworkRequestID, resp *proto.NetworkResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.pending[id] = resp
}

// finish emits the stashed response for id, fetching its body via fetch.
// The fetch runs under the lock; a page's events are serialized anyway, so
// nothing useful could proceed concurrently.
func (p *eventPump) finish(id proto.NetworkRequestID, fetch func() string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	resp, ok := p.pending[id]
	if !ok {
		return
	}
	delete(p.pending, id)
	p.sink.OnResponse(capture.RawExchange{
		URL:       resp.URL,
		Status:    resp.Status,
		MIMEType:  resp.MIMEType,
		Headers:   flattenHeaders(resp.Headers),
		Body:      fetch(),
		Timestamp: time.Now().UTC(),
	})
}

// close flushes responses still pending, body-less rather than lost, and
// shuts the pump so straggling handlers emit nothing further.
func (p *eventPump) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, resp := range p.pending {
		p.sink.OnResponse(capture.RawExchange{
			URL:       resp.URL,
			Status:    resp.Status,
			MIMEType:  resp.MIMEType,
			Headers:   flattenHeaders(resp.Headers),
			Timestamp: time.Now().UTC(),
		})
	}
	p.pending = nil
}
