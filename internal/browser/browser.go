// Package browser drives headless Chromium via go-rod and feeds raw network
// events to a capture pipeline. It is the only component that does I/O
// waits: response bodies are fetched here, once per finished exchange,
// before the event is handed over. The driver observes; it never blocks or
// rewrites page traffic.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/netrecon/oddstrace/internal/capture"
)

// EventSink receives normalized-ready raw exchanges, one event at a time.
type EventSink interface {
	OnRequest(capture.RawExchange)
	OnResponse(capture.RawExchange)
}

type Driver struct {
	browser *rod.Browser
}

// Launch starts a Chromium instance and connects to it.
func Launch(headless bool) (*Driver, error) {
	controlURL, err := launcher.New().Headless(headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return &Driver{browser: b}, nil
}

func (d *Driver) Close() error {
	return d.browser.Close()
}

// CapturePage opens a page, navigates to target, and streams its network
// events into sink until the settle window (or ctx) expires. Response
// records are emitted when loading finishes so the body can be fetched in
// one call; responses still pending at the end are emitted body-less rather
// than lost. All sink calls go through an eventPump, so the event goroutine
// and the end-of-capture flush never reach the pipeline concurrently.
func (d *Driver) CapturePage(ctx context.Context, target string, settle time.Duration, sink EventSink) error {
	page, err := d.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return fmt.Errorf("browser: open page: %w", err)
	}
	defer page.Close()

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	page = page.Context(pctx)

	pump := newEventPump(sink)

	wait := page.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			pump.request(capture.RawExchange{
				URL:       e.Request.URL,
				Method:    e.Request.Method,
				Headers:   flattenHeaders(e.Request.Headers),
				Timestamp: time.Now().UTC(),
			})
		},
		func(e *proto.NetworkResponseReceived) {
			pump.stash(e.RequestID, e.Response)
		},
		func(e *proto.NetworkLoadingFinished) {
			pump.finish(e.RequestID, func() string { return fetchBody(page, e.RequestID) })
		},
		func(e *proto.NetworkWebSocketCreated) {
			// Websocket upgrades surface as their own event, not a request.
			pump.request(capture.RawExchange{
				URL:       e.URL,
				Method:    "GET",
				Timestamp: time.Now().UTC(),
			})
		},
	)
	go wait()

	if err := page.Navigate(target); err != nil {
		cancel()
		pump.close()
		return fmt.Errorf("browser: navigate %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		log.Printf("browser: wait load for %s: %v", target, err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(settle):
	}
	cancel()
	pump.close()
	return nil
}

func fetchBody(page *rod.Page, id proto.NetworkRequestID) string {
	res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page)
	if err != nil {
		return ""
	}
	if res.Base64Encoded {
		if decoded, err := base64.StdEncoding.DecodeString(res.Body); err == nil {
			return string(decoded)
		}
	}
	return res.Body
}

func flattenHeaders(h proto.NetworkHeaders) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v.Str()
	}
	return out
}
