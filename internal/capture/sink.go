package capture

import (
	"log"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Sink normalizes raw driver events into Records and hands them downstream.
// It is observe-only: it never blocks, retries, or mutates driver traffic,
// so page loading proceeds identically whether or not a record survives
// normalization. One Sink serves exactly one page's event stream.
type Sink struct {
	runID   string
	pageURL string
	bodyCap int

	emit   func(Record)
	onDrop func(reason string)

	dropped int
}

// DropReason values reported through the OnDrop hook.
const (
	DropBadURL = "bad_url"
)

type SinkOption func(*Sink)

// WithDropHook registers a callback invoked once per dropped event.
func WithDropHook(fn func(reason string)) SinkOption {
	return func(s *Sink) { s.onDrop = fn }
}

func NewSink(runID, pageURL string, bodyCap int, emit func(Record), opts ...SinkOption) *Sink {
	s := &Sink{
		runID:   runID,
		pageURL: pageURL,
		bodyCap: bodyCap,
		emit:    emit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnRequest normalizes an outgoing request event. Unparseable URLs are
// dropped with a warning; the driver has already been told to continue the
// request, so the page is never held up by a drop.
func (s *Sink) OnRequest(raw RawExchange) {
	rec, ok := s.newRecord(raw, DirRequest)
	if !ok {
		return
	}
	rec.Body, rec.Truncated = capBody(raw.Body, s.bodyCap)
	s.emit(rec)
}

// OnResponse normalizes a response event. Only textual/JSON-ish bodies are
// stored; binary payloads keep an empty body but the record still flows, so
// downstream counting sees every exchange. Oversized bodies are truncated to
// the cap rather than dropped.
func (s *Sink) OnResponse(raw RawExchange) {
	rec, ok := s.newRecord(raw, DirResponse)
	if !ok {
		return
	}
	rec.Status = raw.Status
	rec.ContentType = raw.MIMEType
	if textualContent(raw.MIMEType) {
		rec.Body, rec.Truncated = capBody(raw.Body, s.bodyCap)
	}
	s.emit(rec)
}

// Dropped reports how many events this sink discarded.
func (s *Sink) Dropped() int { return s.dropped }

func (s *Sink) newRecord(raw RawExchange, dir Direction) (Record, bool) {
	u, err := url.Parse(raw.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		s.dropped++
		log.Printf("capture: dropping %s event with malformed url %q", dir, raw.URL)
		if s.onDrop != nil {
			s.onDrop(DropBadURL)
		}
		return Record{}, false
	}
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Record{
		RecordID:    uuid.NewString(),
		RunID:       s.runID,
		PageURL:     s.pageURL,
		TS:          ts,
		Direction:   dir,
		URL:         raw.URL,
		Scheme:      strings.ToLower(u.Scheme),
		Host:        strings.ToLower(u.Hostname()),
		Path:        u.Path,
		Method:      raw.Method,
		Headers:     raw.Headers,
		ContentType: raw.MIMEType,
	}, true
}

// capBody truncates to at most limit bytes, backing off to the previous
// rune boundary so the stored body stays valid UTF-8.
func capBody(body string, limit int) (string, bool) {
	if limit <= 0 || len(body) <= limit {
		return body, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut], true
}

// textualContent reports whether a declared content type is worth storing as
// a body. Anything else is treated as binary and kept body-less.
func textualContent(mime string) bool {
	mime = strings.ToLower(mime)
	for _, t := range []string{"json", "text", "javascript", "xml", "x-www-form-urlencoded"} {
		if strings.Contains(mime, t) {
			return true
		}
	}
	return false
}
