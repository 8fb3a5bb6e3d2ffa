package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/netrecon/oddstrace/internal/analysis"
	"github.com/netrecon/oddstrace/internal/capture"
	"github.com/netrecon/oddstrace/internal/metrics"
	"github.com/netrecon/oddstrace/internal/pipeline"
	"github.com/netrecon/oddstrace/pkg/config"
)

// replayEvent is one raw exchange as captured to NDJSON: the same tuple the
// browser driver would deliver live.
type replayEvent struct {
	Direction   string            `json:"direction"`
	URL         string            `json:"url"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
	Status      int               `json:"status,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	TS          time.Time         `json:"ts,omitempty"`
}

// replayFile runs the full pipeline over a previously captured event file,
// line by line in file order, so a capture can be re-classified offline with
// different tables without touching a browser.
func replayFile(ctx context.Context, runID, path string, cfg config.Config, m *metrics.Metrics, emit func(analysis.Entry), resolver pipeline.HostResolver) (*analysis.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	p := pipeline.New(runID, "replay:"+path, cfg, m, emit)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Bytes()
		if len(text) == 0 {
			continue
		}
		var ev replayEvent
		if err := json.Unmarshal(text, &ev); err != nil {
			log.Printf("replay: skipping line %d: %v", line, err)
			continue
		}
		raw := capture.RawExchange{
			URL:       ev.URL,
			Method:    ev.Method,
			Headers:   ev.Headers,
			Body:      ev.Body,
			Status:    ev.Status,
			MIMEType:  ev.ContentType,
			Timestamp: ev.TS,
		}
		if ev.Direction == string(capture.DirResponse) {
			p.OnResponse(raw)
		} else {
			p.OnRequest(raw)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}

	return p.Finalize(ctx, resolver), nil
}
