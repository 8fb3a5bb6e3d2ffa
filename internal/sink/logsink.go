package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogSink writes one JSON line per envelope, to a file when a path is
// configured, otherwise to stderr.
type LogSink struct {
	path string

	mu  sync.Mutex
	w   io.Writer
	f   *os.File
	enc *json.Encoder
}

func NewLogSink(path string) *LogSink {
	return &LogSink{path: path}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		s.w = os.Stderr
	} else {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("log sink: open %s: %w", s.path, err)
		}
		s.f = f
		s.w = f
	}
	s.enc = json.NewEncoder(s.w)
	return nil
}

func (s *LogSink) Enqueue(e Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return fmt.Errorf("log sink: not started")
	}
	if err := s.enc.Encode(e); err != nil {
		return fmt.Errorf("log sink: encode: %w", err)
	}
	return nil
}

func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}
