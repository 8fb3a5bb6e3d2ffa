package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	_ "github.com/lib/pq"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateTableName rejects anything that could smuggle SQL into the insert
// statement; table names cannot be bound as parameters.
func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name is empty")
	}
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// PGSink batches envelopes into a Postgres table as JSONB rows.
type PGSink struct {
	dsn       string
	table     string
	batchSize int

	db *sql.DB

	mu    sync.Mutex
	batch []Envelope
}

// NewPGSinkFromEnv creates a PGSink from environment variables.
func NewPGSinkFromEnv() *PGSink {
	batchSize := 100
	if v := os.Getenv("PG_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			batchSize = n
		}
	}
	return &PGSink{
		dsn:       getEnvOr("PG_DSN", "postgres://localhost/oddstrace?sslmode=disable"),
		table:     getEnvOr("PG_TABLE", "traffic_envelopes"),
		batchSize: batchSize,
	}
}

func NewPGSink(dsn, table string, batchSize int) *PGSink {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PGSink{dsn: dsn, table: table, batchSize: batchSize}
}

func (s *PGSink) Name() string { return "postgres" }

func (s *PGSink) Start(ctx context.Context) error {
	if err := validateTableName(s.table); err != nil {
		return fmt.Errorf("pg sink: %w", err)
	}
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return fmt.Errorf("pg sink: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("pg sink: ping: %w", err)
	}
	createStmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id TEXT, run_id TEXT, kind TEXT, payload JSONB, created_at TIMESTAMPTZ DEFAULT now())`,
		s.table,
	)
	if _, err := db.ExecContext(ctx, createStmt); err != nil {
		db.Close()
		return fmt.Errorf("pg sink: create table: %w", err)
	}
	s.db = db
	return nil
}

func (s *PGSink) Enqueue(e Envelope) error {
	s.mu.Lock()
	s.batch = append(s.batch, e)
	flush := len(s.batch) >= s.batchSize
	s.mu.Unlock()
	if flush {
		return s.Flush()
	}
	return nil
}

// Flush writes any buffered envelopes in one transaction.
func (s *PGSink) Flush() error {
	if s.db == nil {
		return fmt.Errorf("pg sink: not started")
	}

	s.mu.Lock()
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("pg sink: begin: %w", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s (id, run_id, kind, payload) VALUES ($1, $2, $3, $4)`, s.table,
	))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("pg sink: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		payload, err := json.Marshal(e)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("pg sink: marshal: %w", err)
		}
		if _, err := stmt.Exec(e.ID(), e.RunID, e.Kind, payload); err != nil {
			tx.Rollback()
			return fmt.Errorf("pg sink: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pg sink: commit: %w", err)
	}
	return nil
}

func (s *PGSink) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.Flush()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
