package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/mlexec/internal/sink"
)

// Sink writes records to a SQLite table, one transaction per batch.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Sink{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records(
			batch_id TEXT NOT NULL,
			batch_seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			position INTEGER NOT NULL,
			body TEXT NOT NULL,
			headers TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_source_seq ON records(source, batch_seq);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Accept(ctx context.Context, b sink.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records(batch_id, batch_seq, source, position, body, headers, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range sink.Rows(b) {
		if _, err := stmt.ExecContext(ctx, r.BatchID, int64(r.BatchSeq), r.Source, r.Position, r.Body, sink.HeadersJSON(r.Headers), r.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
