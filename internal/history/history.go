// Package history keeps finished transcripts in a SQLite database so they
// survive restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Entry is one stored transcript.
type Entry struct {
	ID        int64
	RequestID string
	File      string
	Provider  string
	Source    string
	Text      string
	Failed    bool
	CreatedAt time.Time
}

// Store is a SQLite-backed transcript history.
type Store struct {
	db    *sql.DB
	log   zerolog.Logger
	clock func() time.Time
}

// Open creates or opens the database at path.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "history").Logger(), clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transcripts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    file TEXT NOT NULL,
    provider TEXT NOT NULL,
    source TEXT,
    text TEXT NOT NULL,
    failed INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_created ON transcripts(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends an entry and returns its row id.
func (s *Store) Save(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts(request_id, file, provider, source, text, failed, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.File, e.Provider, e.Source, e.Text, e.Failed, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("history: save: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: save: %w", err)
	}
	s.log.Debug().Int64("id", id).Str("request_id", e.RequestID).Msg("transcript saved")
	return id, nil
}

// Recent returns up to limit entries, oldest first, from the most recent
// ones stored.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, file, provider, source, text, failed, created_at FROM (
		     SELECT * FROM transcripts ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		var source sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.File, &e.Provider, &source, &e.Text, &e.Failed, &created); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Source = source.String
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every stored entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcripts`); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}
