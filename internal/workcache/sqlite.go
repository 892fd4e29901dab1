package workcache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sectionDeclared         = "declared_input"
	sectionDiscoveredInput  = "discovered_input"
	sectionDiscoveredOutput = "discovered_output"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the cache database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preparations (
		tag TEXT PRIMARY KEY,
		result BLOB,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS entries (
		tag TEXT NOT NULL,
		section TEXT NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		method TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		PRIMARY KEY (tag, section, position)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the record stored under tag.
func (s *SQLiteStore) Load(ctx context.Context, tag string) (*Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := &Record{Tag: tag}
	err := s.db.QueryRowContext(ctx, "SELECT result FROM preparations WHERE tag = ?", tag).Scan(&rec.Result)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query preparation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT section, kind, name, method, fingerprint FROM entries WHERE tag = ? ORDER BY section, position",
		tag,
	)
	if err != nil {
		return nil, false, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var section string
		var e Entry
		if err := rows.Scan(&section, &e.Kind, &e.Name, &e.Method, &e.Fingerprint); err != nil {
			return nil, false, fmt.Errorf("scan entry: %w", err)
		}
		switch section {
		case sectionDeclared:
			rec.DeclaredInputs = append(rec.DeclaredInputs, e)
		case sectionDiscoveredInput:
			rec.DiscoveredInputs = append(rec.DiscoveredInputs, e)
		case sectionDiscoveredOutput:
			rec.DiscoveredOutputs = append(rec.DiscoveredOutputs, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate entries: %w", err)
	}
	return rec, true, nil
}

// Save replaces the record stored under rec.Tag.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE tag = ?", rec.Tag); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO preparations (tag, result, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(tag) DO UPDATE SET result = excluded.result, updated_at = excluded.updated_at`,
		rec.Tag, rec.Result, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("upsert preparation: %w", err)
	}

	sections := []struct {
		name    string
		entries []Entry
	}{
		{sectionDeclared, rec.DeclaredInputs},
		{sectionDiscoveredInput, rec.DiscoveredInputs},
		{sectionDiscoveredOutput, rec.DiscoveredOutputs},
	}
	for _, sec := range sections {
		for i, e := range sec.entries {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO entries (tag, section, position, kind, name, method, fingerprint) VALUES (?, ?, ?, ?, ?, ?, ?)",
				rec.Tag, sec.name, i, string(e.Kind), e.Name, string(e.Method), e.Fingerprint,
			); err != nil {
				return fmt.Errorf("insert entry: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preparation: %w", err)
	}
	return nil
}

// Delete removes the record stored under tag.
func (s *SQLiteStore) Delete(ctx context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE tag = ?", tag); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM preparations WHERE tag = ?", tag); err != nil {
		return fmt.Errorf("delete preparation: %w", err)
	}
	return nil
}

// Tags lists stored tags starting with prefix, sorted.
func (s *SQLiteStore) Tags(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT tag FROM preparations WHERE substr(tag, 1, ?) = ? ORDER BY tag",
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
