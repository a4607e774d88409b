// Package fingerprint implements the curated fingerprint store on SQLite
// (modernc.org/sqlite, a pure-Go embedded driver) for the verifier's small,
// local sample set.
package fingerprint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/wl4g-collab/botwaf-go/internal/domain/fingerprint"
)

// SQLiteStore implements fingerprint.Store against a local SQLite database
// file named by botwaf.state_path (§6).
type SQLiteStore struct {
	db *sql.DB
}

var _ fingerprint.Store = (*SQLiteStore)(nil)

// Open opens (creating if absent) the SQLite database at path and ensures
// the fingerprints table exists.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	const schema = `
	CREATE TABLE IF NOT EXISTS fingerprints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		headers TEXT NOT NULL DEFAULT '{}',
		malicious INTEGER NOT NULL,
		selector TEXT NOT NULL DEFAULT ''
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fingerprint: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// List returns every curated sample.
func (s *SQLiteStore) List(ctx context.Context) ([]fingerprint.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, method, path, query, body, headers, malicious, selector FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: list: %w", err)
	}
	defer rows.Close()

	var out []fingerprint.Sample
	for rows.Next() {
		var sample fingerprint.Sample
		var headersJSON string
		var malicious int
		if err := rows.Scan(&sample.ID, &sample.Method, &sample.Path, &sample.Query, &sample.Body, &headersJSON, &malicious, &sample.Selector); err != nil {
			return nil, fmt.Errorf("fingerprint: scan: %w", err)
		}
		sample.Malicious = malicious != 0
		if headersJSON != "" {
			if err := json.Unmarshal([]byte(headersJSON), &sample.Headers); err != nil {
				return nil, fmt.Errorf("fingerprint: unmarshal headers: %w", err)
			}
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fingerprint: rows: %w", err)
	}
	return out, nil
}

// Add inserts a new curated sample and returns its id.
func (s *SQLiteStore) Add(ctx context.Context, sample fingerprint.Sample) (int64, error) {
	headersJSON, err := json.Marshal(sample.Headers)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: marshal headers: %w", err)
	}

	malicious := 0
	if sample.Malicious {
		malicious = 1
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (method, path, query, body, headers, malicious, selector) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sample.Method, sample.Path, sample.Query, sample.Body, string(headersJSON), malicious, sample.Selector,
	)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: insert: %w", err)
	}
	return res.LastInsertId()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
