// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite ledger of completed search batches and the
// papers each one returned.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// Batch is one completed search run.
type Batch struct {
	RunID      string
	Query      string
	Provider   string
	Params     types.QueryParameters
	Columns    []string
	StartedAt  time.Time
	ExportPath string
	Papers     []types.PaperRecord
}

// Summary is a batch without its papers, as listed by List.
type Summary struct {
	RunID      string
	Query      string
	Provider   string
	StartedAt  time.Time
	ExportPath string
	PaperCount int
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and its schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			run_id TEXT PRIMARY KEY,
			query TEXT,
			provider TEXT,
			params TEXT,
			columns TEXT,
			started_at TEXT NOT NULL,
			export_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS papers (
			run_id TEXT NOT NULL REFERENCES batches(run_id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT,
			year INTEGER,
			author TEXT,
			url TEXT,
			abstract TEXT,
			keywords TEXT,
			source TEXT,
			pdf_path TEXT,
			extra_columns TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores b and its papers in one transaction. Recording a run ID a
// second time replaces the earlier entry.
func (s *Store) Record(ctx context.Context, b Batch) error {
	paramsJSON, err := json.Marshal(b.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	columnsJSON, _ := json.Marshal(b.Columns)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE run_id = ?`, b.RunID); err != nil {
		return fmt.Errorf("replacing batch: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (run_id, query, provider, params, columns, started_at, export_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.RunID, b.Query, b.Provider, string(paramsJSON), string(columnsJSON),
		b.StartedAt.UTC().Format(time.RFC3339Nano), b.ExportPath,
	)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (run_id, position, title, year, author, url, abstract, keywords, source, pdf_path, extra_columns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing paper insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range b.Papers {
		extra, _ := json.Marshal(p.ExtraColumns)
		if _, err := stmt.ExecContext(ctx,
			b.RunID, i, p.Title, p.Year, p.Author, p.URL, p.Abstract, p.Keywords,
			p.Source, p.PDFPath, string(extra),
		); err != nil {
			return fmt.Errorf("inserting paper %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// List returns the most recent batches, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT b.run_id, b.query, b.provider, b.started_at, b.export_path,
			(SELECT count(*) FROM papers p WHERE p.run_id = b.run_id)
		FROM batches b ORDER BY b.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var started string
		if err := rows.Scan(&sum.RunID, &sum.Query, &sum.Provider, &started, &sum.ExportPath, &sum.PaperCount); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get returns a recorded batch with its papers in their original order.
func (s *Store) Get(ctx context.Context, runID string) (*Batch, error) {
	b := Batch{RunID: runID}
	var paramsJSON, columnsJSON, started string
	err := s.db.QueryRowContext(ctx,
		`SELECT query, provider, params, columns, started_at, export_path FROM batches WHERE run_id = ?`, runID,
	).Scan(&b.Query, &b.Provider, &paramsJSON, &columnsJSON, &started, &b.ExportPath)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch %q not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading batch: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &b.Params); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	if err := json.Unmarshal([]byte(columnsJSON), &b.Columns); err != nil {
		return nil, fmt.Errorf("decoding columns: %w", err)
	}
	b.StartedAt, _ = time.Parse(time.RFC3339Nano, started)

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, year, author, url, abstract, keywords, source, pdf_path, extra_columns
		 FROM papers WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading papers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p types.PaperRecord
		var extra string
		if err := rows.Scan(&p.Title, &p.Year, &p.Author, &p.URL, &p.Abstract, &p.Keywords, &p.Source, &p.PDFPath, &extra); err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		if err := json.Unmarshal([]byte(extra), &p.ExtraColumns); err != nil {
			return nil, fmt.Errorf("decoding extra columns: %w", err)
		}
		b.Papers = append(b.Papers, p)
	}
	return &b, rows.Err()
}
