// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists completed research runs to a SQLite database so
// past answers and their evidence can be listed, inspected, and exported.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-research/pkg/types"
)

const dbFile = "runs.db"

// timeLayout is fixed-width so archived_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the research run archive.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates the archive database at dir/runs.db, creating
// the schema if it does not exist.
func NewStore(cfg types.ArchiveConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.Dir}
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
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			final_answer TEXT,
			phase TEXT,
			loop_count INTEGER,
			total_tasks INTEGER,
			source_count INTEGER,
			started_at TEXT,
			archived_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS evidence (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			run_id TEXT NOT NULL REFERENCES runs(id),
			task_id TEXT,
			query TEXT,
			summary TEXT,
			source_urls TEXT,
			relevance_score REAL,
			created_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_run_id ON evidence(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun archives a finished run and its evidence records in one
// transaction. Saving the same run twice replaces the earlier copy.
func (s *Store) SaveRun(ctx context.Context, state *types.ResearchState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM evidence WHERE run_id = ?`, state.RunID); err != nil {
		return fmt.Errorf("deleting old evidence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, question, final_answer, phase, loop_count, total_tasks, source_count, started_at, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			question=excluded.question, final_answer=excluded.final_answer,
			phase=excluded.phase, loop_count=excluded.loop_count,
			total_tasks=excluded.total_tasks, source_count=excluded.source_count,
			started_at=excluded.started_at, archived_at=excluded.archived_at`,
		state.RunID, state.OriginalQuestion, state.FinalAnswer, string(state.CurrentPhase),
		state.LoopCount, state.TotalTasksRun, len(state.DiscoveredSources),
		state.StartedAt.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO evidence (id, run_id, task_id, query, summary, source_urls, relevance_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range state.EvidenceRecords {
		urlsJSON, _ := json.Marshal(rec.SourceURLs)
		_, err := stmt.ExecContext(ctx,
			rec.ID, state.RunID, rec.TaskID, rec.Query, rec.Summary,
			string(urlsJSON), rec.RelevanceScore,
			rec.CreatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("inserting evidence %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// RunSummary is one row of the archive listing.
type RunSummary struct {
	ID          string    `yaml:"id"`
	Question    string    `yaml:"question"`
	Phase       string    `yaml:"phase"`
	LoopCount   int       `yaml:"loop_count"`
	TotalTasks  int       `yaml:"total_tasks"`
	SourceCount int       `yaml:"source_count"`
	ArchivedAt  time.Time `yaml:"archived_at"`
}

// ArchivedRun is a full archived run with its evidence.
type ArchivedRun struct {
	RunSummary  `yaml:",inline"`
	FinalAnswer string                 `yaml:"final_answer"`
	Evidence    []types.EvidenceRecord `yaml:"evidence"`
}

// ListRuns returns archive summaries, newest first. A limit of zero or
// less returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, phase, loop_count, total_tasks, source_count, archived_at
		 FROM runs ORDER BY archived_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var archivedAt string
		if err := rows.Scan(&r.ID, &r.Question, &r.Phase, &r.LoopCount,
			&r.TotalTasks, &r.SourceCount, &archivedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.ArchivedAt, _ = time.Parse(timeLayout, archivedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads one archived run with its evidence records.
func (s *Store) GetRun(ctx context.Context, runID string) (*ArchivedRun, error) {
	var run ArchivedRun
	var archivedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question, final_answer, phase, loop_count, total_tasks, source_count, archived_at
		 FROM runs WHERE id = ?`, runID,
	).Scan(&run.ID, &run.Question, &run.FinalAnswer, &run.Phase,
		&run.LoopCount, &run.TotalTasks, &run.SourceCount, &archivedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	run.ArchivedAt, _ = time.Parse(timeLayout, archivedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, query, summary, source_urls, relevance_score, created_at
		 FROM evidence WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying evidence: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec types.EvidenceRecord
		var urlsJSON, createdAt string
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.Query, &rec.Summary,
			&urlsJSON, &rec.RelevanceScore, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning evidence: %w", err)
		}
		json.Unmarshal([]byte(urlsJSON), &rec.SourceURLs)
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		run.Evidence = append(run.Evidence, rec)
	}
	return &run, rows.Err()
}

// ExportYAML writes the full archive to dir/export.yaml for inspection
// outside the database.
func (s *Store) ExportYAML(ctx context.Context) error {
	summaries, err := s.ListRuns(ctx, 0)
	if err != nil {
		return err
	}

	runs := make([]*ArchivedRun, 0, len(summaries))
	for _, sum := range summaries {
		run, err := s.GetRun(ctx, sum.ID)
		if err != nil {
			return err
		}
		runs = append(runs, run)
	}

	data, err := yaml.Marshal(map[string]any{"runs": runs})
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}

	exportPath := filepath.Join(s.dir, "export.yaml")
	if err := os.WriteFile(exportPath, data, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}
