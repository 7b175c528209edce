// Package report persists batch run outcomes to a SQLite database so runs
// can be compared and failed images re-queued.
package report

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the report database.
type Store struct {
	db *sql.DB
}

// Open initializes and returns a report store, creating the schema if
// needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		master TEXT,
		workers INTEGER
	);
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		image TEXT NOT NULL,
		status TEXT NOT NULL,
		model TEXT,
		matches INTEGER,
		rms_first REAL,
		rms_final REAL,
		corrected INTEGER,
		duration_ms INTEGER,
		error TEXT,
		FOREIGN KEY(run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_images_run ON images(run_id);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new batch run and returns its id.
func (s *Store) StartRun(master string, workers int) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO runs (started_at, master, workers) VALUES (?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339), master, workers)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stamps the run's completion time.
func (s *Store) FinishRun(runID int64) error {
	_, err := s.db.Exec("UPDATE runs SET finished_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), runID)
	return err
}

// ImageRecord is one per-image outcome.
type ImageRecord struct {
	Image     string
	Status    string // ok | failed | canceled
	Model     string
	Matches   int
	RMSFirst  float64
	RMSFinal  float64
	Corrected bool
	Duration  time.Duration
	Error     string
}

// RecordImage stores one image outcome under a run.
func (s *Store) RecordImage(runID int64, rec ImageRecord) error {
	corrected := 0
	if rec.Corrected {
		corrected = 1
	}
	_, err := s.db.Exec(`
	INSERT INTO images (run_id, image, status, model, matches, rms_first, rms_final, corrected, duration_ms, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Image, rec.Status, rec.Model, rec.Matches,
		rec.RMSFirst, rec.RMSFinal, corrected, rec.Duration.Milliseconds(), rec.Error)
	if err != nil {
		return fmt.Errorf("record image %s: %w", rec.Image, err)
	}
	return nil
}
