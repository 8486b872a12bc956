// Package persistence provides SQLite storage for running delivery totals.
// Only totals are kept: per-site counts and a per-cohort time series. Agent
// trajectories are never written.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/swarmdrop/internal/engine"
)

// ErrNoRun is returned when no run has been recorded yet.
var ErrNoRun = errors.New("no run recorded")

// DB wraps a SQLite connection for delivery totals.
type DB struct {
	conn *sqlx.DB
}

// Run identifies one simulation run.
type Run struct {
	ID         string `db:"id" json:"id"`
	Seed       int64  `db:"seed" json:"seed"`
	StartedAt  string `db:"started_at" json:"started_at"`
	ConfigJSON string `db:"config_json" json:"-"`
	LastTick   uint64 `db:"last_tick" json:"last_tick"`
}

// SiteRow is the persisted total of one site.
type SiteRow struct {
	SiteIndex  int     `db:"site_index" json:"site_index"`
	Label      string  `db:"label" json:"label"`
	Cohort     string  `db:"cohort" json:"cohort"`
	X          float64 `db:"x" json:"x"`
	Y          float64 `db:"y" json:"y"`
	Deliveries int     `db:"deliveries" json:"deliveries"`
}

// CohortRow is one sample of a cohort's running total.
type CohortRow struct {
	Tick       uint64 `db:"tick" json:"tick"`
	Cohort     string `db:"cohort" json:"cohort"`
	Deliveries int    `db:"deliveries" json:"deliveries"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		config_json TEXT NOT NULL,
		last_tick INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS site_totals (
		run_id TEXT NOT NULL,
		site_index INTEGER NOT NULL,
		label TEXT NOT NULL,
		cohort TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		deliveries INTEGER NOT NULL,
		PRIMARY KEY (run_id, site_index)
	);

	CREATE TABLE IF NOT EXISTS cohort_totals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		cohort TEXT NOT NULL,
		deliveries INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cohort_totals_run_tick ON cohort_totals(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// StartRun records a new run and marks it as the latest.
func (db *DB) StartRun(id string, cfg engine.Config) (Run, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return Run{}, fmt.Errorf("marshal config: %w", err)
	}
	run := Run{
		ID:         id,
		Seed:       cfg.Seed,
		StartedAt:  time.Now().UTC().Format(time.RFC3339),
		ConfigJSON: string(cfgJSON),
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExec(`INSERT INTO runs (id, seed, started_at, config_json, last_tick)
		VALUES (:id, :seed, :started_at, :config_json, :last_tick)`, run); err != nil {
		return Run{}, fmt.Errorf("insert run %s: %w", id, err)
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('latest_run', ?)", id); err != nil {
		return Run{}, fmt.Errorf("mark latest run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, err
	}

	slog.Info("run started", "run_id", id, "seed", cfg.Seed)
	return run, nil
}

// SaveTotals writes the current per-site totals (replacing the previous
// ones) and appends one cohort sample per cohort at the current tick.
func (db *DB) SaveTotals(runID string, sim *engine.Simulation) error {
	snap := sim.Snapshot()

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO site_totals
		(run_id, site_index, label, cohort, x, y, deliveries)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range snap.Sites {
		if _, err := stmt.Exec(runID, s.Index, s.Label, s.Cohort, s.Position.X, s.Position.Y, s.Deliveries); err != nil {
			return fmt.Errorf("upsert site %d: %w", s.Index, err)
		}
	}

	for _, ct := range snap.Totals {
		if _, err := tx.Exec(
			"INSERT INTO cohort_totals (run_id, tick, cohort, deliveries) VALUES (?, ?, ?, ?)",
			runID, snap.Tick, ct.Cohort, ct.Deliveries,
		); err != nil {
			return fmt.Errorf("insert cohort total %s: %w", ct.Cohort, err)
		}
	}

	res, err := tx.Exec("UPDATE runs SET last_tick = ? WHERE id = ?", snap.Tick, runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNoRun)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("totals saved", "run_id", runID, "tick", snap.Tick, "sites", len(snap.Sites))
	return nil
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (Run, error) {
	var id string
	err := db.conn.Get(&id, "SELECT value FROM meta WHERE key = 'latest_run'")
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRun
	}
	if err != nil {
		return Run{}, err
	}
	return db.GetRun(id)
}

// GetRun loads a run by ID.
func (db *DB) GetRun(id string) (Run, error) {
	var run Run
	err := db.conn.Get(&run, "SELECT id, seed, started_at, config_json, last_tick FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNoRun)
	}
	return run, err
}

// SiteTotals returns the persisted per-site totals of a run in site order.
func (db *DB) SiteTotals(runID string) ([]SiteRow, error) {
	var rows []SiteRow
	err := db.conn.Select(&rows,
		`SELECT site_index, label, cohort, x, y, deliveries
		FROM site_totals WHERE run_id = ? ORDER BY site_index`, runID)
	return rows, err
}

// CohortHistory returns up to limit of the most recent cohort samples of a
// run, oldest first.
func (db *DB) CohortHistory(runID string, limit int) ([]CohortRow, error) {
	var rows []CohortRow
	err := db.conn.Select(&rows,
		`SELECT tick, cohort, deliveries FROM (
			SELECT id, tick, cohort, deliveries FROM cohort_totals
			WHERE run_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, runID, limit)
	return rows, err
}
