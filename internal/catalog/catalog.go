// Package catalog indexes recorded replay runs (internal/replay) in a small
// embedded SQLite database, so an operator can find a run by land id or
// definition id without scanning every record file on disk.
package catalog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	land_id        TEXT NOT NULL,
	land_type      TEXT NOT NULL,
	definition_id  TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	record_path    TEXT NOT NULL,
	tick_count     INTEGER NOT NULL,
	final_hash     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_land_id ON runs(land_id);
CREATE INDEX IF NOT EXISTS idx_runs_definition_id ON runs(definition_id);
`

// Catalog wraps a SQLite database of indexed replay runs.
type Catalog struct {
	db *sql.DB
}

// Run is one indexed replay run.
type Run struct {
	RunID        string
	LandID       string
	LandType     string
	DefinitionID string
	CreatedAt    string
	RecordPath   string
	TickCount    int64
	FinalHash    string
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Index inserts or replaces a run's catalog row.
func (c *Catalog) Index(r Run) error {
	_, err := c.db.Exec(
		`INSERT INTO runs (run_id, land_id, land_type, definition_id, created_at, record_path, tick_count, final_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   land_id=excluded.land_id, land_type=excluded.land_type, definition_id=excluded.definition_id,
		   created_at=excluded.created_at, record_path=excluded.record_path,
		   tick_count=excluded.tick_count, final_hash=excluded.final_hash`,
		r.RunID, r.LandID, r.LandType, r.DefinitionID, r.CreatedAt, r.RecordPath, r.TickCount, r.FinalHash,
	)
	if err != nil {
		return fmt.Errorf("catalog: index run %q: %w", r.RunID, err)
	}
	return nil
}

// ByLandID returns every indexed run for a given land, most recent first.
func (c *Catalog) ByLandID(landID string) ([]Run, error) {
	rows, err := c.db.Query(
		`SELECT run_id, land_id, land_type, definition_id, created_at, record_path, tick_count, final_hash
		 FROM runs WHERE land_id = ? ORDER BY created_at DESC`, landID)
	if err != nil {
		return nil, fmt.Errorf("catalog: query by land_id: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// ByDefinitionID returns every indexed run built from a given definition,
// most recent first.
func (c *Catalog) ByDefinitionID(definitionID string) ([]Run, error) {
	rows, err := c.db.Query(
		`SELECT run_id, land_id, land_type, definition_id, created_at, record_path, tick_count, final_hash
		 FROM runs WHERE definition_id = ? ORDER BY created_at DESC`, definitionID)
	if err != nil {
		return nil, fmt.Errorf("catalog: query by definition_id: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Get returns a single run by id, or sql.ErrNoRows if absent.
func (c *Catalog) Get(runID string) (Run, error) {
	var r Run
	err := c.db.QueryRow(
		`SELECT run_id, land_id, land_type, definition_id, created_at, record_path, tick_count, final_hash
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &r.LandID, &r.LandType, &r.DefinitionID, &r.CreatedAt, &r.RecordPath, &r.TickCount, &r.FinalHash)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.LandID, &r.LandType, &r.DefinitionID, &r.CreatedAt, &r.RecordPath, &r.TickCount, &r.FinalHash); err != nil {
			return nil, fmt.Errorf("catalog: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
