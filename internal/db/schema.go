package db

import "database/sql"

const schemaSQL = `
-- Local registry cache, restored after a restart
CREATE TABLE IF NOT EXISTS cc_threads (
  id TEXT PRIMARY KEY,                 -- e.g., "thrd-a1b2c3d4"
  title TEXT NOT NULL,
  created_at INTEGER NOT NULL,         -- unix ms
  updated_at INTEGER NOT NULL,         -- unix ms, ordering key
  message_count INTEGER NOT NULL DEFAULT 0,
  ephemeral INTEGER NOT NULL DEFAULT 0 -- 1 until a remote listing had it
);

CREATE INDEX IF NOT EXISTS idx_cc_threads_updated ON cc_threads(updated_at);

-- Client bookkeeping (active thread, owning profile)
CREATE TABLE IF NOT EXISTS cc_state (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// InitSchema creates the cache tables.
func InitSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(schemaSQL); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SchemaExists reports whether the cache schema is present.
func SchemaExists(db *sql.DB) (bool, error) {
	row := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name = 'cc_threads'
	`)
	var name string
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
