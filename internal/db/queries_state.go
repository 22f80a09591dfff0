package db

import "database/sql"

const (
	StateActiveThread = "active_thread"
	StateProfileID    = "profile_id"
)

// GetState returns a bookkeeping value, or "" when unset.
func GetState(db *sql.DB, key string) (string, error) {
	row := db.QueryRow("SELECT value FROM cc_state WHERE key = ?", key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetState sets a bookkeeping value; an empty value deletes the key.
func SetState(db *sql.DB, key, value string) error {
	if value == "" {
		_, err := db.Exec("DELETE FROM cc_state WHERE key = ?", key)
		return err
	}
	_, err := db.Exec("INSERT OR REPLACE INTO cc_state (key, value) VALUES (?, ?)", key, value)
	return err
}

// ClearState drops every cached thread and bookkeeping value.
func ClearState(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM cc_threads"); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec("DELETE FROM cc_state"); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
