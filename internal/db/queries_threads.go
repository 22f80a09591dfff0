package db

import (
	"database/sql"
	"time"

	"github.com/adamavenir/coverchat/internal/types"
)

// ReplaceThreads swaps the cached registry for threads.
func ReplaceThreads(db *sql.DB, threads []types.Thread) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM cc_threads"); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, thread := range threads {
		if err := insertThread(tx, thread); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func insertThread(db DBTX, thread types.Thread) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO cc_threads (id, title, created_at, updated_at, message_count, ephemeral)
		VALUES (?, ?, ?, ?, ?, ?)
	`, thread.ID, thread.Title, toMillis(thread.CreatedAt), toMillis(thread.UpdatedAt),
		thread.MessageCount, boolToInt(thread.Ephemeral))
	return err
}

// GetThreads returns cached threads, most recently updated first.
func GetThreads(db *sql.DB) ([]types.Thread, error) {
	rows, err := db.Query(`
		SELECT id, title, created_at, updated_at, message_count, ephemeral
		FROM cc_threads
		ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []types.Thread
	for rows.Next() {
		var (
			thread             types.Thread
			createdAt, updated int64
			ephemeral          int
		)
		if err := rows.Scan(&thread.ID, &thread.Title, &createdAt, &updated, &thread.MessageCount, &ephemeral); err != nil {
			return nil, err
		}
		thread.CreatedAt = fromMillis(createdAt)
		thread.UpdatedAt = fromMillis(updated)
		thread.Ephemeral = ephemeral != 0
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
