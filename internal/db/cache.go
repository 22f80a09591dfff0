package db

import (
	"database/sql"

	"github.com/adamavenir/coverchat/internal/types"
)

// Cache adapts the query helpers to the conversation machine's
// persistence hook.
type Cache struct {
	DB *sql.DB
}

// Snapshot is what a restart restores.
type Snapshot struct {
	ProfileID    string
	ActiveThread string
	Threads      []types.Thread
}

func (c Cache) SaveThreads(threads []types.Thread) error {
	return ReplaceThreads(c.DB, threads)
}

func (c Cache) SaveActive(profileID, threadID string) error {
	if err := SetState(c.DB, StateProfileID, profileID); err != nil {
		return err
	}
	return SetState(c.DB, StateActiveThread, threadID)
}

func (c Cache) Load() (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.ProfileID, err = GetState(c.DB, StateProfileID); err != nil {
		return Snapshot{}, err
	}
	if snap.ActiveThread, err = GetState(c.DB, StateActiveThread); err != nil {
		return Snapshot{}, err
	}
	if snap.Threads, err = GetThreads(c.DB); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c Cache) Clear() error {
	return ClearState(c.DB)
}
