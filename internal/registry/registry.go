// Package registry holds the in-memory thread list of the current session.
package registry

import (
	"sort"

	"github.com/adamavenir/coverchat/internal/types"
)

// Registry is the authoritative local thread list. It is not safe for
// concurrent use; the conversation machine serializes access.
type Registry struct {
	threads map[string]types.Thread
}

// New returns a registry seeded with threads.
func New(threads ...types.Thread) *Registry {
	r := &Registry{threads: make(map[string]types.Thread, len(threads))}
	for _, thread := range threads {
		if thread.ID == "" {
			continue
		}
		r.threads[thread.ID] = thread
	}
	return r
}

// List returns the threads ordered by UpdatedAt, newest first.
func (r *Registry) List() []types.Thread {
	list := make([]types.Thread, 0, len(r.threads))
	for _, thread := range r.threads {
		list = append(list, thread)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Get looks up one thread.
func (r *Registry) Get(id string) (types.Thread, bool) {
	thread, ok := r.threads[id]
	return thread, ok
}

// Len returns the number of threads.
func (r *Registry) Len() int {
	return len(r.threads)
}

// Reconcile merges a remote snapshot into the registry. Local ephemeral
// threads the snapshot does not mention survive; every other local entry is
// replaced by the snapshot.
func (r *Registry) Reconcile(snapshot []types.Thread) {
	next := make(map[string]types.Thread, len(snapshot)+len(r.threads))
	for id, thread := range r.threads {
		if thread.Ephemeral {
			next[id] = thread
		}
	}
	for _, remote := range snapshot {
		if remote.ID == "" {
			continue
		}
		var local *types.Thread
		if existing, ok := r.threads[remote.ID]; ok {
			local = &existing
		}
		next[remote.ID] = MergeThread(local, remote)
	}
	r.threads = next
}

// Remove deletes a thread. Removing an unknown id does nothing.
func (r *Registry) Remove(id string) {
	delete(r.threads, id)
}

// UpsertLocal inserts or overwrites one thread.
func (r *Registry) UpsertLocal(thread types.Thread) {
	if thread.ID == "" {
		return
	}
	r.threads[thread.ID] = thread
}

// PruneEphemeral drops ephemeral threads for which keep returns false and
// returns the removed ids.
func (r *Registry) PruneEphemeral(keep func(types.Thread) bool) []string {
	var removed []string
	for id, thread := range r.threads {
		if !thread.Ephemeral || (keep != nil && keep(thread)) {
			continue
		}
		delete(r.threads, id)
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return removed
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.threads = make(map[string]types.Thread)
}
