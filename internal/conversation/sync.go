package conversation

import (
	"context"
	"fmt"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/loader"
	"github.com/adamavenir/coverchat/internal/registry"
	"github.com/adamavenir/coverchat/internal/remote"
	"github.com/adamavenir/coverchat/internal/types"
	"go.uber.org/zap"
)

// RefreshThreads fetches the remote thread list once and reconciles the
// registry with it. Failures are logged and leave the registry as it was.
func (m *Machine) RefreshThreads(ctx context.Context) {
	if !m.signedIn() {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	epoch := m.epoch
	m.refreshIssued++
	seq := m.refreshIssued
	m.mu.Unlock()

	callCtx, cancel := scoped(ctx, epoch)
	defer cancel()
	threads, err := m.store.ListThreads(callCtx)
	if err != nil {
		switch {
		case remote.IsAuthExpired(err):
			m.expire()
		case remote.IsUnavailable(err):
			m.logger.Debug("thread list unavailable")
		case callCtx.Err() != nil:
		default:
			m.logger.Warn("thread refresh failed", zap.Error(err))
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || epoch.Err() != nil {
		return
	}
	if seq < m.refreshApplied {
		m.logger.Debug("stale thread list dropped", zap.Uint64("seq", seq), zap.Uint64("applied", m.refreshApplied))
		return
	}
	m.refreshApplied = seq
	m.registry.Reconcile(threads)
	// Deleted from another client.
	if m.active != "" {
		if _, ok := m.registry.Get(m.active); !ok {
			m.activateLocked("", loader.Greeting())
		}
	}
	m.persistLocked()
	m.notifyLocked()
}

// SetSession applies a Session Context transition. Signing in starts the
// poller; signing out or switching workspace cancels all work and clears
// local state.
func (m *Machine) SetSession(next *types.Session) {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	prev := m.current
	if prev.SameWorkspace(next) {
		epoch := m.epoch
		m.mu.Unlock()
		if next != nil {
			m.poller.Start(epoch)
		}
		return
	}
	m.mu.Unlock()

	// Stop waits for a running refresh, which needs m.mu.
	m.poller.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if prev != nil {
		m.endEpoch()
		m.epoch, m.endEpoch = context.WithCancel(m.base)
	}
	m.current = cloneSession(next)

	switch {
	case next == nil:
		m.resetLocked()
		m.logger.Info("signed out")
	case prev != nil || (m.profileID != "" && m.profileID != next.ProfileID):
		m.resetLocked()
		m.profileID = next.ProfileID
		m.logger.Info("workspace switched", zap.String("profile_id", next.ProfileID))
	default:
		m.profileID = next.ProfileID
		if m.active != "" && m.activation != nil && loader.IsFresh(m.display) {
			m.loadLocked(m.activation, m.active, m.generation)
		}
		m.logger.Info("signed in", zap.String("profile_id", next.ProfileID))
	}
	m.persistLocked()
	m.notifyLocked()

	if next != nil {
		epoch := m.epoch
		m.goLocked(func() { m.RefreshThreads(epoch) })
		m.poller.Start(epoch)
	}
}

// resetLocked drops every piece of local bookkeeping and returns to Idle.
func (m *Machine) resetLocked() {
	m.activateLocked("", loader.Greeting())
	m.registry.Clear()
	m.used = map[string]bool{}
	m.rating = map[string]bool{}
	m.lastErr = ""
	m.profileID = ""
	if m.cache != nil {
		if err := m.cache.Clear(); err != nil {
			m.logger.Warn("cache clear failed", zap.Error(err))
		}
	}
}

// Restore rebuilds the registry and the active thread from the local cache.
// Unused placeholders from the previous run are dropped. History for the
// active thread is loaded once a session is present.
func (m *Machine) Restore() error {
	if m.cache == nil {
		return nil
	}
	snap, err := m.cache.Load()
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	kept := make([]types.Thread, 0, len(snap.Threads))
	for _, thread := range snap.Threads {
		if thread.Ephemeral {
			if core.IsPlaceholderTitle(thread.Title) {
				continue
			}
			m.used[thread.ID] = true
		}
		kept = append(kept, thread)
	}
	m.registry = registry.New(kept...)
	m.profileID = snap.ProfileID
	if _, ok := m.registry.Get(snap.ActiveThread); ok {
		ctx, generation := m.activateLocked(snap.ActiveThread, loader.Greeting())
		if m.current != nil {
			m.loadLocked(ctx, snap.ActiveThread, generation)
		}
	}
	m.notifyLocked()
	return nil
}

func (m *Machine) expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
}

// expireLocked signals the Session Context and tears the session down in
// the background; the teardown stops the poller, which may be the caller.
func (m *Machine) expireLocked() {
	m.logger.Info("session expired")
	if m.session != nil {
		m.session.Expire()
	}
	m.goLocked(func() { m.SetSession(nil) })
}

func cloneSession(session *types.Session) *types.Session {
	if session == nil {
		return nil
	}
	copied := *session
	return &copied
}
