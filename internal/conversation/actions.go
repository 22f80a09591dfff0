package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/loader"
	"github.com/adamavenir/coverchat/internal/remote"
	"github.com/adamavenir/coverchat/internal/types"
	"go.uber.org/zap"
)

// NewChat starts a fresh conversation. Unless force is set it refuses to
// abandon an active thread the user has not written in yet.
func (m *Machine) NewChat(force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if !force && m.stateLocked() == Fresh {
		if thread, ok := m.registry.Get(m.active); ok && core.IsPlaceholderTitle(thread.Title) {
			return ErrThreadUnused
		}
	}
	_, err := m.newThreadLocked()
	return err
}

// newThreadLocked prunes unused placeholders, registers a new ephemeral
// thread and activates it with the greeting.
func (m *Machine) newThreadLocked() (string, error) {
	id, err := m.newThread()
	if err != nil {
		return "", err
	}
	m.registry.PruneEphemeral(func(thread types.Thread) bool {
		return m.used[thread.ID]
	})
	now := m.now()
	m.registry.UpsertLocal(types.Thread{
		ID:        id,
		Title:     core.PlaceholderTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Ephemeral: true,
	})
	m.activateLocked(id, loader.Greeting())
	m.lastErr = ""
	m.persistLocked()
	m.notifyLocked()
	return id, nil
}

// SelectThread makes id the active thread immediately with a greeting
// display, then loads its history in the background. Selecting the active
// thread is a no-op.
func (m *Machine) SelectThread(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if id == m.active {
		return nil
	}
	if _, ok := m.registry.Get(id); !ok {
		return ErrUnknownThread
	}
	ctx, generation := m.activateLocked(id, loader.Greeting())
	m.lastErr = ""
	m.loadLocked(ctx, id, generation)
	m.persistLocked()
	m.notifyLocked()
	return nil
}

// SendMessage appends text to the active thread optimistically and asks the
// assistant for a reply. With no active thread a new one is created.
// A failed send keeps the user's message on screen.
func (m *Machine) SendMessage(ctx context.Context, text string, fileIDs []string) error {
	text = strings.TrimSpace(text)
	if m.session == nil || m.session.Current() == nil {
		return ErrNoSession
	}
	if text == "" {
		return ErrEmptyMessage
	}
	if m.chatter == nil {
		return opError("send", remote.ErrUnavailable)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.active == "" {
		if _, err := m.newThreadLocked(); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	threadID := m.active
	activation := m.activation
	epoch := m.epoch
	userMsg := types.Message{
		ID:      newMessageID(),
		Role:    types.RoleUser,
		Content: text,
		Pending: true,
	}
	m.display = append(m.display, userMsg)
	m.generation++
	m.used[threadID] = true
	m.lastErr = ""
	if thread, ok := m.registry.Get(threadID); ok {
		if core.IsPlaceholderTitle(thread.Title) {
			thread.Title = core.DeriveTitle(text)
		}
		thread.UpdatedAt = m.now()
		m.registry.UpsertLocal(thread)
	}
	m.persistLocked()
	m.notifyLocked()
	m.mu.Unlock()

	callCtx, cancel := scoped(ctx, epoch)
	defer cancel()
	resp, err := m.chatter.Chat(callCtx, remote.ChatRequest{
		Message:  text,
		FileIDs:  fileIDs,
		ThreadID: threadID,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.settleLocked(threadID, activation, userMsg.ID)
		switch {
		case remote.IsAuthExpired(err):
			m.expireLocked()
			return ErrAuthExpired
		case ctx.Err() != nil || epoch.Err() != nil:
			return err
		}
		m.logger.Warn("send failed", zap.String("thread_id", threadID), zap.Error(err))
		if m.active == threadID {
			m.lastErr = "message not sent, try again"
			m.notifyLocked()
		}
		return opError("send", err)
	}
	if epoch.Err() != nil {
		return nil
	}

	if m.settleLocked(threadID, activation, userMsg.ID) {
		m.display = append(m.display, types.Message{
			ID:            newMessageID(),
			Role:          types.RoleAssistant,
			Content:       resp.Reply,
			Downloads:     resp.Downloads,
			RemoteID:      resp.AssistantMessageID,
			CoverLetterID: resp.CoverLetterID,
		})
		m.generation++
	}
	if thread, ok := m.registry.Get(threadID); ok {
		thread.UpdatedAt = m.now()
		m.registry.UpsertLocal(thread)
		m.persistLocked()
	}
	m.notifyLocked()
	m.goLocked(func() { m.RefreshThreads(epoch) })
	return nil
}

// settleLocked clears the pending mark on a sent message. It reports
// whether the message's thread is still on screen under the same activation.
func (m *Machine) settleLocked(threadID string, activation context.Context, messageID string) bool {
	if m.active != threadID || activation == nil || activation.Err() != nil {
		return false
	}
	for i := range m.display {
		if m.display[i].ID == messageID {
			m.display[i].Pending = false
		}
	}
	return true
}

// DeleteThread removes a thread, remotely first when the store may hold it.
// An unavailable store counts as success; any other failure keeps the
// entry. Deleting the active thread returns the machine to Idle.
func (m *Machine) DeleteThread(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	thread, ok := m.registry.Get(id)
	if !ok {
		m.mu.Unlock()
		return ErrUnknownThread
	}
	remoteCopy := !thread.Ephemeral || m.used[id]
	epoch := m.epoch
	m.mu.Unlock()

	if remoteCopy && m.signedIn() {
		callCtx, cancel := scoped(ctx, epoch)
		deleted, err := m.store.DeleteThread(callCtx, id)
		cancel()
		switch {
		case err == nil:
			m.logger.Info("thread deleted", zap.String("thread_id", id), zap.Int("deleted", deleted))
		case remote.IsAuthExpired(err):
			m.expire()
			return ErrAuthExpired
		case remote.IsUnavailable(err):
			m.logger.Debug("history unavailable, deleting locally", zap.String("thread_id", id))
		case ctx.Err() != nil || epoch.Err() != nil:
			return err
		default:
			m.logger.Warn("delete failed", zap.String("thread_id", id), zap.Error(err))
			m.mu.Lock()
			m.lastErr = "could not delete conversation, try again"
			m.notifyLocked()
			m.mu.Unlock()
			return opError("delete", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch.Err() != nil {
		return nil
	}
	m.registry.Remove(id)
	delete(m.used, id)
	if m.active == id {
		m.activateLocked("", loader.Greeting())
	}
	m.lastErr = ""
	m.persistLocked()
	m.notifyLocked()
	return nil
}

// ToggleFeedback rates an assistant message. Sending the current value
// again clears it. The change is shown at once and reverted if the store
// refuses it.
func (m *Machine) ToggleFeedback(ctx context.Context, messageID string, value types.Feedback) error {
	if !value.Valid() {
		return ErrInvalidFeedback
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	idx := m.findRatedLocked(messageID)
	if idx < 0 {
		m.mu.Unlock()
		return ErrUnknownMessage
	}
	if m.rating[messageID] {
		m.mu.Unlock()
		return ErrFeedbackInFlight
	}
	previous := m.display[idx].Feedback
	next := value
	if previous == value {
		next = types.FeedbackNone
	}
	remoteID := m.display[idx].RemoteID
	m.display[idx].Feedback = next
	m.rating[messageID] = true
	epoch := m.epoch
	m.notifyLocked()
	m.mu.Unlock()

	callCtx, cancel := scoped(ctx, epoch)
	err := m.store.SetFeedback(callCtx, remoteID, next)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rating, messageID)
	if err == nil {
		return nil
	}
	if idx := m.findRatedLocked(messageID); idx >= 0 && m.display[idx].Feedback == next {
		m.display[idx].Feedback = previous
	}
	m.notifyLocked()
	if remote.IsAuthExpired(err) {
		m.expireLocked()
		return ErrAuthExpired
	}
	if ctx.Err() != nil || epoch.Err() != nil {
		return err
	}
	m.logger.Warn("feedback failed", zap.String("message_id", remoteID), zap.Error(err))
	return opError("feedback", err)
}

func (m *Machine) findRatedLocked(messageID string) int {
	for i, msg := range m.display {
		if msg.ID == messageID && msg.Role == types.RoleAssistant && msg.RemoteID != "" {
			return i
		}
	}
	return -1
}

// RenameThread sets a thread title locally and, for threads the server may
// hold, on the server too. A 404 means the server has not stored the thread
// yet and the local title stands. Any other refusal restores the old title.
func (m *Machine) RenameThread(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	thread, ok := m.registry.Get(id)
	if !ok {
		m.mu.Unlock()
		return ErrUnknownThread
	}
	previous := thread.Title
	thread.Title = title
	m.registry.UpsertLocal(thread)
	m.persistLocked()
	m.notifyLocked()
	remoteCopy := !thread.Ephemeral || m.used[id]
	epoch := m.epoch
	m.mu.Unlock()

	if !remoteCopy || !m.signedIn() {
		return nil
	}
	callCtx, cancel := scoped(ctx, epoch)
	err := m.store.RenameThread(callCtx, id, title)
	cancel()
	if err == nil || remote.IsUnavailable(err) {
		return nil
	}
	if thread.Ephemeral && remote.IsNotFound(err) {
		m.logger.Debug("rename kept locally, thread not stored yet", zap.String("thread_id", id))
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.registry.Get(id); ok && current.Title == title {
		current.Title = previous
		m.registry.UpsertLocal(current)
		m.persistLocked()
		m.notifyLocked()
	}
	if remote.IsAuthExpired(err) {
		m.expireLocked()
		return ErrAuthExpired
	}
	if ctx.Err() != nil || epoch.Err() != nil {
		return err
	}
	return opError("rename", err)
}

// ResetHistory deletes every stored thread and clears local state.
func (m *Machine) ResetHistory(ctx context.Context) error {
	if !m.signedIn() {
		return ErrNoSession
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	epoch := m.epoch
	m.mu.Unlock()

	callCtx, cancel := scoped(ctx, epoch)
	deleted, err := m.store.DeleteAll(callCtx)
	cancel()
	switch {
	case err == nil:
		m.logger.Info("history reset", zap.Int("deleted", deleted))
	case remote.IsAuthExpired(err):
		m.expire()
		return ErrAuthExpired
	case remote.IsUnavailable(err):
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return opError("reset", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch.Err() != nil {
		return nil
	}
	m.registry.Clear()
	m.used = map[string]bool{}
	m.activateLocked("", loader.Greeting())
	m.lastErr = ""
	m.persistLocked()
	m.notifyLocked()
	return nil
}

func (m *Machine) signedIn() bool {
	return m.session != nil && m.session.Current() != nil
}
