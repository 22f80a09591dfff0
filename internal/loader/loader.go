// Package loader fetches a thread's messages from the history store and
// decides whether a loaded list may replace what is on screen.
package loader

import (
	"context"
	"errors"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/remote"
	"github.com/adamavenir/coverchat/internal/types"
	"go.uber.org/zap"
)

// Result is the outcome of a load. Available is false when the store is
// disabled, unreachable, failed, or has nothing for the thread; callers
// treat that the same as "no messages yet".
type Result struct {
	Messages  []types.Message
	Available bool
}

// Loader wraps the history half of the remote store.
type Loader struct {
	store  remote.Store
	logger *zap.Logger
}

// New returns a loader over store. A nil store behaves as remote.Unavailable.
func New(store remote.Store, logger *zap.Logger) *Loader {
	if store == nil {
		store = remote.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, logger: logger}
}

// Load fetches threadID's history. The only errors returned are
// remote.ErrAuthExpired and the context's own error; everything else
// degrades to an unavailable Result.
func (l *Loader) Load(ctx context.Context, threadID string) (Result, error) {
	messages, err := l.store.History(ctx, threadID)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrAuthExpired):
		return Result{}, remote.ErrAuthExpired
	case errors.Is(err, remote.ErrUnavailable):
		l.logger.Debug("history unavailable", zap.String("thread_id", threadID))
		return Result{}, nil
	default:
		l.logger.Warn("history load failed", zap.String("thread_id", threadID), zap.Error(err))
		return Result{}, nil
	}
	if len(messages) == 0 {
		return Result{}, nil
	}
	return Result{Messages: messages, Available: true}, nil
}

// Greeting returns the single-message display of a fresh conversation.
func Greeting() []types.Message {
	return []types.Message{{
		ID:      "greeting",
		Role:    types.RoleAssistant,
		Content: core.GreetingText,
	}}
}

// IsFresh reports whether display is exactly the greeting.
func IsFresh(display []types.Message) bool {
	return len(display) == 1 &&
		display[0].Role == types.RoleAssistant &&
		display[0].Content == core.GreetingText
}

// CanApply is the apply-safety rule: a loaded list may only replace a
// display that is still fresh. Anything the user has typed since wins.
func CanApply(display []types.Message) bool {
	return IsFresh(display)
}
