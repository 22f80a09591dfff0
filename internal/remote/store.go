package remote

import (
	"context"

	"github.com/adamavenir/coverchat/internal/types"
)

// Store is the optional history capability. A deployment without history
// persistence is modelled by Unavailable rather than by availability checks
// at call sites.
type Store interface {
	ListThreads(ctx context.Context) ([]types.Thread, error)
	History(ctx context.Context, threadID string) ([]types.Message, error)
	DeleteThread(ctx context.Context, threadID string) (int, error)
	DeleteAll(ctx context.Context) (int, error)
	SetFeedback(ctx context.Context, messageID string, feedback types.Feedback) error
	RenameThread(ctx context.Context, threadID, title string) error
}

// Chatter produces assistant replies. It is separate from Store because chat
// works with history persistence switched off.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Unavailable is the Store used when history persistence is disabled.
type Unavailable struct{}

func (Unavailable) ListThreads(context.Context) ([]types.Thread, error) {
	return nil, ErrUnavailable
}

func (Unavailable) History(context.Context, string) ([]types.Message, error) {
	return nil, ErrUnavailable
}

func (Unavailable) DeleteThread(context.Context, string) (int, error) {
	return 0, ErrUnavailable
}

func (Unavailable) DeleteAll(context.Context) (int, error) {
	return 0, ErrUnavailable
}

func (Unavailable) SetFeedback(context.Context, string, types.Feedback) error {
	return ErrUnavailable
}

func (Unavailable) RenameThread(context.Context, string, string) error {
	return ErrUnavailable
}

var (
	_ Store   = (*Client)(nil)
	_ Store   = Unavailable{}
	_ Chatter = (*Client)(nil)
)
