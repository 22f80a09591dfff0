package conversation

import "github.com/adamavenir/coverchat/internal/types"

// State is the lifecycle position of the active thread.
type State int

const (
	// Idle means no thread is active.
	Idle State = iota
	// Fresh means the active thread shows only the greeting.
	Fresh
	// Active means the user has sent a message the history store has not
	// listed yet.
	Active
	// Persisted means a remote listing contained the thread.
	Persisted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fresh:
		return "fresh"
	case Active:
		return "active"
	case Persisted:
		return "persisted"
	}
	return "unknown"
}

// View is an immutable copy of what the UI renders.
type View struct {
	ActiveThread string
	State        State
	Messages     []types.Message
	Threads      []types.Thread
	// Error is the last non-fatal failure, cleared by the next action.
	Error    string
	SignedIn bool
}

func hasUserMessage(messages []types.Message) bool {
	for _, msg := range messages {
		if msg.Role == types.RoleUser {
			return true
		}
	}
	return false
}

func copyMessages(messages []types.Message) []types.Message {
	out := make([]types.Message, len(messages))
	for i, msg := range messages {
		if len(msg.Downloads) > 0 {
			msg.Downloads = append([]types.Download(nil), msg.Downloads...)
		}
		out[i] = msg
	}
	return out
}
