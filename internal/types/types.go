package types

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Feedback is the rating a user left on an assistant message.
type Feedback string

const (
	FeedbackNone Feedback = ""
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// Valid reports whether f is one of the known feedback values.
func (f Feedback) Valid() bool {
	switch f {
	case FeedbackNone, FeedbackUp, FeedbackDown:
		return true
	}
	return false
}

// Thread is a conversation as known to the local registry.
type Thread struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count,omitempty"`
	// Ephemeral is true until a remote listing has contained the thread.
	Ephemeral bool `json:"ephemeral,omitempty"`
}

// Download describes a file attached to an assistant reply.
type Download struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data,omitempty"`
}

// Message is a single entry in the displayed conversation.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Downloads []Download `json:"downloads,omitempty"`
	Feedback  Feedback   `json:"feedback,omitempty"`
	// RemoteID is the server-side id used for feedback. Empty for messages
	// the server has not stored.
	RemoteID      string `json:"remote_id,omitempty"`
	CoverLetterID string `json:"cover_letter_id,omitempty"`
	// Pending marks an optimistic user message awaiting acknowledgement.
	Pending bool `json:"pending,omitempty"`
}

// Session is the bearer credential issued for a workspace code.
type Session struct {
	Token     string    `json:"token"`
	ProfileID string    `json:"profile_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session carries a token that has not expired.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// SameWorkspace reports whether two sessions belong to the same workspace
// under the same credential.
func (s *Session) SameWorkspace(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Token == other.Token && s.ProfileID == other.ProfileID
}
