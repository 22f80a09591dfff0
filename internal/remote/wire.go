package remote

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/adamavenir/coverchat/internal/types"
)

// Timestamp decodes the ISO-8601 values the API emits. Values without a
// zone are UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		t.Time = time.Time{}
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(value)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses an API timestamp.
func ParseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

type threadRecord struct {
	ThreadID      string    `json:"thread_id"`
	Title         string    `json:"title"`
	LastMessageAt Timestamp `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
}

type threadsResponse struct {
	Threads []threadRecord `json:"threads"`
}

func (r threadRecord) toThread() types.Thread {
	return types.Thread{
		ID:           r.ThreadID,
		Title:        r.Title,
		UpdatedAt:    r.LastMessageAt.Time,
		MessageCount: r.MessageCount,
	}
}

type messageMetadata struct {
	Downloads     []types.Download `json:"downloads"`
	CoverLetterID string           `json:"cover_letter_id"`
}

type historyRecord struct {
	ID       string          `json:"id"`
	MongoID  string          `json:"_id"`
	Role     string          `json:"role"`
	Content  string          `json:"content"`
	Metadata messageMetadata `json:"metadata"`
	Feedback json.RawMessage `json:"feedback"`
}

type historyResponse struct {
	Messages []historyRecord `json:"messages"`
}

func (r historyRecord) toMessage() types.Message {
	id := r.ID
	if id == "" {
		id = r.MongoID
	}
	msg := types.Message{
		ID:            id,
		Role:          types.Role(r.Role),
		Content:       r.Content,
		Downloads:     r.Metadata.Downloads,
		CoverLetterID: r.Metadata.CoverLetterID,
		Feedback:      decodeFeedback(r.Feedback),
	}
	if msg.Role == types.RoleAssistant {
		msg.RemoteID = id
	}
	return msg
}

// decodeFeedback accepts either "up" or {"status": "up", ...}.
func decodeFeedback(raw json.RawMessage) types.Feedback {
	if len(raw) == 0 {
		return types.FeedbackNone
	}
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return normalizeFeedback(value)
	}
	var obj struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return normalizeFeedback(obj.Status)
	}
	return types.FeedbackNone
}

func normalizeFeedback(value string) types.Feedback {
	fb := types.Feedback(strings.ToLower(strings.TrimSpace(value)))
	if fb == "none" || !fb.Valid() {
		return types.FeedbackNone
	}
	return fb
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message  string   `json:"message"`
	FileIDs  []string `json:"fileIds"`
	ThreadID string   `json:"threadId"`
}

// ChatResponse is the assistant reply to a chat request.
type ChatResponse struct {
	Reply              string           `json:"reply"`
	Downloads          []types.Download `json:"downloads"`
	AssistantMessageID string           `json:"-"`
	CoverLetterID      string           `json:"-"`
}

type chatResponsePayload struct {
	Reply              string           `json:"reply"`
	Downloads          []types.Download `json:"downloads"`
	AssistantMessageID *string          `json:"assistantMessageId"`
	CoverLetterID      *string          `json:"coverLetterId"`
}

func (p chatResponsePayload) toResponse() ChatResponse {
	resp := ChatResponse{Reply: p.Reply, Downloads: p.Downloads}
	if p.AssistantMessageID != nil {
		resp.AssistantMessageID = *p.AssistantMessageID
	}
	if p.CoverLetterID != nil {
		resp.CoverLetterID = *p.CoverLetterID
	}
	return resp
}

type feedbackRequest struct {
	MessageID string `json:"messageId"`
	Feedback  string `json:"feedback"`
	Comment   string `json:"comment,omitempty"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	Token     string `json:"token"`
	ProfileID string `json:"profileId"`
	ExpiresAt int64  `json:"expiresAt"`
}

type requestCodeResponse struct {
	Code string `json:"code"`
}
