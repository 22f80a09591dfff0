package core

import "strings"

const (
	// GreetingText is the assistant message every fresh conversation opens with.
	GreetingText = "Hi! I can help you write a cover letter or review your resume. Upload your documents or tell me about the role you're applying for."

	// PlaceholderTitle labels a thread before a better title is known.
	PlaceholderTitle = "New conversation"

	titleLimit = 60
)

// IsPlaceholderTitle reports whether title is a default label rather than
// one derived from the conversation.
func IsPlaceholderTitle(title string) bool {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" || strings.EqualFold(trimmed, PlaceholderTitle) {
		return true
	}
	// The server labels untitled threads "Thread <id>".
	rest, ok := strings.CutPrefix(trimmed, "Thread ")
	if !ok {
		return false
	}
	return rest == "default" || strings.HasPrefix(rest, ThreadPrefix+"-")
}

// DeriveTitle builds a thread title from the first user message: the first
// 60 characters, trimmed, with an ellipsis when the text was cut.
func DeriveTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return PlaceholderTitle
	}
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return strings.TrimSpace(string(runes[:titleLimit])) + "..."
}
