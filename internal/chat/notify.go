package chat

import (
	"strings"

	"github.com/adamavenir/coverchat/internal/types"
	"github.com/gen2brain/beeep"
)

// maybeNotify raises a desktop notification for an assistant reply.
func maybeNotify(msg types.Message) {
	if msg.Role != types.RoleAssistant || msg.Content == "" {
		return
	}
	_ = SendNotification(msg)
}

// SendNotification sends an OS notification for a reply.
func SendNotification(msg types.Message) error {
	title := "coverchat"
	if len(msg.Downloads) > 0 {
		title = "coverchat · " + msg.Downloads[0].Label
	}
	return beeep.Notify(title, truncateNotification(msg.Content, 100), "")
}

func truncateNotification(s string, maxLen int) string {
	// Collapse whitespace for notification
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
