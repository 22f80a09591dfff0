package command

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/types"
)

func formatRelative(ts, now time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	secondsAgo := int64(now.Sub(ts) / time.Second)
	if secondsAgo < 0 {
		return "just now"
	}
	if secondsAgo < 60 {
		return fmt.Sprintf("%ds ago", secondsAgo)
	}
	minutesAgo := secondsAgo / 60
	if minutesAgo < 60 {
		return fmt.Sprintf("%dm ago", minutesAgo)
	}
	hoursAgo := minutesAgo / 60
	if hoursAgo < 24 {
		return fmt.Sprintf("%dh ago", hoursAgo)
	}
	daysAgo := hoursAgo / 24
	if daysAgo < 7 {
		return fmt.Sprintf("%dd ago", daysAgo)
	}
	return fmt.Sprintf("%dw ago", daysAgo/7)
}

// formatThreadLine renders one row of the thread listing. Local-only
// threads are starred.
func formatThreadLine(thread types.Thread, active bool, now time.Time) string {
	marker := " "
	if active {
		marker = ">"
	}
	star := " "
	if thread.Ephemeral {
		star = "*"
	}
	return fmt.Sprintf("%s%s %-8s  %-40s  %s", marker, star, core.ShortID(thread.ID),
		truncate(thread.Title, 40), formatRelative(thread.UpdatedAt, now))
}

// writeTranscript prints messages numbered from 1, the numbering the
// feedback command accepts.
func writeTranscript(out io.Writer, messages []types.Message) {
	for i, msg := range messages {
		author := "you"
		if msg.Role == types.RoleAssistant {
			author = "assistant"
		}
		suffix := ""
		switch msg.Feedback {
		case types.FeedbackUp:
			suffix = " [+1]"
		case types.FeedbackDown:
			suffix = " [-1]"
		}
		if msg.Pending {
			suffix += " (sending)"
		}
		fmt.Fprintf(out, "[%d] %s%s:\n", i+1, author, suffix)
		for _, line := range strings.Split(strings.TrimRight(msg.Content, "\n"), "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
		for _, download := range msg.Downloads {
			fmt.Fprintf(out, "    attachment: %s (%s)\n", download.Filename, download.MimeType)
		}
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
