package chat

import (
	"fmt"
	"strings"

	"github.com/adamavenir/coverchat/internal/conversation"
	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/types"
	"github.com/charmbracelet/lipgloss"
)

const (
	threadPanelWidth = 28
	inputMaxHeight   = 6
)

func (m *Model) View() string {
	status := m.statusLine()
	statusStyle := lipgloss.NewStyle().Foreground(statusColor)
	if m.view.Error != "" && m.status == "" {
		statusStyle = statusStyle.Foreground(errorColor)
	}
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		"",
		m.input.View(),
		statusStyle.Render(status),
	)
	return m.zones.Scan(lipgloss.JoinHorizontal(lipgloss.Top, m.renderThreadPanel(), main))
}

func (m *Model) mainWidth() int {
	width := m.width - threadPanelWidth - 2
	if width < 10 {
		width = 10
	}
	return width
}

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	width := m.mainWidth()
	m.input.SetWidth(width)
	lines := m.input.LineCount()
	if lines < 1 {
		lines = 1
	}
	if lines > inputMaxHeight {
		lines = inputMaxHeight
	}
	m.input.SetHeight(lines)
	m.viewport.Width = width
	// margin + status line
	m.viewport.Height = m.height - m.input.Height() - 2
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(renderMessages(m.view.Messages, m.mainWidth()))
	m.viewport.GotoBottom()
}

func renderMessages(messages []types.Message, width int) string {
	body := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderAuthor(msg))
		b.WriteString("\n")
		b.WriteString(renderContent(msg, body))
		b.WriteString("\n")
		for _, download := range msg.Downloads {
			name := download.Filename
			if name == "" {
				name = download.ID
			}
			b.WriteString(metaStyle.Render(fmt.Sprintf("  ↓ %s (%s)", download.Label, name)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderContent wraps prose to the pane and leaves fenced blocks in
// assistant replies unwrapped and highlighted.
func renderContent(msg types.Message, body lipgloss.Style) string {
	if msg.Role != types.RoleAssistant {
		return body.Render(msg.Content)
	}
	segments := splitFenced(msg.Content)
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if !seg.code {
			parts = append(parts, body.Render(seg.text))
			continue
		}
		parts = append(parts, metaStyle.Render(seg.fence+seg.lang))
		parts = append(parts, highlightCode(seg.text, seg.lang))
		parts = append(parts, metaStyle.Render(seg.fence))
	}
	return strings.Join(parts, "\n")
}

func renderAuthor(msg types.Message) string {
	if msg.Role == types.RoleUser {
		label := userStyle.Render("you")
		if msg.Pending {
			label += metaStyle.Render(" · sending")
		}
		return label
	}
	label := assistantStyle.Render("assistant")
	switch msg.Feedback {
	case types.FeedbackUp:
		label += metaStyle.Render(" · 👍")
	case types.FeedbackDown:
		label += metaStyle.Render(" · 👎")
	}
	return label
}

func (m *Model) renderThreadPanel() string {
	lines := []string{metaStyle.Render("conversations"), ""}
	if len(m.view.Threads) == 0 {
		lines = append(lines, metaStyle.Render("none yet"))
	}
	for _, thread := range m.view.Threads {
		lines = append(lines, m.threadLabel(thread))
	}
	height := m.height
	if height < len(lines) {
		height = len(lines)
	}
	return panelStyle.Width(threadPanelWidth).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) threadLabel(thread types.Thread) string {
	title := thread.Title
	if title == "" {
		title = "Thread " + core.ShortID(thread.ID)
	}
	if thread.Ephemeral {
		title = "* " + title
	}
	title = truncateLabel(title, threadPanelWidth-2)
	if thread.ID == m.view.ActiveThread {
		return m.zones.Mark(threadZoneID(thread.ID), activeStyle.Render("▸ "+title))
	}
	return m.zones.Mark(threadZoneID(thread.ID), "  "+title)
}

func truncateLabel(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

func (m *Model) statusLine() string {
	if !m.view.SignedIn {
		return "not signed in · run: coverchat login <code>"
	}
	parts := []string{stateLabel(m.view.State)}
	switch {
	case m.status != "":
		parts = append(parts, m.status)
	case m.view.Error != "":
		parts = append(parts, m.view.Error)
	case m.busy:
		parts = append(parts, "working…")
	default:
		parts = append(parts, "enter send · ctrl+n new · tab switch · ctrl+d delete · ctrl+u/ctrl+x rate")
	}
	return strings.Join(parts, " · ")
}

func stateLabel(state conversation.State) string {
	switch state {
	case conversation.Idle:
		return "no conversation"
	case conversation.Fresh:
		return "new conversation"
	case conversation.Active:
		return "unsaved"
	case conversation.Persisted:
		return "saved"
	}
	return state.String()
}

func threadZoneID(id string) string {
	return "thread-" + id
}
