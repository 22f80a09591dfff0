package chat

import (
	"errors"
	"strings"

	"github.com/adamavenir/coverchat/internal/conversation"
	"github.com/adamavenir/coverchat/internal/types"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// changeMsg means the engine state moved.
type changeMsg struct{}

// resultMsg carries the outcome of an engine operation run as a command.
type resultMsg struct {
	op  string
	err error
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.MouseMsg:
		return m.handleMouseMsg(msg)
	case changeMsg:
		m.refresh()
		return m, m.waitForChange()
	case resultMsg:
		return m.handleResultMsg(msg)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

// waitForChange blocks a command goroutine on the engine's change feed.
func (m *Model) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changeMsg{}
	}
}

func (m *Model) run(op string, fn func() error) tea.Cmd {
	m.busy = true
	return func() tea.Msg {
		return resultMsg{op: op, err: fn()}
	}
}

func (m *Model) handleResultMsg(msg resultMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.refresh()
	if msg.err != nil {
		m.status = describeError(msg.err)
		m.logger.Debug("operation failed", zap.String("op", msg.op), zap.Error(msg.err))
		return m, nil
	}
	m.status = ""
	if msg.op == "send" && m.notify {
		if reply := lastReply(m.view.Messages); reply != nil {
			maybeNotify(*reply)
		}
	}
	return m, nil
}

func (m *Model) refresh() {
	m.view = m.engine.Snapshot()
	m.refreshViewport()
}

func describeError(err error) string {
	var opErr *conversation.OperationError
	switch {
	case errors.Is(err, conversation.ErrAuthExpired):
		return "session expired, run: coverchat login <code>"
	case errors.As(err, &opErr):
		return opErr.Op + " failed, try again"
	default:
		return err.Error()
	}
}

func lastReply(messages []types.Message) *types.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleAssistant {
			return &messages[i]
		}
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "ctrl+n" {
		m.forceNext = false
	}
	switch key {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "enter":
		return m, m.submit()
	case "ctrl+j":
		m.input.InsertString("\n")
		m.resize()
		return m, nil
	case "ctrl+n":
		m.newChat()
		return m, nil
	case "tab":
		m.cycleThread(1)
		return m, nil
	case "shift+tab":
		m.cycleThread(-1)
		return m, nil
	case "ctrl+d":
		return m, m.deleteActive()
	case "ctrl+u":
		return m, m.rateLastReply(types.FeedbackUp)
	case "ctrl+x":
		return m, m.rateLastReply(types.FeedbackDown)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.resize()
	return m, cmd
}

func (m *Model) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		for _, thread := range m.view.Threads {
			if m.zones.Get(threadZoneID(thread.ID)).InBounds(msg) {
				m.selectThread(thread.ID)
				return m, nil
			}
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()
	m.resize()
	ctx := m.ctx
	return m.run("send", func() error {
		return m.engine.SendMessage(ctx, text, nil)
	})
}

func (m *Model) newChat() {
	err := m.engine.NewChat(m.forceNext)
	if errors.Is(err, conversation.ErrThreadUnused) {
		m.forceNext = true
		m.status = err.Error() + " (ctrl+n again to start anyway)"
		return
	}
	m.forceNext = false
	if err != nil {
		m.status = describeError(err)
		return
	}
	m.status = ""
	m.input.Reset()
	m.refresh()
}

func (m *Model) cycleThread(step int) {
	threads := m.view.Threads
	if len(threads) == 0 {
		return
	}
	idx := -1
	for i, thread := range threads {
		if thread.ID == m.view.ActiveThread {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && step > 0:
		idx = 0
	case idx < 0:
		idx = len(threads) - 1
	default:
		idx = (idx + step + len(threads)) % len(threads)
	}
	m.selectThread(threads[idx].ID)
}

func (m *Model) selectThread(id string) {
	m.forceNext = false
	if err := m.engine.SelectThread(id); err != nil {
		m.status = describeError(err)
		return
	}
	m.status = ""
	m.refresh()
}

func (m *Model) deleteActive() tea.Cmd {
	id := m.view.ActiveThread
	if id == "" {
		m.status = "no conversation selected"
		return nil
	}
	ctx := m.ctx
	return m.run("delete", func() error {
		return m.engine.DeleteThread(ctx, id)
	})
}

func (m *Model) rateLastReply(value types.Feedback) tea.Cmd {
	reply := lastReply(m.view.Messages)
	if reply == nil || reply.RemoteID == "" {
		m.status = "nothing to rate yet"
		return nil
	}
	id := reply.ID
	ctx := m.ctx
	return m.run("feedback", func() error {
		return m.engine.ToggleFeedback(ctx, id, value)
	})
}
