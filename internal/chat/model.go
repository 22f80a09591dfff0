package chat

import (
	"context"
	"fmt"

	"github.com/adamavenir/coverchat/internal/conversation"
	"github.com/adamavenir/coverchat/internal/types"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"go.uber.org/zap"
)

// Engine is the part of the conversation machine the UI drives.
type Engine interface {
	Snapshot() conversation.View
	Subscribe() <-chan struct{}
	NewChat(force bool) error
	SelectThread(id string) error
	SendMessage(ctx context.Context, text string, fileIDs []string) error
	DeleteThread(ctx context.Context, id string) error
	ToggleFeedback(ctx context.Context, messageID string, value types.Feedback) error
}

// Options configure chat.
type Options struct {
	Notify bool
	// Workspace is shown in the window title.
	Workspace string
	Logger    *zap.Logger
}

// Run starts the chat UI and blocks until the user quits.
func Run(ctx context.Context, engine Engine, opts Options) error {
	model := NewModel(ctx, engine, opts)
	title := "coverchat"
	if opts.Workspace != "" {
		title = "coverchat · " + opts.Workspace
	}
	fmt.Printf("\033]0;%s\007", title)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// Model implements the chat UI.
type Model struct {
	ctx     context.Context
	engine  Engine
	changes <-chan struct{}
	logger  *zap.Logger
	notify  bool
	zones   *zone.Manager // click targets in the thread panel

	viewport viewport.Model
	input    textarea.Model
	view     conversation.View
	status   string
	width    int
	height   int

	// forceNext is set after a refused ctrl+n so a second press forces.
	forceNext bool
	busy      bool
}

// NewModel builds the model and subscribes it to engine changes.
func NewModel(ctx context.Context, engine Engine, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{
		ctx:      ctx,
		engine:   engine,
		changes:  engine.Subscribe(),
		logger:   logger,
		notify:   opts.Notify,
		zones:    zone.New(),
		viewport: viewport.New(0, 0),
		input:    newInputModel(),
	}
	m.view = engine.Snapshot()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForChange())
}

func newInputModel() textarea.Model {
	input := textarea.New()
	input.Placeholder = "Tell me about the role you're applying for..."
	input.Prompt = "› "
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(1)
	input.KeyMap.InsertNewline.SetEnabled(false)
	applyInputStyles(&input)
	input.Focus()
	return input
}
