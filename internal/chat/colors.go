package chat

import (
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/lipgloss"
)

var (
	userColor      = lipgloss.Color("111")
	assistantColor = lipgloss.Color("157")
	metaColor      = lipgloss.Color("244")
	statusColor    = lipgloss.Color("220")
	errorColor     = lipgloss.Color("196")
	activeColor    = lipgloss.Color("216")
	caretColor     = lipgloss.Color("36")
	inputBg        = lipgloss.Color("236")
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(userColor).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(assistantColor).Bold(true)
	metaStyle      = lipgloss.NewStyle().Foreground(metaColor)
	activeStyle    = lipgloss.NewStyle().Foreground(activeColor).Bold(true)
	panelStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderRight(true).BorderForeground(metaColor).PaddingRight(1)
)

func applyInputStyles(input *textarea.Model) {
	input.FocusedStyle.Base = lipgloss.NewStyle().Background(inputBg)
	input.FocusedStyle.Text = lipgloss.NewStyle().Background(inputBg)
	input.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(caretColor).Background(inputBg)
	input.FocusedStyle.CursorLine = lipgloss.NewStyle().Background(inputBg)
	input.BlurredStyle.Base = lipgloss.NewStyle().Foreground(metaColor).Background(inputBg)
	input.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(caretColor).Background(inputBg)
}
