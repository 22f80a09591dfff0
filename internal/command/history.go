package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/adamavenir/coverchat/internal/conversation"
	"github.com/adamavenir/coverchat/internal/types"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <thread>",
		Short: "Show the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			view, err := openThread(ctx, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"thread":   view.ActiveThread,
					"state":    view.State.String(),
					"messages": view.Messages,
				})
			}
			writeTranscript(cmd.OutOrStdout(), view.Messages)
			return nil
		},
	}
}

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a message to the assistant",
		Long: "Send a message to the assistant. Without --thread or --new the message\n" +
			"continues the conversation that was active last.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			threadRef, _ := cmd.Flags().GetString("thread")
			startNew, _ := cmd.Flags().GetBool("new")
			fileIDs, _ := cmd.Flags().GetStringSlice("file")
			if threadRef != "" && startNew {
				return writeCommandError(cmd, fmt.Errorf("--thread and --new are mutually exclusive"))
			}
			if err := ctx.requireSession(); err != nil {
				return writeCommandError(cmd, err)
			}

			machine, err := ctx.OpenMachine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			machine.Wait()
			switch {
			case threadRef != "":
				id, err := resolveThread(machine, threadRef)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				if err := machine.SelectThread(id); err != nil {
					return writeCommandError(cmd, err)
				}
				machine.Wait()
			case startNew:
				if err := machine.NewChat(true); err != nil {
					return writeCommandError(cmd, err)
				}
			}

			text := strings.Join(args, " ")
			if err := machine.SendMessage(cmd.Context(), text, fileIDs); err != nil {
				return writeCommandError(cmd, err)
			}
			view := machine.Snapshot()
			reply := lastAssistant(view.Messages)

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"thread": view.ActiveThread,
					"reply":  reply,
				})
			}
			if reply != nil {
				writeTranscript(cmd.OutOrStdout(), []types.Message{*reply})
			}
			return nil
		},
	}

	cmd.Flags().String("thread", "", "conversation to continue (id or prefix)")
	cmd.Flags().Bool("new", false, "start a new conversation")
	cmd.Flags().StringSlice("file", nil, "uploaded file id to attach (repeatable)")
	return cmd
}

// NewFeedbackCmd creates the feedback command.
func NewFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <thread> <n> <up|down|none>",
		Short: "Rate an assistant reply",
		Long:  "Rate an assistant reply. <n> is the message number shown by the history command.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			index, err := strconv.Atoi(args[1])
			if err != nil || index < 1 {
				return writeCommandError(cmd, fmt.Errorf("invalid message number: %s", args[1]))
			}
			want, err := parseFeedback(args[2])
			if err != nil {
				return writeCommandError(cmd, err)
			}

			view, err := openThread(ctx, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if index > len(view.Messages) {
				return writeCommandError(cmd, fmt.Errorf("thread has %d messages", len(view.Messages)))
			}
			msg := view.Messages[index-1]

			// Toggling the current value clears it.
			toggle := want
			if want == types.FeedbackNone {
				toggle = msg.Feedback
			}
			if toggle != types.FeedbackNone && msg.Feedback != want {
				if err := ctx.Machine.ToggleFeedback(cmd.Context(), msg.ID, toggle); err != nil {
					return writeCommandError(cmd, err)
				}
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"message":  msg.ID,
					"feedback": string(want),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Feedback on message %d: %s\n", index, feedbackLabel(want))
			return nil
		},
	}
}

// openThread brings up the machine, makes ref the active thread and waits
// for its history.
func openThread(ctx *CommandContext, ref string) (conversation.View, error) {
	machine, err := ctx.OpenMachine()
	if err != nil {
		return conversation.View{}, err
	}
	machine.Wait()
	id, err := resolveThread(machine, ref)
	if err != nil {
		return conversation.View{}, err
	}
	if err := machine.SelectThread(id); err != nil {
		return conversation.View{}, err
	}
	machine.Wait()
	return machine.Snapshot(), nil
}

func parseFeedback(value string) (types.Feedback, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "up", "+1", "good":
		return types.FeedbackUp, nil
	case "down", "-1", "bad":
		return types.FeedbackDown, nil
	case "none", "clear":
		return types.FeedbackNone, nil
	}
	return "", fmt.Errorf("feedback must be up, down or none, got %q", value)
}

func feedbackLabel(value types.Feedback) string {
	if value == types.FeedbackNone {
		return "cleared"
	}
	return string(value)
}

func lastAssistant(messages []types.Message) *types.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleAssistant {
			return &messages[i]
		}
	}
	return nil
}
