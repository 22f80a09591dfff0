package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/adamavenir/coverchat/internal/chat"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
				return writeCommandError(cmd, fmt.Errorf("--json not supported for interactive chat"))
			}

			ctx, err := GetInteractiveContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			machine, err := ctx.OpenMachine()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			workspace := ""
			if session := ctx.Session.Current(); session != nil {
				workspace = session.ProfileID
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			group, groupCtx := errgroup.WithContext(runCtx)
			// Logins and logouts from other terminals.
			group.Go(func() error {
				return ctx.Session.Watch(groupCtx, ctx.Logger.Named("session"), machine.SetSession)
			})
			group.Go(func() error {
				defer cancel()
				return chat.Run(groupCtx, machine, chat.Options{
					Notify:    ctx.Config.Notify,
					Workspace: workspace,
					Logger:    ctx.Logger.Named("chat"),
				})
			})
			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}
}
