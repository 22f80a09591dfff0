package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/adamavenir/coverchat/internal/types"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
)

// NewThreadsCmd creates the threads command.
func NewThreadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			pattern, _ := cmd.Flags().GetString("match")
			var matcher glob.Glob
			if pattern != "" {
				matcher, err = glob.Compile(pattern)
				if err != nil {
					return writeCommandError(cmd, fmt.Errorf("invalid --match pattern: %w", err))
				}
			}

			machine, err := ctx.OpenMachine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			machine.Wait()
			view := machine.Snapshot()

			threads := make([]types.Thread, 0, len(view.Threads))
			for _, thread := range view.Threads {
				if matcher != nil && !matcher.Match(thread.Title) && !matcher.Match(thread.ID) {
					continue
				}
				threads = append(threads, thread)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(threads)
			}
			out := cmd.OutOrStdout()
			if len(threads) == 0 {
				fmt.Fprintln(out, "No conversations")
				return nil
			}
			now := time.Now()
			for _, thread := range threads {
				fmt.Fprintln(out, formatThreadLine(thread, thread.ID == view.ActiveThread, now))
			}
			return nil
		},
	}

	cmd.Flags().String("match", "", "only show threads whose title or id matches a glob")
	return cmd
}

// NewRmCmd creates the rm command.
func NewRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <thread>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			machine, err := ctx.OpenMachine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			machine.Wait()
			id, err := resolveThread(machine, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := machine.DeleteThread(cmd.Context(), id); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"deleted": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	}
}

// NewRenameCmd creates the rename command.
func NewRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <thread> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			machine, err := ctx.OpenMachine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			machine.Wait()
			id, err := resolveThread(machine, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := machine.RenameThread(cmd.Context(), id, args[1]); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"id": id, "title": args[1]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", id, args[1])
			return nil
		},
	}
}

// NewResetCmd creates the reset command.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every conversation in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if !ctx.Force {
				return writeCommandError(cmd, errForceRequired)
			}
			if err := ctx.requireSession(); err != nil {
				return writeCommandError(cmd, err)
			}
			machine, err := ctx.OpenMachine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			machine.Wait()
			if err := machine.ResetHistory(cmd.Context()); err != nil {
				return writeCommandError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All conversations deleted")
			return nil
		},
	}
}
