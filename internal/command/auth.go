package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <code>",
		Short: "Sign in with a workspace access code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			session, err := ctx.Client.Verify(cmd.Context(), args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Session.Save(session); err != nil {
				return writeCommandError(cmd, err)
			}
			// Drops cached threads that belong to another workspace.
			if _, err := ctx.OpenMachine(); err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"profile_id": session.ProfileID,
					"expires_at": session.ExpiresAt,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in to workspace %s\n", session.ProfileID)
			return nil
		},
	}
}

// NewRequestCodeCmd creates the request-code command.
func NewRequestCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request-code",
		Short: "Ask the server for a new workspace code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			code, err := ctx.Client.RequestCode(cmd.Context())
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"code": code})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Your workspace code: %s\n", code)
			fmt.Fprintf(out, "Sign in with: %s login %s\n", AppName, code)
			return nil
		},
	}
}

// NewLogoutCmd creates the logout command.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local conversation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if ctx.Session.Current() == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			machine, err := ctx.OpenMachine()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Session.Clear(); err != nil {
				return writeCommandError(cmd, err)
			}
			machine.SetSession(nil)

			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			session := ctx.Session.Current()
			if ctx.JSONMode {
				payload := map[string]any{"signed_in": session != nil}
				if session != nil {
					payload["profile_id"] = session.ProfileID
					if !session.ExpiresAt.IsZero() {
						payload["expires_at"] = session.ExpiresAt
					}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(payload)
			}

			out := cmd.OutOrStdout()
			if session == nil {
				fmt.Fprintf(out, "Not signed in. Run: %s login <code>\n", AppName)
				return nil
			}
			fmt.Fprintf(out, "Workspace: %s\n", session.ProfileID)
			if !session.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Expires: %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}
