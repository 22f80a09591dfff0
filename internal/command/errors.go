package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adamavenir/coverchat/internal/conversation"
	"github.com/adamavenir/coverchat/internal/remote"
	"github.com/spf13/cobra"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	switch {
	case remote.IsAuthExpired(err), errors.Is(err, conversation.ErrNoSession):
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: Try: %s login <code>\n", AppName)
	case remote.IsUnavailable(err):
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: The history service is unreachable. Check --api or try again later.")
	case isSchemaError(err):
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: This looks like a cache schema mismatch. Delete %s and retry.\n", "state.db")
	}

	return err
}

// isSchemaError checks if an error is a SQLite schema mismatch.
func isSchemaError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "has no column")
}
