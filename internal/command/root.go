package command

import (
	"os"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/spf13/cobra"
)

const AppName = core.AppName

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Coverchat - terminal client for the cover letter assistant",
		Long:          "Coverchat talks to the cover letter assistant and keeps your conversations in sync across clients.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Bool("force", false, "force action (skip confirmations)")
	cmd.PersistentFlags().String("api", "", "assistant API base URL")
	cmd.PersistentFlags().String("data-dir", "", "directory for session, cache and logs")
	cmd.PersistentFlags().Bool("no-history", false, "run without the history service")
	cmd.PersistentFlags().Bool("verbose", false, "log debug output")

	cmd.AddCommand(
		NewLoginCmd(),
		NewRequestCodeCmd(),
		NewLogoutCmd(),
		NewWhoamiCmd(),
		NewThreadsCmd(),
		NewHistoryCmd(),
		NewSendCmd(),
		NewRmCmd(),
		NewRenameCmd(),
		NewFeedbackCmd(),
		NewResetCmd(),
		NewChatCmd(),
		NewConfigCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
