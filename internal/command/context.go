package command

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/adamavenir/coverchat/internal/auth"
	"github.com/adamavenir/coverchat/internal/conversation"
	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/db"
	"github.com/adamavenir/coverchat/internal/logging"
	"github.com/adamavenir/coverchat/internal/remote"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CommandContext provides shared command resources.
type CommandContext struct {
	Config   *core.Config
	Logger   *zap.Logger
	Session  *auth.FileSource
	Client   *remote.Client
	JSONMode bool
	Force    bool

	DB      *sql.DB
	Machine *conversation.Machine
}

// GetContext resolves configuration, logging, the stored session and the
// API client for a one-shot command. Logs go to stderr at warn level.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	return loadContext(cmd, false)
}

// GetInteractiveContext is GetContext for the chat UI, which owns the
// terminal and therefore logs to a file.
func GetInteractiveContext(cmd *cobra.Command) (*CommandContext, error) {
	return loadContext(cmd, true)
}

func loadContext(cmd *cobra.Command, interactive bool) (*CommandContext, error) {
	jsonMode, _ := cmd.Flags().GetBool("json")
	force, _ := cmd.Flags().GetBool("force")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	apiURL, _ := cmd.Flags().GetString("api")
	noHistory, _ := cmd.Flags().GetBool("no-history")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := core.LoadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if noHistory {
		cfg.HistoryEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logOpts := logging.Options{Level: "warn", DataDir: cfg.DataDir}
	if interactive {
		logOpts.Level = cfg.LogLevel
		logOpts.ToFile = true
	}
	if verbose {
		logOpts.Level = "debug"
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	session := auth.NewFileSource(cfg.DataDir)
	client, err := remote.NewClient(cfg.APIURL, session.Token,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithHistoryLimit(cfg.HistoryLimit),
	)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &CommandContext{
		Config:   cfg,
		Logger:   logger,
		Session:  session,
		Client:   client,
		JSONMode: jsonMode,
		Force:    force,
	}, nil
}

// OpenMachine opens the local cache and brings up the conversation machine
// with the stored session. Close releases both.
func (c *CommandContext) OpenMachine() (*conversation.Machine, error) {
	if c.Machine != nil {
		return c.Machine, nil
	}
	conn, err := db.OpenDatabase(c.Config.DataDir)
	if err != nil {
		return nil, err
	}

	var store remote.Store = c.Client
	if !c.Config.HistoryEnabled {
		store = remote.Unavailable{}
	}
	machine := conversation.New(conversation.Options{
		Store:        store,
		Chatter:      c.Client,
		Session:      c.Session,
		Cache:        db.Cache{DB: conn},
		Logger:       c.Logger.Named("conversation"),
		PollInterval: c.Config.PollInterval,
	})
	if err := machine.Restore(); err != nil {
		machine.Close()
		_ = conn.Close()
		return nil, err
	}
	machine.SetSession(c.Session.Current())

	c.DB = conn
	c.Machine = machine
	return machine, nil
}

// Close stops the machine and releases the cache and logger.
func (c *CommandContext) Close() {
	if c.Machine != nil {
		c.Machine.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
	_ = c.Logger.Sync()
}

// resolveThread maps a user supplied id or short prefix to a known thread.
func resolveThread(machine *conversation.Machine, ref string) (string, error) {
	view := machine.Snapshot()
	ids := make([]string, 0, len(view.Threads))
	for _, thread := range view.Threads {
		ids = append(ids, thread.ID)
	}
	id, ok := core.MatchID(ref, ids)
	if !ok {
		return "", fmt.Errorf("thread '%s' not found or ambiguous", ref)
	}
	return id, nil
}

// requireSession fails fast for commands that need a signed-in workspace.
func (c *CommandContext) requireSession() error {
	if c.Session.Current() == nil {
		return conversation.ErrNoSession
	}
	return nil
}

var errForceRequired = errors.New("this cannot be undone; rerun with --force")
