package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bzboard/internal/board"
	"bzboard/internal/bugzilla"
	"bzboard/internal/format"
	"bzboard/internal/session"
	"bzboard/internal/store"
	"bzboard/internal/tui"
)

type App struct {
	Site       string
	ConfigPath string
	URL        string
	PrettyJSON bool
	Format     string
	Debug      bool
	LogFile    string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "bzboard",
		Short:        "Kanban board for a Bugzilla tracker (TUI + CLI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive board
  bzboard --site https://bugzilla.example.com

  # Open a board straight from a shared link
  bzboard --url "https://bugzilla.example.com/board?product=Widget&milestone=1.0"

  # Scriptable commands
  bzboard board --product Widget --milestone 1.0 --format yaml
  bzboard bugs move 1234 --to RESOLVED --resolution FIXED

  # Direct bug lookup (shortcut for: bzboard bugs show <bug-id>)
  bzboard 1234
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive board.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Site, "site", envOr("BZBOARD_SITE", ""), "Tracker root URL (overrides site in config.yaml)")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("BZBOARD_CONFIG", ""), "Path to config.yaml (default: ~/.bzboard/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.URL, "url", "", "Board link or query string (product=…&milestone=…)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("BZBOARD_FORMAT", "json"), "Output format ("+strings.Join(format.Formats, "|")+")")
	cmd.PersistentFlags().BoolVar(&app.Debug, "debug", envBool("BZBOARD_DEBUG"), "Log tracker calls at debug level")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", envOr("BZBOARD_LOG_FILE", ""), "Write logs to this file")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newProductsCmd(app))
	cmd.AddCommand(newMilestonesCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newBugsCmd(app))
	cmd.AddCommand(newMineCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDoctorCmd(app))

	return cmd
}

func runTUI(cmd *cobra.Command, app *App) error {
	// The board owns the terminal, so logs always go to a file.
	if app.LogFile == "" {
		dir, err := store.ConfigDir()
		if err != nil {
			return writeErr(cmd, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return writeErr(cmd, err)
		}
		app.LogFile = filepath.Join(dir, "bzboard.log")
	}
	e, err := openEnv(cmd, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer e.Close()
	return tui.Run(ctxOf(cmd), e.ctrl, e.logger)
}

// env is everything a command needs to talk to the tracker.
type env struct {
	opts    store.Options
	logger  *log.Logger
	client  *bugzilla.Client
	state   *store.State
	ctrl    *board.Controller
	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// openEnv loads the config, restores the stored session and builds the
// controller. Flags override the config file.
func openEnv(cmd *cobra.Command, app *App) (*env, error) {
	opts, err := store.LoadOptions(app.ConfigPath)
	if err != nil {
		return nil, err
	}
	if app.Site != "" {
		opts.Site = strings.TrimRight(strings.TrimSpace(app.Site), "/")
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}

	sess := session.State{LoadComments: opts.LoadComments, AutoRefresh: opts.AutoRefresh}
	if app.URL != "" {
		sess, err = session.Parse(app.URL, sess)
		if err != nil {
			return nil, fmt.Errorf("--url: %w", err)
		}
		if sess.Site != "" && app.Site == "" {
			opts.Site = strings.TrimRight(sess.Site, "/")
		}
	}
	if err := opts.RequireSite(); err != nil {
		return nil, err
	}
	sess.Site = opts.Site

	e := &env{opts: opts}
	e.logger, err = newLogger(app, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if f, ok := e.logger.Out.(*os.File); ok && f != os.Stderr {
		e.closers = append(e.closers, f.Close)
	}

	e.client, err = bugzilla.NewClient(bugzilla.Config{Site: opts.Site, RESTPath: opts.RESTPath, Logger: e.logger})
	if err != nil {
		e.Close()
		return nil, err
	}

	statePath, err := store.StatePath()
	if err != nil {
		e.Close()
		return nil, err
	}
	e.state, err = store.OpenState(ctxOf(cmd), statePath)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.closers = append(e.closers, e.state.Close)

	e.ctrl = board.NewController(opts, e.client, sess, board.WithStateStore(e.state), board.WithLogger(e.logger))
	if err := e.ctrl.RestoreSession(ctxOf(cmd)); err != nil {
		e.logger.WithError(err).Warn("restoring session failed")
	}
	return e, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
