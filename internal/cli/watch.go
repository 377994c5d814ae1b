package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"bzboard/internal/poll"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		flags    boardFlags
		interval time.Duration
		once     bool
		auto     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a board for external changes and print one line per check",
		Long: `Loads a board, then checks it for bugs changed by others on every tick.
With --auto-refresh the board is reloaded and printed again when changes are
found; otherwise a notice is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := flags.loadBoard(cmd, e); err != nil {
				return writeErr(cmd, err)
			}
			if cmd.Flags().Changed("auto-refresh") {
				e.ctrl.SetAutoRefresh(auto)
			}
			if !cmd.Flags().Changed("interval") {
				interval = e.opts.PollInterval
			}

			ctx := ctxOf(cmd)
			p := poll.New(interval, e.logger)
			autoRefresh := func() bool { return e.ctrl.Session().AutoRefresh }

			var writeErrOut error
			onResult := func(res poll.Result) {
				out := map[string]any{"changed": res.Changed, "action": res.Action.String()}
				if res.Message != "" {
					out["notice"] = res.Message
				}
				if res.Err != nil {
					out["error"] = res.Err.Error()
				}
				if res.Action == poll.ActionReload {
					if err := e.ctrl.Reload(ctx); err != nil {
						out["error"] = err.Error()
					} else {
						out["board"] = boardData(e)
					}
				}
				if err := writeOut(cmd, app, map[string]any{"data": out}); err != nil {
					writeErrOut = err
				}
			}

			if once {
				res, err := p.Once(ctx, autoRefresh(), e.ctrl.UpdateChecker())
				if errors.Is(err, poll.ErrStop) {
					return writeErr(cmd, errors.New("update checks are disabled (check_for_updates: false)"))
				}
				onResult(res)
				if err != nil {
					return err
				}
				return writeErrOut
			}
			// The checker captures the query and load time, so refresh it after each reload.
			check := func(ctx2 context.Context) (int, error) { return e.ctrl.UpdateChecker()(ctx2) }
			if err := p.Run(ctx, autoRefresh, check, onResult); err != nil && !errors.Is(err, context.Canceled) {
				return writeErr(cmd, err)
			}
			return writeErrOut
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between checks (default: poll_interval from config)")
	cmd.Flags().BoolVar(&once, "once", false, "Check once and exit")
	cmd.Flags().BoolVar(&auto, "auto-refresh", false, "Reload and print the board when changes are found")
	return cmd
}
