package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"bzboard/internal/board"
)

// boardFlags select a board the same way the TUI pickers do.
type boardFlags struct {
	product   string
	milestone string
	assignee  string
	filter    string
	backlog   bool
	comments  bool
}

func (f *boardFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.product, "product", "", "Product name")
	cmd.Flags().StringVar(&f.milestone, "milestone", "", "Target milestone (--- for none)")
	cmd.Flags().StringVar(&f.assignee, "assignee", "", "Only show cards assigned to this email or login")
	cmd.Flags().StringVar(&f.filter, "filter", "", "Only show cards whose text contains this")
	cmd.Flags().BoolVar(&f.backlog, "backlog", false, "Include the backlog column")
	cmd.Flags().BoolVar(&f.comments, "comments", false, "Load comment counts")
}

// loadBoard applies the flags to the controller and loads the board.
func (f *boardFlags) loadBoard(cmd *cobra.Command, e *env) error {
	ctx := ctxOf(cmd)
	if p := strings.TrimSpace(f.product); p != "" {
		e.ctrl.SelectProduct(p)
	}
	if m := strings.TrimSpace(f.milestone); m != "" {
		e.ctrl.SelectMilestone(m)
	}
	if !e.ctrl.Session().Ready() {
		return errNoBoard
	}
	if cmd.Flags().Changed("comments") {
		e.ctrl.SetLoadComments(f.comments)
	}
	if err := e.ctrl.LoadMeta(ctx); err != nil {
		return err
	}
	if f.backlog {
		e.ctrl.ToggleBacklog()
	}
	if err := e.ctrl.Reload(ctx); err != nil {
		e.ctrl.HandleError(ctx, err, nil)
		return err
	}
	e.ctrl.SetFilter(f.filter)
	if f.assignee != "" {
		e.ctrl.SelectAssignee(f.assignee)
	}
	return nil
}

func boardData(e *env) map[string]any {
	sess := e.ctrl.Session()
	b := e.ctrl.Board()
	out := map[string]any{
		"view":      e.ctrl.View().String(),
		"columns":   b.Columns(),
		"total":     b.VisibleTotal(),
		"assignees": b.Assignees(),
		"link":      sess.Encode(),
	}
	if e.ctrl.View() == board.ViewMilestone {
		out["product"] = sess.Product
		out["milestone"] = sess.Milestone
	}
	if n := e.ctrl.Notice(); n != "" {
		out["notice"] = n
	}
	return out
}

func newBoardCmd(app *App) *cobra.Command {
	var flags boardFlags

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print a milestone board as columns of cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if err := flags.loadBoard(cmd, e); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": boardData(e)})
		},
	}
	flags.register(cmd)
	return cmd
}

func newMineCmd(app *App) *cobra.Command {
	var interested bool

	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Print your recently changed bugs across products",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if !e.ctrl.LoggedIn() {
				return writeErr(cmd, errNotLoggedIn)
			}
			ctx := ctxOf(cmd)
			if err := e.ctrl.LoadMeta(ctx); err != nil {
				return writeErr(cmd, err)
			}
			view := board.ViewMine
			if interested {
				view = board.ViewInterested
			}
			if err := e.ctrl.LoadUserView(ctx, view); err != nil {
				e.ctrl.HandleError(ctx, err, nil)
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": boardData(e)})
		},
	}
	cmd.Flags().BoolVar(&interested, "interested", false, "Bugs where you are the QA contact instead of the assignee")
	return cmd
}
