package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bzboard/internal/board"
	"bzboard/internal/form"
	"bzboard/internal/model"
	"bzboard/internal/statusutil"
)

func newBugsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bugs",
		Aliases: []string{"bug"},
		Short:   "Bug commands",
	}
	cmd.AddCommand(newBugsShowCmd(app))
	cmd.AddCommand(newBugsMoveCmd(app))
	cmd.AddCommand(newBugsEditCmd(app))
	cmd.AddCommand(newBugsCreateCmd(app))
	return cmd
}

func parseBugID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || id <= 0 {
		return 0, badBugIDError{arg: s}
	}
	return id, nil
}

func newBugsShowCmd(app *App) *cobra.Command {
	var withComments bool

	cmd := &cobra.Command{
		Use:   "show <bug-id>",
		Short: "Show a bug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBugID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := ctxOf(cmd)
			b, err := e.client.Bug(ctx, id)
			if err != nil {
				e.ctrl.HandleError(ctx, err, nil)
				return writeErr(cmd, err)
			}
			out := map[string]any{"bug": b, "url": e.ctrl.BugURL(id)}
			if withComments {
				cs, err := e.ctrl.FetchComments(ctx, id)
				if err != nil {
					return writeErr(cmd, err)
				}
				out["comments"] = cs
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().BoolVar(&withComments, "comments", false, "Include the comment thread")
	return cmd
}

// editFlags are the form fields shared by move and edit.
type editFlags struct {
	comment    string
	work       string
	productive string
	resolution string
	priority   string
	severity   string
}

func (f *editFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.comment, "comment", "", "Comment to add")
	cmd.Flags().StringVar(&f.work, "work", "", "Work time in minutes")
	cmd.Flags().StringVar(&f.productive, "productive", "", "Productive time in minutes")
	cmd.Flags().StringVar(&f.resolution, "resolution", "", "Resolution (for statuses that require one)")
	cmd.Flags().StringVar(&f.priority, "priority", "", "Priority")
	cmd.Flags().StringVar(&f.severity, "severity", "", "Severity")
}

func (f *editFlags) input() form.EditInput {
	return form.EditInput{
		Comment:           f.comment,
		WorkMinutes:       f.work,
		ProductiveMinutes: f.productive,
		Resolution:        f.resolution,
		Priority:          f.priority,
		Severity:          f.severity,
	}
}

// writeStaged validates a staged change and writes it.
func writeStaged(cmd *cobra.Command, e *env, st board.Staged, in form.EditInput) (model.BugUpdate, error) {
	ctx := ctxOf(cmd)
	u, err := e.ctrl.PrepareUpdate(st, in)
	if err != nil {
		return model.BugUpdate{}, err
	}
	if err := e.ctrl.WriteUpdate(ctx, u); err != nil {
		e.ctrl.HandleError(ctx, err, nil)
		return model.BugUpdate{}, err
	}
	return u, nil
}

func newBugsMoveCmd(app *App) *cobra.Command {
	var (
		to        string
		milestone string
		flags     editFlags
	)

	cmd := &cobra.Command{
		Use:   "move <bug-id>",
		Short: "Move a bug to another column (status), like dropping its card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBugID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()
			if !e.ctrl.CanEdit() {
				return writeErr(cmd, board.ErrEditDisabled)
			}

			ctx := ctxOf(cmd)
			if err := e.ctrl.LoadMeta(ctx); err != nil {
				return writeErr(cmd, err)
			}
			column, err := statusutil.NormalizeStatusID(to)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !statusutil.ValidateStatusID(e.ctrl.Meta().Statuses, column) {
				return writeErr(cmd, fmt.Errorf("unknown status %q (have %s)", to, strings.Join(e.ctrl.Meta().Statuses, ", ")))
			}
			cur, err := e.client.Bug(ctx, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if column == cur.Status && (milestone == "" || milestone == cur.Milestone) {
				return writeErr(cmd, board.ErrSameColumn)
			}
			update := board.StageDrop(cur, board.DropTarget{
				Column:          column,
				Milestone:       firstNonBlank(milestone, cur.Milestone),
				BacklogStatus:   e.opts.BacklogDefaultStatus,
				DefaultPriority: e.ctrl.Meta().DefaultPriority,
			})
			u, err := writeStaged(cmd, e, board.Staged{Current: cur, Update: update}, flags.input())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "update": u, "url": e.ctrl.BugURL(id)}})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Target status, or BACKLOG to clear the milestone")
	cmd.Flags().StringVar(&milestone, "milestone", "", "Target milestone (default: keep)")
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newBugsEditCmd(app *App) *cobra.Command {
	var (
		summary string
		flags   editFlags
	)

	cmd := &cobra.Command{
		Use:   "edit <bug-id>",
		Short: "Edit a bug in place and optionally comment on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBugID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			cur, err := e.client.Bug(ctxOf(cmd), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			in := flags.input()
			in.Summary = summary
			st := board.Staged{Current: cur, Update: model.BugUpdate{ID: id, Status: cur.Status}, Opened: true}
			u, err := writeStaged(cmd, e, st, in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "update": u, "url": e.ctrl.BugURL(id)}})
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "New summary")
	flags.register(cmd)
	return cmd
}

func newBugsCreateCmd(app *App) *cobra.Command {
	var (
		product   string
		milestone string
		in        form.CreateInput
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a new bug in a product and milestone",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := ctxOf(cmd)
			if product != "" {
				e.ctrl.SelectProduct(product)
			}
			if milestone != "" {
				e.ctrl.SelectMilestone(milestone)
			}
			if !e.ctrl.Session().Ready() {
				return writeErr(cmd, errNoBoard)
			}
			if !e.ctrl.CanEdit() {
				return writeErr(cmd, fmt.Errorf("%w; file it at %s", board.ErrEditDisabled, e.ctrl.NewBugURL()))
			}
			pm, err := e.ctrl.FetchProduct(ctx, e.ctrl.Session().Product)
			if err != nil {
				return writeErr(cmd, err)
			}
			e.ctrl.ApplyProduct(pm)
			nb, err := e.ctrl.PrepareNewBug(in)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := e.ctrl.WriteNewBug(ctx, nb)
			if err != nil {
				e.ctrl.HandleError(ctx, err, nil)
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "url": e.ctrl.BugURL(id)}})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "Product name")
	cmd.Flags().StringVar(&milestone, "milestone", "", "Target milestone")
	cmd.Flags().StringVar(&in.Summary, "summary", "", "Summary")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.Component, "component", "", "Component (default: first active)")
	cmd.Flags().StringVar(&in.Version, "version", "", "Version (default: first active)")
	_ = cmd.MarkFlagRequired("summary")
	return cmd
}

func contains(vals []string, s string) bool {
	for _, v := range vals {
		if v == s {
			return true
		}
	}
	return false
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
