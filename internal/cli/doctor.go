package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

type doctorIssue struct {
	Level   string `json:"level"`
	Check   string `json:"check"`
	Message string `json:"message"`
}

type doctorReport struct {
	Site   string        `json:"site"`
	Issues []doctorIssue `json:"issues"`
}

func (r *doctorReport) add(level, check, format string, args ...any) {
	r.Issues = append(r.Issues, doctorIssue{Level: level, Check: check, Message: fmt.Sprintf(format, args...)})
}

func (r doctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == "error" {
			return true
		}
	}
	return false
}

func newDoctorCmd(app *App) *cobra.Command {
	var fail bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the config, tracker connection and stored login",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := doctorReport{Issues: []doctorIssue{}}
			e, err := openEnv(cmd, app)
			if err != nil {
				report.add("error", "config", "%v", err)
			} else {
				defer e.Close()
				report.Site = e.opts.Site
				runDoctorChecks(cmd, e, &report)
			}

			meta := map[string]any{
				"issues":    len(report.Issues),
				"hasErrors": report.HasErrors(),
			}
			hints := []string{"bzboard config show", "bzboard login"}
			if err := writeOut(cmd, app, map[string]any{
				"data":   report,
				"meta":   meta,
				"_hints": hints,
			}); err != nil {
				return err
			}
			if fail && report.HasErrors() {
				return errDoctorIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if errors are found")
	return cmd
}

func runDoctorChecks(cmd *cobra.Command, e *env, r *doctorReport) {
	ctx := ctxOf(cmd)
	if err := e.ctrl.LoadMeta(ctx); err != nil {
		r.add("error", "tracker", "cannot load tracker metadata: %v", err)
		return
	}
	statuses := e.ctrl.Meta().Statuses
	if !contains(statuses, e.opts.BacklogDefaultStatus) {
		r.add("error", "config", "backlog_default_status %q is not a tracker status", e.opts.BacklogDefaultStatus)
	}
	keys := make([]string, 0, len(e.opts.StatusFields))
	for status := range e.opts.StatusFields {
		keys = append(keys, status)
	}
	sort.Strings(keys)
	for _, status := range keys {
		if !contains(statuses, status) {
			r.add("warn", "config", "status_fields names unknown status %q", status)
		}
	}

	switch {
	case !e.ctrl.LoggedIn():
		r.add("info", "login", "not logged in; the board is read-only")
	default:
		if _, err := e.client.User(ctx, e.ctrl.Auth().UserID); err != nil {
			e.ctrl.HandleError(ctx, err, nil)
			r.add("error", "login", "stored login was rejected: %v", err)
		}
	}
	if !e.opts.AllowEditBugs {
		r.add("info", "config", "allow_edit_bugs is false; editing is disabled")
	}
}
