// Package form builds ticket writes from user input and enforces the
// work-time rules before anything is sent.
package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"bzboard/internal/model"
	"bzboard/internal/store"
)

// ValidationError blocks submission. Message is user-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// ParseMinutes reads the leading digits of s. Anything that is not a positive
// number counts as one minute.
func ParseMinutes(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// Hours converts minutes to hours rounded up to two decimals.
func Hours(minutes int) float64 {
	return math.Ceil(float64(minutes)/60*100) / 100
}

// EditInput is what the edit/transition form collects.
type EditInput struct {
	Comment           string
	WorkMinutes       string
	ProductiveMinutes string
	Resolution        string
	Priority          string
	Severity          string
	Summary           string
}

// CheckTime applies the time rules in order and returns the first violation.
func CheckTime(limits store.Limits, comment string, workMinutes, productiveMinutes int) error {
	work := Hours(workMinutes)
	productive := Hours(productiveMinutes)
	if productiveMinutes > workMinutes {
		return ValidationError{Field: "productive_time", Message: "Productive time must not be greater than work time."}
	}
	if productive > 1 && float64(utf8.RuneCountInString(comment)) < productive*float64(limits.CommentCharsPerHour) {
		return ValidationError{
			Field: "comment",
			Message: fmt.Sprintf("Comment too short: write at least %d characters for each productive hour.",
				limits.CommentCharsPerHour),
		}
	}
	if productive > limits.MaxProductiveHours {
		return ValidationError{
			Field:   "productive_time",
			Message: fmt.Sprintf("Split work over several comments when productive time exceeds %g hours.", limits.MaxProductiveHours),
		}
	}
	if work > limits.MaxWorkHours {
		return ValidationError{Field: "work_time", Message: fmt.Sprintf("Work time must not exceed %g hours.", limits.MaxWorkHours)}
	}
	return nil
}

// BuildUpdate turns a staged update plus form input into the write request.
// opened is true when the card was opened rather than moved; only then are
// priority, severity and summary editable.
func BuildUpdate(opts store.Options, current model.Bug, staged model.BugUpdate, opened bool, in EditInput) (model.BugUpdate, error) {
	u := staged
	u.ID = current.ID
	if u.Status == "" {
		u.Status = current.Status
	}

	work := ParseMinutes(in.WorkMinutes)
	productive := ParseMinutes(in.ProductiveMinutes)
	comment := strings.TrimRight(in.Comment, "\n")
	if err := CheckTime(opts.Limits, comment, work, productive); err != nil {
		return model.BugUpdate{}, err
	}
	u.WorkTime = Hours(work)
	u.ProductiveTime = Hours(productive)

	if opts.Requires(u.Status, store.FieldResolution) {
		res := firstNonEmpty(in.Resolution, current.Resolution)
		if res == "" || res == model.NoMilestone {
			return model.BugUpdate{}, ValidationError{Field: "resolution", Message: fmt.Sprintf("%s requires a resolution.", u.Status)}
		}
		u.Resolution = res
	}
	if opened || opts.Requires(u.Status, store.FieldPriority) {
		u.Priority = firstNonEmpty(in.Priority, u.Priority, current.Priority)
	}
	if opened || opts.Requires(u.Status, store.FieldSeverity) {
		u.Severity = firstNonEmpty(in.Severity, u.Severity, current.Severity)
	}
	if opened {
		if s := strings.TrimSpace(in.Summary); s != "" && s != current.Summary {
			u.Summary = s
		}
	}
	if opts.Requires(u.Status, store.FieldComment) && strings.TrimSpace(comment) == "" {
		return model.BugUpdate{}, ValidationError{Field: "comment", Message: fmt.Sprintf("%s requires a comment.", u.Status)}
	}
	if strings.TrimSpace(comment) != "" {
		u.Comment = &model.CommentBody{Body: comment}
	}
	return u, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// CreateInput is what the new-ticket form collects.
type CreateInput struct {
	Summary     string
	Description string
	Component   string
	Version     string
}

// BuildNewBug validates in against the product's active components and
// versions (when known). Empty selections default to the first entry.
func BuildNewBug(info model.ProductInfo, milestone string, in CreateInput) (model.NewBug, error) {
	if strings.TrimSpace(info.Name) == "" {
		return model.NewBug{}, ValidationError{Field: "product", Message: "Select a product first."}
	}
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		return model.NewBug{}, ValidationError{Field: "summary", Message: "Summary is required."}
	}
	component, err := pick("component", strings.TrimSpace(in.Component), info.Components)
	if err != nil {
		return model.NewBug{}, err
	}
	version, err := pick("version", strings.TrimSpace(in.Version), info.Versions)
	if err != nil {
		return model.NewBug{}, err
	}
	return model.NewBug{
		Product:     info.Name,
		Component:   component,
		Summary:     summary,
		Description: in.Description,
		Version:     version,
		OpSys:       "ALL",
		Platform:    "ALL",
		Milestone:   milestone,
	}, nil
}

func pick(field, v string, allowed []string) (string, error) {
	if len(allowed) == 0 {
		return v, nil
	}
	if v == "" {
		return allowed[0], nil
	}
	for _, a := range allowed {
		if a == v {
			return v, nil
		}
	}
	return "", ValidationError{Field: field, Message: fmt.Sprintf("Unknown %s %q.", field, v)}
}
