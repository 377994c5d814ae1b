package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Field names a ticket field that a workflow status may require on transition.
type Field string

const (
	FieldResolution Field = "resolution"
	FieldPriority   Field = "priority"
	FieldSeverity   Field = "severity"
	FieldComment    Field = "comment"
)

var knownFields = map[Field]bool{
	FieldResolution: true,
	FieldPriority:   true,
	FieldSeverity:   true,
	FieldComment:    true,
}

// ErrorPolicy decides what happens to tracker errors nobody handles.
type ErrorPolicy string

const (
	// ErrorPolicyDrop logs and drops unhandled errors.
	ErrorPolicyDrop ErrorPolicy = "drop"
	// ErrorPolicyReport surfaces unhandled errors to the user.
	ErrorPolicyReport ErrorPolicy = "report"
)

type Limits struct {
	MaxWorkHours        float64 `yaml:"max_work_hours" json:"maxWorkHours"`
	MaxProductiveHours  float64 `yaml:"max_productive_hours" json:"maxProductiveHours"`
	CommentCharsPerHour int     `yaml:"comment_chars_per_hour" json:"commentCharsPerHour"`
}

// Options is the client configuration. Zero-config startup uses Default().
type Options struct {
	Site                 string             `yaml:"site" json:"site"`
	RESTPath             string             `yaml:"rest_path" json:"restPath"`
	Order                string             `yaml:"order" json:"order"`
	AllowEditBugs        bool               `yaml:"allow_edit_bugs" json:"allowEditBugs"`
	AddCommentOnChange   bool               `yaml:"add_comment_on_change" json:"addCommentOnChange"`
	LoadComments         bool               `yaml:"load_comments" json:"loadComments"`
	CheckForUpdates      bool               `yaml:"check_for_updates" json:"checkForUpdates"`
	AutoRefresh          bool               `yaml:"auto_refresh" json:"autoRefresh"`
	PollInterval         time.Duration      `yaml:"poll_interval" json:"pollInterval"`
	UserViewWindow       time.Duration      `yaml:"user_view_window" json:"userViewWindow"`
	BacklogDefaultStatus string             `yaml:"backlog_default_status" json:"backlogDefaultStatus"`
	StatusFields         map[string][]Field `yaml:"status_fields" json:"statusFields"`
	ErrorPolicy          ErrorPolicy        `yaml:"error_policy" json:"errorPolicy"`
	Limits               Limits             `yaml:"limits" json:"limits"`
}

func Default() Options {
	return Options{
		RESTPath:             "/rest.cgi",
		Order:                "priority,bug_severity,assigned_to",
		AllowEditBugs:        true,
		AddCommentOnChange:   true,
		LoadComments:         false,
		CheckForUpdates:      true,
		AutoRefresh:          false,
		PollInterval:         10 * time.Minute,
		UserViewWindow:       14 * 24 * time.Hour,
		BacklogDefaultStatus: "CONFIRMED",
		StatusFields:         defaultStatusFields(),
		ErrorPolicy:          ErrorPolicyDrop,
		Limits: Limits{
			MaxWorkHours:        8,
			MaxProductiveHours:  3,
			CommentCharsPerHour: 60,
		},
	}
}

func defaultStatusFields() map[string][]Field {
	return map[string][]Field{"RESOLVED": {FieldResolution}}
}

// ValidationError reports an invalid configuration key.
type ValidationError struct {
	Key    string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Key, e.Reason)
}

// Validate checks the options once at load time so later code can trust them.
func (o Options) Validate() error {
	if s := strings.TrimSpace(o.Site); s != "" {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ValidationError{Key: "site", Reason: fmt.Sprintf("%q is not an http(s) URL", s)}
		}
	}
	if !strings.HasPrefix(o.RESTPath, "/") {
		return ValidationError{Key: "rest_path", Reason: "must start with /"}
	}
	if strings.TrimSpace(o.Order) == "" {
		return ValidationError{Key: "order", Reason: "empty"}
	}
	if strings.TrimSpace(o.BacklogDefaultStatus) == "" {
		return ValidationError{Key: "backlog_default_status", Reason: "empty"}
	}
	if o.CheckForUpdates && o.PollInterval < time.Second {
		return ValidationError{Key: "poll_interval", Reason: "must be at least 1s"}
	}
	for status, fields := range o.StatusFields {
		if strings.TrimSpace(status) == "" {
			return ValidationError{Key: "status_fields", Reason: "empty status name"}
		}
		for _, f := range fields {
			if !knownFields[f] {
				return ValidationError{Key: "status_fields." + status, Reason: fmt.Sprintf("unknown field %q", f)}
			}
		}
	}
	switch o.ErrorPolicy {
	case ErrorPolicyDrop, ErrorPolicyReport:
	default:
		return ValidationError{Key: "error_policy", Reason: fmt.Sprintf("%q (want drop|report)", o.ErrorPolicy)}
	}
	if o.Limits.MaxWorkHours <= 0 || o.Limits.MaxProductiveHours <= 0 || o.Limits.CommentCharsPerHour < 0 {
		return ValidationError{Key: "limits", Reason: "must be positive"}
	}
	return nil
}

// RequiredFields lists the fields a transition into status must collect, sorted.
func (o Options) RequiredFields(status string) []Field {
	fields := append([]Field(nil), o.StatusFields[status]...)
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

func (o Options) Requires(status string, f Field) bool {
	for _, x := range o.StatusFields[status] {
		if x == f {
			return true
		}
	}
	return false
}

func (o Options) RequireSite() error {
	if strings.TrimSpace(o.Site) == "" {
		return errors.New("no site configured; pass --site or set site in config.yaml")
	}
	return nil
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.bzboard).
	if v := strings.TrimSpace(os.Getenv("BZBOARD_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bzboard"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadOptions reads path (or the default config path when empty). A missing
// file yields Default().
func LoadOptions(path string) (Options, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return Options{}, err
		}
		path = p
	}
	opts := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return opts, nil
		}
		return Options{}, err
	}
	// A configured status_fields map replaces the default instead of merging into it.
	opts.StatusFields = nil
	if err := yaml.Unmarshal(b, &opts); err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	if opts.StatusFields == nil {
		opts.StatusFields = defaultStatusFields()
	}
	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveOptions(path string, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(opts)
	if err != nil {
		return err
	}
	return atomicWriteFile(dir, "config.yaml.*.tmp", path, b, 0o600)
}
