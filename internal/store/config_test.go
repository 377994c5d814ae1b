package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOptions_MissingFileUsesDefaults(t *testing.T) {
	opts, err := LoadOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.BacklogDefaultStatus != "CONFIRMED" {
		t.Fatalf("expected default backlog status, got %q", opts.BacklogDefaultStatus)
	}
	if !opts.Requires("RESOLVED", FieldResolution) {
		t.Fatalf("expected RESOLVED to require resolution by default")
	}
	if !opts.AllowEditBugs || !opts.AddCommentOnChange || opts.AutoRefresh {
		t.Fatalf("unexpected default flags: %+v", opts)
	}
}

func TestLoadOptions_OverridesAndReplacesStatusFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
site: https://bugzilla.example.com
auto_refresh: true
add_comment_on_change: false
poll_interval: 2m
status_fields:
  VERIFIED: [resolution, comment]
limits:
  max_work_hours: 10
  max_productive_hours: 4
  comment_chars_per_hour: 30
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.Site != "https://bugzilla.example.com" || !opts.AutoRefresh || opts.AddCommentOnChange {
		t.Fatalf("overrides not applied: %+v", opts)
	}
	if opts.PollInterval != 2*time.Minute {
		t.Fatalf("expected 2m poll interval, got %v", opts.PollInterval)
	}
	if opts.Requires("RESOLVED", FieldResolution) {
		t.Fatalf("expected configured status_fields to replace defaults")
	}
	got := opts.RequiredFields("VERIFIED")
	if len(got) != 2 || got[0] != FieldComment || got[1] != FieldResolution {
		t.Fatalf("unexpected required fields: %v", got)
	}
	// Keys not in the file keep their defaults.
	if opts.Order != "priority,bug_severity,assigned_to" {
		t.Fatalf("expected default order, got %q", opts.Order)
	}
}

func TestLoadOptions_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"site":                   "site: ftp://example.com\n",
		"status_fields.RESOLVED": "status_fields:\n  RESOLVED: [colour]\n",
		"error_policy":           "error_policy: shout\n",
		"limits":                 "limits:\n  max_work_hours: 0\n",
		"poll_interval":          "poll_interval: 10ms\n",
	}
	for key, body := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		_, err := LoadOptions(path)
		var ve ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: expected ValidationError, got %v", key, err)
		}
		if ve.Key != key {
			t.Fatalf("expected key %q, got %q", key, ve.Key)
		}
	}
}

func TestSaveOptions_RoundTrip(t *testing.T) {
	t.Setenv("BZBOARD_CONFIG_DIR", t.TempDir())
	opts := Default()
	opts.Site = "https://bz.example.com"
	opts.ErrorPolicy = ErrorPolicyReport
	if err := SaveOptions("", opts); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadOptions("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Site != opts.Site || got.ErrorPolicy != ErrorPolicyReport || got.PollInterval != opts.PollInterval {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
