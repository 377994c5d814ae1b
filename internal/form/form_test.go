package form

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"bzboard/internal/model"
	"bzboard/internal/store"
)

func TestParseMinutes(t *testing.T) {
	cases := map[string]int{
		"":      1,
		"0":     1,
		"-5":    1,
		"abc":   1,
		"45":    45,
		"45min": 45,
		" 90 ":  90,
	}
	for in, want := range cases {
		if got := ParseMinutes(in); got != want {
			t.Fatalf("ParseMinutes(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestHours_RoundsUpToHundredths(t *testing.T) {
	cases := map[int]float64{1: 0.02, 30: 0.5, 60: 1, 61: 1.02, 480: 8, 500: 8.34}
	for m, want := range cases {
		if got := Hours(m); got != want {
			t.Fatalf("Hours(%d) = %v, want %v", m, got, want)
		}
	}
}

func TestCheckTime(t *testing.T) {
	limits := store.Default().Limits
	longComment := strings.Repeat("x", 120)
	cases := []struct {
		name             string
		comment          string
		work, productive int
		wantField        string
	}{
		{"ok", "", 60, 30, ""},
		{"productive above work", "", 30, 60, "productive_time"},
		{"short comment for two hours", "too short", 180, 120, "comment"},
		{"long comment for two hours", longComment, 180, 120, ""},
		{"productive above ceiling", strings.Repeat("x", 400), 300, 240, "productive_time"},
		{"work 480 accepted", "", 480, 30, ""},
		{"work 500 rejected", "", 500, 30, "work_time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTime(limits, tc.comment, tc.work, tc.productive)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.wantField {
				t.Fatalf("expected field %q, got %q (%s)", tc.wantField, ve.Field, ve.Message)
			}
		})
	}
}

func TestCheckTime_ProductiveAboveWorkAlwaysRejected(t *testing.T) {
	limits := store.Default().Limits
	rapid.Check(t, func(t *rapid.T) {
		work := rapid.IntRange(1, 2000).Draw(t, "work")
		productive := rapid.IntRange(work+1, work+2000).Draw(t, "productive")
		comment := rapid.String().Draw(t, "comment")
		var ve ValidationError
		if err := CheckTime(limits, comment, work, productive); !errors.As(err, &ve) || ve.Field != "productive_time" {
			t.Fatalf("expected productive_time rejection, got %v", err)
		}
	})
}

func TestBuildUpdate_RejectedProducesNoUpdate(t *testing.T) {
	opts := store.Default()
	cur := model.Bug{ID: 3, Status: "CONFIRMED", Priority: "P2"}
	u, err := BuildUpdate(opts, cur, model.BugUpdate{Status: "IN_PROGRESS"}, false, EditInput{WorkMinutes: "500"})
	if err == nil {
		t.Fatalf("expected rejection")
	}
	if u != (model.BugUpdate{}) {
		t.Fatalf("expected zero update on rejection, got %+v", u)
	}
}

func TestBuildUpdate_MovedCard(t *testing.T) {
	opts := store.Default()
	cur := model.Bug{ID: 3, Status: "CONFIRMED", Priority: "P2", Severity: "major", Summary: "s"}
	staged := model.BugUpdate{Status: "IN_PROGRESS", Milestone: "1.0"}
	u, err := BuildUpdate(opts, cur, staged, false, EditInput{
		Comment: "started", WorkMinutes: "30", ProductiveMinutes: "20", Priority: "P1", Summary: "renamed",
	})
	if err != nil {
		t.Fatalf("BuildUpdate: %v", err)
	}
	if u.ID != 3 || u.Status != "IN_PROGRESS" || u.Milestone != "1.0" {
		t.Fatalf("unexpected staged fields %+v", u)
	}
	if u.Priority != "" || u.Summary != "" {
		t.Fatalf("moved card must not change priority or summary: %+v", u)
	}
	if u.Comment == nil || u.Comment.Body != "started" {
		t.Fatalf("expected comment, got %+v", u.Comment)
	}
	if u.WorkTime != 0.5 || u.ProductiveTime != 0.34 {
		t.Fatalf("unexpected times work=%v productive=%v", u.WorkTime, u.ProductiveTime)
	}
}

func TestBuildUpdate_ResolutionRequired(t *testing.T) {
	opts := store.Default()
	cur := model.Bug{ID: 3, Status: "IN_PROGRESS"}
	if _, err := BuildUpdate(opts, cur, model.BugUpdate{Status: "RESOLVED"}, false, EditInput{}); err == nil {
		t.Fatalf("expected resolution to be required")
	}
	u, err := BuildUpdate(opts, cur, model.BugUpdate{Status: "RESOLVED"}, false, EditInput{Resolution: "FIXED"})
	if err != nil {
		t.Fatalf("BuildUpdate: %v", err)
	}
	if u.Resolution != "FIXED" {
		t.Fatalf("expected FIXED, got %q", u.Resolution)
	}
}

func TestBuildUpdate_OpenedCardEditsMeta(t *testing.T) {
	opts := store.Default()
	cur := model.Bug{ID: 3, Status: "CONFIRMED", Priority: "P2", Severity: "major", Summary: "old"}
	u, err := BuildUpdate(opts, cur, model.BugUpdate{Status: "CONFIRMED"}, true, EditInput{Severity: "minor", Summary: "new"})
	if err != nil {
		t.Fatalf("BuildUpdate: %v", err)
	}
	if u.Priority != "P2" || u.Severity != "minor" || u.Summary != "new" {
		t.Fatalf("unexpected update %+v", u)
	}
	if u.Comment != nil {
		t.Fatalf("empty comment should not be sent")
	}
}

func TestBuildNewBug(t *testing.T) {
	info := model.ProductInfo{Name: "Core", Components: []string{"Engine", "UI"}, Versions: []string{"1.0"}}
	if _, err := BuildNewBug(info, "1.0", CreateInput{}); err == nil {
		t.Fatalf("expected summary required")
	}
	if _, err := BuildNewBug(info, "1.0", CreateInput{Summary: "x", Component: "Nope"}); err == nil {
		t.Fatalf("expected unknown component error")
	}
	nb, err := BuildNewBug(info, "1.0", CreateInput{Summary: " crash ", Component: "UI"})
	if err != nil {
		t.Fatalf("BuildNewBug: %v", err)
	}
	want := model.NewBug{Product: "Core", Component: "UI", Summary: "crash", Version: "1.0", OpSys: "ALL", Platform: "ALL", Milestone: "1.0"}
	if nb != want {
		t.Fatalf("got %+v, want %+v", nb, want)
	}
}
