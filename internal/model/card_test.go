package model

import (
	"strings"
	"testing"
	"time"
)

func TestDeadline(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC)
	cases := []struct {
		in   string
		want DeadlineState
	}{
		{"", DeadlineNone},
		{"garbage", DeadlineNone},
		{"2026-03-09", DeadlineExpired},
		{"2026-03-10", DeadlineSoon},
		{"2026-03-17", DeadlineSoon},
		{"2026-03-18", DeadlineLater},
	}
	for _, tc := range cases {
		got, _ := Deadline(tc.in, now)
		if got != tc.want {
			t.Fatalf("Deadline(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestAssigneeOf_FallsBackToLoginName(t *testing.T) {
	b := Bug{AssignedToDetail: UserDetail{ID: 7, Name: "jdoe", RealName: "Jane Doe"}}
	a := AssigneeOf(b)
	if a.Key() != "jdoe" {
		t.Fatalf("expected login name as key, got %q", a.Key())
	}
	if a.AvatarURL != "" {
		t.Fatalf("expected no avatar without email, got %q", a.AvatarURL)
	}

	b.AssignedToDetail.Email = "Jane@Example.com"
	a = AssigneeOf(b)
	if a.Key() != "Jane@Example.com" {
		t.Fatalf("expected email key, got %q", a.Key())
	}
	if !strings.HasPrefix(a.AvatarURL, "https://www.gravatar.com/avatar/") {
		t.Fatalf("unexpected avatar url %q", a.AvatarURL)
	}
	if AvatarURL("jane@example.com") != a.AvatarURL {
		t.Fatalf("expected avatar hash to ignore case")
	}
}

func TestCardText_IncludesRenderedFields(t *testing.T) {
	b := Bug{ID: 42, Summary: "Network timeout", Priority: "P1", Severity: "major", AssignedToDetail: UserDetail{RealName: "Ann"}}
	txt := CardText(b)
	for _, want := range []string{"Network timeout", "#42", "P1", "major", "Ann"} {
		if !strings.Contains(txt, want) {
			t.Fatalf("expected %q in card text %q", want, txt)
		}
	}
}

func TestEnterBugURL_EscapesParams(t *testing.T) {
	got := EnterBugURL("https://bz.example.com/", "My Product", "1.0")
	want := "https://bz.example.com/enter_bug.cgi?product=My+Product&target_milestone=1.0"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
