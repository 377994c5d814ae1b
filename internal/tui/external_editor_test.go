package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bzboard/internal/board"
	"bzboard/internal/model"
	"bzboard/internal/store"
)

func TestApplyExternalEditorResult_FillsCommentAndCleansUp(t *testing.T) {
	t.Parallel()

	var m appModel
	m.now = time.Now
	st := board.Staged{Current: model.Bug{ID: 3, Status: "CONFIRMED"}, Update: model.BugUpdate{ID: 3, Status: "IN_PROGRESS"}}
	m.edit = newEditModal(store.Default(), board.Meta{}, st)
	m.modal = modalEdit

	path := filepath.Join(t.TempDir(), "comment.md")
	if err := os.WriteFile(path, []byte("fixed the timeout\n"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	m.externalEditorPath = path
	m.externalEditorField = "comment"
	m.applyExternalEditorResult(externalEditorDoneMsg{})

	if got := m.edit.get("comment"); got != "fixed the timeout" {
		t.Fatalf("expected comment from the editor, got %q", got)
	}
	if !m.edit.dirty() {
		t.Fatalf("a comment from the editor must count as unsaved input")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be removed, stat err=%v", err)
	}
}

func TestApplyExternalEditorResult_ErrorGoesToForm(t *testing.T) {
	t.Parallel()

	var m appModel
	m.now = time.Now
	m.create = newCreateModal("Widget", "1.0", model.ProductInfo{})
	m.modal = modalCreate
	m.externalEditorPath = filepath.Join(t.TempDir(), "missing.md")
	m.externalEditorField = "description"
	m.applyExternalEditorResult(externalEditorDoneMsg{err: os.ErrPermission})

	if m.create.err == "" {
		t.Fatalf("expected the editor failure on the form")
	}
	if m.externalEditorPath != "" {
		t.Fatalf("editor state must be cleared")
	}
}

func TestAreaKey_PrefersFocusedArea(t *testing.T) {
	t.Parallel()

	c := newCreateModal("Widget", "1.0", model.ProductInfo{})
	if got := c.areaKey(); got != "description" {
		t.Fatalf("expected description as the only area, got %q", got)
	}
}

func TestWriteDraft_WritesTextAndLeavesNothingOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := writeDraft(dir, "comment", "draft text")
	if err != nil {
		t.Fatalf("writeDraft: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "bzboard-comment-") || filepath.Ext(path) != ".md" {
		t.Fatalf("unexpected draft name %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "draft text" {
		t.Fatalf("unexpected draft %q (err=%v)", b, err)
	}

	missing := filepath.Join(dir, "gone")
	if _, err := writeDraft(missing, "comment", "x"); err == nil {
		t.Fatalf("expected an error for a missing directory")
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected only the first draft to remain, got %d entries (err=%v)", len(entries), err)
	}
}
