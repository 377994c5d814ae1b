package tui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type externalEditorDoneMsg struct {
	err error
}

func externalEditorName() string {
	if v := strings.TrimSpace(os.Getenv("VISUAL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("EDITOR")); v != "" {
		return v
	}
	return "vi"
}

// activeForm is the form of the open edit or create modal.
func (m *appModel) activeForm() *fieldForm {
	switch {
	case m.modal == modalEdit && m.edit != nil:
		return &m.edit.fieldForm
	case m.modal == modalCreate && m.create != nil:
		return &m.create.fieldForm
	}
	return nil
}

func (m appModel) editExternally() (tea.Model, tea.Cmd) {
	f := m.activeForm()
	if f == nil || f.busy {
		return m, nil
	}
	cmd, err := m.openExternalEditor(f)
	if err != nil {
		f.err = "Editor failed: " + err.Error()
	}
	return m, cmd
}

// openExternalEditor hands the form's text area to $EDITOR through a temp file.
func (m *appModel) openExternalEditor(f *fieldForm) (tea.Cmd, error) {
	key := f.areaKey()
	if key == "" {
		return nil, nil
	}
	args := splitShellWords(externalEditorName())
	if len(args) == 0 {
		args = []string{"vi"}
	}

	before := f.get(key)
	path, err := writeDraft("", key, before)
	if err != nil {
		return nil, err
	}

	m.externalEditorPath = path
	m.externalEditorBefore = before
	m.externalEditorField = key
	m.logger.WithField("editor", args[0]).Debug("opening external editor")

	cmd := exec.Command(args[0], append(args[1:], path)...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return externalEditorDoneMsg{err: err}
	}), nil
}

// writeDraft stores text in a fresh temp file under dir and returns its path.
// Nothing is left behind when the write or the close fails.
func writeDraft(dir, key, text string) (string, error) {
	tmp, err := os.CreateTemp(dir, "bzboard-"+key+"-*.md")
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (m *appModel) applyExternalEditorResult(msg externalEditorDoneMsg) {
	path, before, key := m.externalEditorPath, m.externalEditorBefore, m.externalEditorField
	m.externalEditorPath, m.externalEditorBefore, m.externalEditorField = "", "", ""
	if strings.TrimSpace(path) == "" {
		return
	}
	defer func() { _ = os.Remove(path) }()

	f := m.activeForm()
	if f == nil {
		return
	}
	if msg.err != nil {
		f.err = "Editor failed: " + msg.err.Error()
		return
	}
	b, err := os.ReadFile(path)
	if err != nil {
		f.err = "Editor read failed: " + err.Error()
		return
	}
	after := strings.TrimRight(string(b), "\n")
	if strings.TrimSpace(after) == strings.TrimSpace(before) {
		m.showFlash(fmt.Sprintf("No changes from %s", externalEditorName()))
		return
	}
	f.set(key, after)
	f.focusField(f.index(key))
	m.showFlash(fmt.Sprintf("Updated from %s (ctrl+s to save)", externalEditorName()))
}
