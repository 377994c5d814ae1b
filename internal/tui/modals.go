package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bzboard/internal/board"
	"bzboard/internal/form"
	"bzboard/internal/model"
	"bzboard/internal/store"
)

// choice is a single-select field cycled with ←/→.
type choice struct {
	options []string
	idx     int
}

func newChoice(options []string, current string) choice {
	c := choice{options: options}
	for i, o := range options {
		if o == current {
			c.idx = i
		}
	}
	return c
}

func (c choice) value() string {
	if len(c.options) == 0 {
		return ""
	}
	return c.options[c.idx]
}

func (c *choice) step(d int) {
	if len(c.options) == 0 {
		return
	}
	c.idx = (c.idx + d + len(c.options)) % len(c.options)
}

func (c choice) view(focused bool) string {
	v := c.value()
	if v == "" {
		v = "(none)"
	}
	if focused {
		return lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Render(glyphChoice(v))
	}
	return "  " + v
}

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldArea
	fieldChoice
)

// formField is one focusable row of a modal form.
type formField struct {
	key   string
	label string
	kind  fieldKind
	input textinput.Model
	area  textarea.Model
	pick  choice
}

func newTextField(key, label, value string) formField {
	in := textinput.New()
	in.Prompt = ""
	in.SetValue(value)
	return formField{key: key, label: label, kind: fieldText, input: in}
}

func newAreaField(key, label string) formField {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.SetHeight(5)
	return formField{key: key, label: label, kind: fieldArea, area: ta}
}

func newChoiceField(key, label string, options []string, current string) formField {
	return formField{key: key, label: label, kind: fieldChoice, pick: newChoice(options, current)}
}

func (f formField) value() string {
	switch f.kind {
	case fieldArea:
		return f.area.Value()
	case fieldChoice:
		return f.pick.value()
	default:
		return f.input.Value()
	}
}

// fieldForm is the shared focus and rendering logic of the edit, create and
// login modals.
type fieldForm struct {
	title  string
	fields []formField
	focus  int
	err    string
	busy   bool
}

func (f *fieldForm) setWidth(w int) {
	for i := range f.fields {
		switch f.fields[i].kind {
		case fieldArea:
			f.fields[i].area.SetWidth(w)
		case fieldText:
			f.fields[i].input.Width = w - 1
		}
	}
}

func (f *fieldForm) focusField(i int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	f.focus = (i + len(f.fields)) % len(f.fields)
	var cmd tea.Cmd
	for j := range f.fields {
		fl := &f.fields[j]
		if j != f.focus {
			fl.input.Blur()
			fl.area.Blur()
			continue
		}
		switch fl.kind {
		case fieldText:
			cmd = fl.input.Focus()
		case fieldArea:
			cmd = fl.area.Focus()
		}
	}
	return cmd
}

func (f *fieldForm) get(key string) string {
	for _, fl := range f.fields {
		if fl.key == key {
			return fl.value()
		}
	}
	return ""
}

func (f *fieldForm) set(key, value string) {
	if i := f.index(key); i >= 0 {
		switch f.fields[i].kind {
		case fieldArea:
			f.fields[i].area.SetValue(value)
		case fieldText:
			f.fields[i].input.SetValue(value)
		}
	}
}

// areaKey is the focused multi-line field, or the first one.
func (f *fieldForm) areaKey() string {
	if f.focus < len(f.fields) && f.fields[f.focus].kind == fieldArea {
		return f.fields[f.focus].key
	}
	for _, fl := range f.fields {
		if fl.kind == fieldArea {
			return fl.key
		}
	}
	return ""
}

func (f *fieldForm) index(key string) int {
	for i, fl := range f.fields {
		if fl.key == key {
			return i
		}
	}
	return -1
}

// update handles focus movement and forwards input to the focused field.
// submit is true when the user asked to submit.
func (f *fieldForm) update(msg tea.KeyMsg) (cmd tea.Cmd, submit bool) {
	switch msg.String() {
	case "tab":
		return f.focusField(f.focus + 1), false
	case "shift+tab":
		return f.focusField(f.focus - 1), false
	case "ctrl+s":
		return nil, true
	}
	if len(f.fields) == 0 {
		return nil, false
	}
	fl := &f.fields[f.focus]
	switch fl.kind {
	case fieldChoice:
		switch msg.String() {
		case "left", "h":
			fl.pick.step(-1)
		case "right", "l", " ":
			fl.pick.step(1)
		case "enter":
			return nil, true
		}
		return nil, false
	case fieldArea:
		fl.area, cmd = fl.area.Update(msg)
		return cmd, false
	default:
		if msg.String() == "enter" {
			return nil, true
		}
		fl.input, cmd = fl.input.Update(msg)
		return cmd, false
	}
}

func (f *fieldForm) view(screen int, header, help string) string {
	bodyW := modalBodyWidth(screen)
	labelStyle := lipgloss.NewStyle().Bold(true)
	parts := make([]string, 0, len(f.fields)*2+4)
	if header != "" {
		parts = append(parts, header, "")
	}
	for i, fl := range f.fields {
		label := fl.label
		if i == f.focus {
			label = lipgloss.NewStyle().Foreground(colorAccent).Render(glyph().focus + " ") + labelStyle.Render(label)
		} else {
			label = "  " + labelStyle.Render(label)
		}
		switch fl.kind {
		case fieldChoice:
			parts = append(parts, label+" "+fl.pick.view(i == f.focus))
		case fieldArea:
			parts = append(parts, label, fl.area.View())
		default:
			parts = append(parts, label, "  "+fl.input.View())
		}
	}
	if f.err != "" {
		parts = append(parts, "", errorStyle.Width(bodyW).Render(f.err))
	}
	if f.busy {
		parts = append(parts, "", styleMuted().Render("Saving…"))
	}
	parts = append(parts, "", styleMuted().Width(bodyW).Render(help))
	return renderModalBox(screen, f.title, strings.Join(parts, "\n"))
}

// --- edit / transition ---

type editModal struct {
	fieldForm
	staged         board.Staged
	comments       []model.Comment
	commentsLoaded bool
	commentsErr    string
}

func newEditModal(opts store.Options, meta board.Meta, st board.Staged) *editModal {
	cur := st.Current
	status := st.Update.Status
	title := fmt.Sprintf("#%d %s", cur.ID, cur.Summary)
	if !st.Opened {
		title = fmt.Sprintf("#%d %s %s", cur.ID, glyph().arrow, status)
	}
	commentLabel := "Comment"
	if opts.Requires(status, store.FieldComment) {
		commentLabel = "Comment (required)"
	}
	fields := []formField{
		newAreaField("comment", commentLabel),
		newTextField("work", "Work time (minutes)", ""),
		newTextField("productive", "Productive time (minutes)", ""),
	}
	if opts.Requires(status, store.FieldResolution) {
		fields = append(fields, newChoiceField("resolution", "Resolution", nonEmpty(meta.Resolutions), cur.Resolution))
	}
	if st.Opened || opts.Requires(status, store.FieldPriority) {
		fields = append(fields, newChoiceField("priority", "Priority", meta.Priorities, firstOf(st.Update.Priority, cur.Priority)))
	}
	if st.Opened || opts.Requires(status, store.FieldSeverity) {
		fields = append(fields, newChoiceField("severity", "Severity", meta.Severities, cur.Severity))
	}
	if st.Opened {
		fields = append(fields, newTextField("summary", "Summary", cur.Summary))
	}
	m := &editModal{fieldForm: fieldForm{title: title, fields: fields}, staged: st}
	m.focusField(0)
	return m
}

func (m *editModal) input() form.EditInput {
	return form.EditInput{
		Comment:           m.get("comment"),
		WorkMinutes:       m.get("work"),
		ProductiveMinutes: m.get("productive"),
		Resolution:        m.get("resolution"),
		Priority:          m.get("priority"),
		Severity:          m.get("severity"),
		Summary:           m.get("summary"),
	}
}

func (m *editModal) dirty() bool {
	return strings.TrimSpace(m.get("comment")) != ""
}

// view renders the form; renderThread draws the loaded comment thread.
func (m *editModal) view(screen, height int, renderThread func() string) string {
	header := ""
	if m.staged.Opened {
		body := styleMuted().Render("Loading comments…")
		switch {
		case m.commentsErr != "":
			body = errorStyle.Render(m.commentsErr)
		case m.commentsLoaded:
			body = renderThread()
		}
		maxLines := max(3, height/3)
		lines := strings.Split(body, "\n")
		if len(lines) > maxLines {
			lines = append([]string{styleMuted().Render(fmt.Sprintf("… %d earlier lines", len(lines)-maxLines))}, lines[len(lines)-maxLines:]...)
		}
		header = strings.Join(lines, "\n")
	}
	return m.fieldForm.view(screen, header, "tab: next field   ←/→: change choice   ctrl+e: $EDITOR   ctrl+s: save   esc: close")
}

func nonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) != "" && v != model.NoMilestone {
			out = append(out, v)
		}
	}
	return out
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// --- create ---

type createModal struct {
	fieldForm
}

func newCreateModal(product, milestone string, info model.ProductInfo) *createModal {
	fields := []formField{
		newTextField("summary", "Summary", ""),
		newAreaField("description", "Description"),
	}
	if len(info.Components) > 0 {
		fields = append(fields, newChoiceField("component", "Component", info.Components, ""))
	}
	if len(info.Versions) > 0 {
		fields = append(fields, newChoiceField("version", "Version", info.Versions, ""))
	}
	title := fmt.Sprintf("New bug in %s / %s", product, milestone)
	m := &createModal{fieldForm: fieldForm{title: title, fields: fields}}
	m.focusField(0)
	return m
}

func (m *createModal) input() form.CreateInput {
	return form.CreateInput{
		Summary:     m.get("summary"),
		Description: m.get("description"),
		Component:   m.get("component"),
		Version:     m.get("version"),
	}
}

// --- login ---

type loginModal struct {
	fieldForm
}

func newLoginModal(site string) *loginModal {
	pw := newTextField("password", "Password", "")
	pw.input.EchoMode = textinput.EchoPassword
	pw.input.EchoCharacter = '•'
	m := &loginModal{fieldForm: fieldForm{
		title:  "Log in to " + site,
		fields: []formField{newTextField("login", "Login", ""), pw},
	}}
	m.focusField(0)
	return m
}

// --- pickers ---

type pickerItem struct {
	title string
	desc  string
	value string
}

func (i pickerItem) Title() string       { return i.title }
func (i pickerItem) Description() string { return i.desc }
func (i pickerItem) FilterValue() string { return i.title }

func newPicker(kind pickerKind, items []list.Item, selected string) list.Model {
	d := list.NewDefaultDelegate()
	d.ShowDescription = kind == pickAssignee
	l := list.New(items, d, 0, 0)
	l.Title = kind.title()
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	// esc closes the modal rather than quitting.
	l.KeyMap.Quit.SetKeys("q")
	for i, it := range items {
		if pi, ok := it.(pickerItem); ok && pi.value == selected {
			l.Select(i)
		}
	}
	return l
}

func stringItems(vals []string) []list.Item {
	out := make([]list.Item, 0, len(vals))
	for _, v := range vals {
		out = append(out, pickerItem{title: v, value: v})
	}
	return out
}

func assigneeItems(as []model.Assignee) []list.Item {
	out := []list.Item{pickerItem{title: "All assignees", value: ""}}
	for _, a := range as {
		out = append(out, pickerItem{title: a.RealName, desc: a.Email, value: a.Key()})
	}
	return out
}

func renderPicker(screen int, kind pickerKind, l list.Model) string {
	help := styleMuted().Render("enter: select   /: filter   esc: cancel")
	return renderModalBox(screen, kind.title(), l.View()+"\n\n"+help)
}

func renderConfirmDiscard(screen int) string {
	body := "The comment you typed will be lost."
	help := styleMuted().Render("y/enter: discard   n/esc: back to the form")
	return renderModalBox(screen, "Discard changes?", body+"\n\n"+help)
}
