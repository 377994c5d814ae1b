package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"bzboard/internal/board"
	"bzboard/internal/bugzilla"
	"bzboard/internal/form"
	"bzboard/internal/model"
	"bzboard/internal/poll"
)

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadMeta(), m.schedulePoll())
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resizeModal()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.FocusMsg:
		if m.poller.SetVisible(true) {
			return m, m.checkUpdates()
		}
		return m, nil

	case tea.BlurMsg:
		m.poller.SetVisible(false)
		return m, nil

	case pollTickMsg:
		var cmd tea.Cmd
		if m.poller.Visible() {
			cmd = m.checkUpdates()
		}
		return m, tea.Batch(cmd, m.schedulePoll())

	case pollCheckedMsg:
		return m.applyPollResult(msg)

	case metaLoadedMsg:
		m.loading--
		if msg.err != nil {
			// A sign-out answers with a fresh metadata load; otherwise keep
			// whatever statuses did arrive so the columns survive.
			cmd := m.handleErr(msg.err)
			if cmd == nil && msg.meta.Statuses != nil {
				m.ctrl.ApplyMeta(msg.meta)
				cmd = m.reload()
			}
			return m, cmd
		}
		m.ctrl.ApplyMeta(msg.meta)
		return m, m.reload()

	case productLoadedMsg:
		m.loading--
		if msg.err != nil {
			m.pendingMilestonePick = false
			return m, m.handleErr(msg.err)
		}
		if m.ctrl.ApplyProduct(msg.pm) && m.pendingMilestonePick {
			m.pendingMilestonePick = false
			m.openPicker(pickMilestone)
		}
		return m, nil

	case reloadDoneMsg:
		m.loading--
		if msg.gen != m.ctrl.Generation() {
			return m, nil
		}
		if msg.err != nil {
			return m, m.handleErr(msg.err)
		}
		m.ctrl.ApplyReload(msg.res)
		return m, nil

	case writeDoneMsg:
		m.loading--
		if msg.err != nil {
			if m.edit != nil {
				m.edit.busy = false
			}
			return m, m.handleErrInto(msg.err, m.formErrSetter())
		}
		if m.modal == modalEdit {
			m.closeModal()
		}
		m.showFlash(fmt.Sprintf("Updated #%d", msg.id))
		return m, m.reload()

	case createDoneMsg:
		m.loading--
		if msg.err != nil {
			if m.create != nil {
				m.create.busy = false
			}
			return m, m.handleErrInto(msg.err, m.formErrSetter())
		}
		m.closeModal()
		m.showFlash(fmt.Sprintf("Filed #%d", msg.id))
		return m, m.reload()

	case loginDoneMsg:
		m.loading--
		if msg.err != nil {
			if m.login != nil {
				m.login.busy = false
				m.login.err = errorMessage(msg.err)
			}
			return m, nil
		}
		if err := m.ctrl.ApplyLogin(m.ctx, msg.auth); err != nil {
			m.logger.WithError(err).Warn("saving login failed")
		}
		m.closeModal()
		m.showFlash("Logged in")
		return m, m.loadMeta()

	case commentsLoadedMsg:
		m.loading--
		if m.edit == nil || m.edit.staged.Current.ID != msg.id {
			return m, nil
		}
		if msg.err != nil {
			m.edit.commentsErr = errorMessage(msg.err)
			return m, m.handleErrInto(msg.err, func(error) {})
		}
		m.edit.comments = msg.comments
		m.edit.commentsLoaded = true
		return m, nil

	case clipboardDoneMsg:
		if msg.err != nil {
			m.showFlashErr("Copy failed: " + msg.err.Error())
		} else {
			m.showFlash("Copied " + msg.what)
		}
		return m, nil

	case urlOpenDoneMsg:
		if msg.err != nil {
			m.showFlashErr("Open failed: " + msg.err.Error())
		}
		return m, nil

	case externalEditorDoneMsg:
		m.applyExternalEditorResult(msg)
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

// --- commands ---

func (m *appModel) loadMeta() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	product, userID := ctrl.Session().Product, ctrl.Auth().UserID
	m.loading++
	return func() tea.Msg {
		meta, err := ctrl.FetchMeta(ctx, product, userID)
		return metaLoadedMsg{meta: meta, err: err}
	}
}

func (m *appModel) loadProduct(product string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	m.loading++
	return func() tea.Msg {
		pm, err := ctrl.FetchProduct(ctx, product)
		return productLoadedMsg{pm: pm, err: err}
	}
}

// reload refreshes whatever the board currently shows.
func (m *appModel) reload() tea.Cmd {
	var (
		r   board.Reload
		err error
	)
	switch v := m.ctrl.View(); v {
	case board.ViewMine, board.ViewInterested:
		r, err = m.ctrl.BeginUserView(v)
		if err != nil {
			return m.handleErr(err)
		}
	default:
		var ok bool
		if r, ok = m.ctrl.BeginReload(); !ok {
			return nil
		}
	}
	return m.fetch(r)
}

func (m *appModel) loadUserView(v board.View) tea.Cmd {
	r, err := m.ctrl.BeginUserView(v)
	if err != nil {
		return m.handleErr(err)
	}
	return m.fetch(r)
}

func (m *appModel) fetch(r board.Reload) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	m.loading++
	return func() tea.Msg {
		res, err := ctrl.FetchReload(ctx, r)
		return reloadDoneMsg{gen: r.Gen, res: res, err: err}
	}
}

func (m *appModel) write(u model.BugUpdate) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	m.loading++
	return func() tea.Msg {
		return writeDoneMsg{id: u.ID, err: ctrl.WriteUpdate(ctx, u)}
	}
}

func (m *appModel) fileBug(nb model.NewBug) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	m.loading++
	return func() tea.Msg {
		id, err := ctrl.WriteNewBug(ctx, nb)
		return createDoneMsg{id: id, err: err}
	}
}

func (m *appModel) loadComments(id int) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	m.loading++
	return func() tea.Msg {
		cs, err := ctrl.FetchComments(ctx, id)
		return commentsLoadedMsg{id: id, comments: cs, err: err}
	}
}

func (m *appModel) schedulePoll() tea.Cmd {
	interval := m.poller.Interval()
	if interval <= 0 || !m.ctrl.Options().CheckForUpdates {
		return nil
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg { return pollTickMsg{} })
}

func (m *appModel) checkUpdates() tea.Cmd {
	check := m.ctrl.UpdateChecker()
	gen, ctx := m.ctrl.Generation(), m.ctx
	return func() tea.Msg {
		n, err := check(ctx)
		return pollCheckedMsg{gen: gen, changed: n, err: err}
	}
}

func (m appModel) applyPollResult(msg pollCheckedMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, poll.ErrStop) || msg.gen != m.ctrl.Generation() {
		return m, nil
	}
	if msg.err != nil {
		return m, m.handleErr(msg.err)
	}
	action, text := poll.Decide(msg.changed, m.ctrl.Session().AutoRefresh)
	switch action {
	case poll.ActionReload:
		return m, m.reload()
	case poll.ActionNotify:
		m.ctrl.SetNotice(text)
	}
	return m, nil
}

// --- errors ---

// handleErr routes a tracker error through the controller and reacts to the
// outcome. Local validation errors become a flash. A sign-out returns a
// metadata load, since the failed token may have cost the board its statuses.
func (m *appModel) handleErr(err error) tea.Cmd {
	return m.handleErrInto(err, nil)
}

func (m *appModel) handleErrInto(err error, onErr func(error)) tea.Cmd {
	if err == nil {
		return nil
	}
	var verr form.ValidationError
	if errors.As(err, &verr) || errors.Is(err, board.ErrEditDisabled) || errors.Is(err, board.ErrDragInProgress) {
		if onErr != nil {
			onErr(err)
		} else {
			m.showFlashErr(err.Error())
		}
		return nil
	}
	out := m.ctrl.HandleError(m.ctx, err, onErr)
	if out.OpenLogin {
		m.openLogin()
	}
	if out.SignedOut {
		m.closeEditing()
		return m.loadMeta()
	}
	return nil
}

func (m *appModel) formErrSetter() func(error) {
	return func(err error) {
		switch {
		case m.edit != nil && m.modal == modalEdit:
			m.edit.err = errorMessage(err)
		case m.create != nil && m.modal == modalCreate:
			m.create.err = errorMessage(err)
		default:
			m.showFlashErr(errorMessage(err))
		}
	}
}

func errorMessage(err error) string {
	var apiErr *bugzilla.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// --- keys ---

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if msg.String() == "ctrl+e" && (m.modal == modalEdit || m.modal == modalCreate) {
		return m.editExternally()
	}
	switch m.modal {
	case modalPicker:
		return m.updatePicker(msg)
	case modalEdit:
		return m.updateEdit(msg)
	case modalCreate:
		return m.updateCreate(msg)
	case modalLogin:
		return m.updateLogin(msg)
	case modalConfirmDiscard:
		return m.updateConfirmDiscard(msg)
	}
	if m.filtering {
		return m.updateFilter(msg)
	}
	if _, dragging := m.ctrl.Board().Dragging(); dragging {
		return m.updateDragging(msg)
	}
	return m.updateBoard(msg)
}

func (m *appModel) columns() []board.Column { return m.ctrl.Board().Columns() }

func (m appModel) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.columns()
	m.sel = clampSelection(cols, m.sel)
	k := m.keys

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Left):
		m.sel = clampSelection(cols, boardSelection{Col: m.sel.Col - 1, Item: m.sel.Item})
	case key.Matches(msg, k.Right):
		m.sel = clampSelection(cols, boardSelection{Col: m.sel.Col + 1, Item: m.sel.Item})
	case key.Matches(msg, k.Up):
		m.sel = clampSelection(cols, boardSelection{Col: m.sel.Col, Item: m.sel.Item - 1})
	case key.Matches(msg, k.Down):
		m.sel = clampSelection(cols, boardSelection{Col: m.sel.Col, Item: m.sel.Item + 1})
	case key.Matches(msg, k.Move):
		b, ok := selectedCard(cols, m.sel)
		if !ok {
			return m, nil
		}
		if err := m.ctrl.StartDrag(b.ID); err != nil {
			m.showFlashErr(err.Error())
			return m, nil
		}
		m.showFlash(fmt.Sprintf("Moving #%d: pick a column, space to drop, esc to cancel", b.ID))
	case key.Matches(msg, k.Open):
		b, ok := selectedCard(cols, m.sel)
		if !ok {
			return m, nil
		}
		return m, m.openCard(b.ID)
	case key.Matches(msg, k.Cancel), key.Matches(msg, k.Dismiss):
		m.ctrl.DismissNotice()
	case key.Matches(msg, k.Reload):
		if len(m.ctrl.Board().Statuses()) == 0 {
			return m, m.loadMeta()
		}
		return m, m.reload()
	case key.Matches(msg, k.Product):
		m.openPicker(pickProduct)
	case key.Matches(msg, k.Mile):
		if m.ctrl.Session().Product == "" {
			m.openPicker(pickProduct)
			return m, nil
		}
		m.openPicker(pickMilestone)
	case key.Matches(msg, k.Assignee):
		m.openPicker(pickAssignee)
	case key.Matches(msg, k.Filter):
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, k.Backlog):
		if m.ctrl.ToggleBacklog() {
			return m, m.reload()
		}
	case key.Matches(msg, k.Comments):
		on := !m.ctrl.Session().LoadComments
		m.ctrl.SetLoadComments(on)
		m.showFlash(onOff("Comment counts", on))
		return m, m.reload()
	case key.Matches(msg, k.AutoRef):
		on := !m.ctrl.Session().AutoRefresh
		m.ctrl.SetAutoRefresh(on)
		m.showFlash(onOff("Auto refresh", on))
	case key.Matches(msg, k.Mine):
		return m, m.loadUserView(board.ViewMine)
	case key.Matches(msg, k.Watching):
		return m, m.loadUserView(board.ViewInterested)
	case key.Matches(msg, k.Login):
		if m.ctrl.LoggedIn() {
			if err := m.ctrl.SignOut(m.ctx); err != nil {
				m.logger.WithError(err).Warn("clearing stored credentials failed")
			}
			m.showFlash("Signed out")
			return m, m.reload()
		}
		m.openLogin()
	case key.Matches(msg, k.New):
		return m, m.openCreate()
	case key.Matches(msg, k.CopyURL):
		if b, ok := selectedCard(cols, m.sel); ok {
			return m, copyCmd("link to #"+fmt.Sprint(b.ID), m.ctrl.BugURL(b.ID))
		}
	case key.Matches(msg, k.OpenURL):
		if b, ok := selectedCard(cols, m.sel); ok {
			return m, openURLCmd(m.ctrl.BugURL(b.ID))
		}
	case key.Matches(msg, k.Help):
		m.showHelp = !m.showHelp
	}
	return m, nil
}

func onOff(what string, on bool) string {
	if on {
		return what + " on"
	}
	return what + " off"
}

func (m appModel) updateDragging(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := m.columns()
	k := m.keys
	switch {
	case key.Matches(msg, k.Left):
		m.sel.Col = max(0, m.sel.Col-1)
		m.sel.BugID = 0
	case key.Matches(msg, k.Right):
		m.sel.Col = min(len(cols)-1, m.sel.Col+1)
		m.sel.BugID = 0
	case key.Matches(msg, k.Cancel):
		id, _ := m.ctrl.Board().Dragging()
		m.ctrl.CancelDrag()
		m.sel.BugID = id
		m.showFlash("Move cancelled")
	case key.Matches(msg, k.Move), key.Matches(msg, k.Open):
		if m.sel.Col < 0 || m.sel.Col >= len(cols) {
			return m, nil
		}
		return m.drop(cols[m.sel.Col].ID)
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m appModel) drop(column string) (tea.Model, tea.Cmd) {
	id, _ := m.ctrl.Board().Dragging()
	m.sel.BugID = id
	st, needsForm, err := m.ctrl.Drop(column)
	switch {
	case errors.Is(err, board.ErrSameColumn):
		m.showFlash("Move cancelled")
		return m, nil
	case err != nil:
		m.showFlashErr(err.Error())
		return m, nil
	}
	if needsForm {
		m.openEdit(st)
		return m, nil
	}
	u, err := m.ctrl.DirectUpdate(st)
	if err != nil {
		return m, m.handleErr(err)
	}
	return m, m.write(u)
}

func (m appModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.ctrl.SetFilter("")
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.ctrl.SetFilter(m.filter.Value())
	return m, cmd
}

// --- modals ---

func (m *appModel) closeModal() {
	if m.modal == modalLogin {
		m.ctrl.SetLoginOpen(false)
	}
	m.modal = modalNone
	m.edit, m.create, m.login = nil, nil, nil
}

// closeEditing drops any open form after a sign-out.
func (m *appModel) closeEditing() {
	if m.modal == modalEdit || m.modal == modalCreate || m.modal == modalConfirmDiscard {
		m.closeModal()
	}
}

func (m *appModel) resizeModal() {
	w := modalBodyWidth(m.width) - 2
	switch {
	case m.edit != nil:
		m.edit.setWidth(w)
	case m.create != nil:
		m.create.setWidth(w)
	case m.login != nil:
		m.login.setWidth(w)
	}
	if m.modal == modalPicker {
		m.picker.SetSize(modalBodyWidth(m.width), max(5, m.height-10))
	}
}

func (m *appModel) openPicker(kind pickerKind) {
	var items []list.Item
	selected := ""
	sess, meta := m.ctrl.Session(), m.ctrl.Meta()
	switch kind {
	case pickProduct:
		items, selected = stringItems(meta.Products), sess.Product
	case pickMilestone:
		items, selected = stringItems(meta.Product.Milestones), sess.Milestone
	case pickAssignee:
		items, selected = assigneeItems(m.ctrl.Board().Assignees()), sess.Assignee
	}
	if len(items) == 0 {
		m.showFlashErr("Nothing to pick yet")
		return
	}
	m.pickerKind = kind
	m.picker = newPicker(kind, items, selected)
	m.modal = modalPicker
	m.resizeModal()
}

func (m appModel) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.FilterState() != list.Filtering {
		switch msg.String() {
		case "esc", "ctrl+g":
			m.closeModal()
			return m, nil
		case "enter":
			it, ok := m.picker.SelectedItem().(pickerItem)
			m.closeModal()
			if !ok {
				return m, nil
			}
			return m, m.pick(m.pickerKind, it.value)
		}
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m *appModel) pick(kind pickerKind, value string) tea.Cmd {
	switch kind {
	case pickProduct:
		if !m.ctrl.SelectProduct(value) {
			m.openPicker(pickMilestone)
			return nil
		}
		m.sel = boardSelection{}
		m.pendingMilestonePick = true
		return m.loadProduct(value)
	case pickMilestone:
		m.ctrl.SelectMilestone(value)
		m.sel = boardSelection{}
		return m.reload()
	default:
		m.ctrl.SelectAssignee(value)
		return nil
	}
}

func (m *appModel) openCard(id int) tea.Cmd {
	st, err := m.ctrl.OpenCard(id)
	if err != nil {
		m.showFlashErr(err.Error())
		return nil
	}
	m.openEdit(st)
	return m.loadComments(id)
}

func (m *appModel) openEdit(st board.Staged) {
	m.edit = newEditModal(m.ctrl.Options(), m.ctrl.Meta(), st)
	m.modal = modalEdit
	m.resizeModal()
}

func (m appModel) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.edit.busy {
		return m, nil
	}
	if msg.String() == "esc" || msg.String() == "ctrl+g" {
		if m.edit.dirty() {
			m.modal = modalConfirmDiscard
			return m, nil
		}
		m.closeModal()
		return m, nil
	}
	cmd, submit := m.edit.update(msg)
	if !submit {
		return m, cmd
	}
	u, err := m.ctrl.PrepareUpdate(m.edit.staged, m.edit.input())
	if err != nil {
		m.edit.err = err.Error()
		return m, nil
	}
	m.edit.err = ""
	m.edit.busy = true
	return m, m.write(u)
}

func (m appModel) updateConfirmDiscard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.closeModal()
		m.showFlash("Changes discarded")
	case "n", "N", "esc", "ctrl+g":
		m.modal = modalEdit
	}
	return m, nil
}

func (m *appModel) openCreate() tea.Cmd {
	sess := m.ctrl.Session()
	if !sess.Ready() {
		m.showFlashErr("Pick a product and milestone first")
		return nil
	}
	if !m.ctrl.CanEdit() {
		u := m.ctrl.NewBugURL()
		m.ctrl.SetNotice("Log in to file bugs here, or use " + u)
		return openURLCmd(u)
	}
	info := m.ctrl.Meta().Product.Info
	m.create = newCreateModal(sess.Product, sess.Milestone, info)
	m.modal = modalCreate
	m.resizeModal()
	return nil
}

func (m appModel) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.create.busy {
		return m, nil
	}
	if msg.String() == "esc" || msg.String() == "ctrl+g" {
		m.closeModal()
		return m, nil
	}
	cmd, submit := m.create.update(msg)
	if !submit {
		return m, cmd
	}
	nb, err := m.ctrl.PrepareNewBug(m.create.input())
	if err != nil {
		m.create.err = err.Error()
		return m, nil
	}
	m.create.err = ""
	m.create.busy = true
	return m, m.fileBug(nb)
}

func (m *appModel) openLogin() {
	if m.modal == modalLogin {
		return
	}
	m.closeModal()
	m.ctrl.SetLoginOpen(true)
	m.login = newLoginModal(m.ctrl.Options().Site)
	m.modal = modalLogin
	m.resizeModal()
}

func (m appModel) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.busy {
		return m, nil
	}
	if msg.String() == "esc" || msg.String() == "ctrl+g" {
		m.closeModal()
		return m, nil
	}
	if msg.String() == "enter" && m.login.focus == m.login.index("login") {
		return m, m.login.focusField(m.login.index("password"))
	}
	cmd, submit := m.login.update(msg)
	if !submit {
		return m, cmd
	}
	login, password := strings.TrimSpace(m.login.get("login")), m.login.get("password")
	if login == "" || password == "" {
		m.login.err = "Login and password are required."
		return m, nil
	}
	m.login.err = ""
	m.login.busy = true
	ctrl, ctx := m.ctrl, m.ctx
	m.loading++
	return m, func() tea.Msg {
		auth, err := ctrl.FetchLogin(ctx, login, password)
		return loginDoneMsg{auth: auth, err: err}
	}
}
