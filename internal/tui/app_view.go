package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"bzboard/internal/board"
)

func (m appModel) View() string {
	w, h := m.width, m.height
	if w <= 0 || h <= 0 {
		return ""
	}
	switch m.modal {
	case modalPicker:
		return placeCentered(w, h, renderPicker(w, m.pickerKind, m.picker))
	case modalEdit:
		if m.edit != nil {
			now := m.now()
			bodyW := modalBodyWidth(w)
			return placeCentered(w, h, m.edit.view(w, h, func() string {
				return renderComments(m.edit.comments, bodyW, now)
			}))
		}
	case modalCreate:
		if m.create != nil {
			return placeCentered(w, h, m.create.view(w, "", "tab: next field   ctrl+e: $EDITOR   ctrl+s: file bug   esc: cancel"))
		}
	case modalLogin:
		if m.login != nil {
			return placeCentered(w, h, m.login.view(w, "", "enter: next / log in   esc: cancel"))
		}
	case modalConfirmDiscard:
		return placeCentered(w, h, renderConfirmDiscard(w))
	}

	top := []string{m.renderHeader(w)}
	if m.filtering || m.ctrl.Session().Filter != "" {
		top = append(top, normalizePane(m.filter.View(), w, 1))
	}
	if n := m.ctrl.Notice(); n != "" {
		top = append(top, noticeStyle.Width(w).Render(truncateText(n+"   (x to dismiss)", w)))
	}
	footer := m.renderFooter(w)

	bodyH := h - len(top) - lipgloss.Height(footer)
	if bodyH < 1 {
		bodyH = 1
	}
	drag := dragView{}
	if id, ok := m.ctrl.Board().Dragging(); ok {
		drag.active, drag.id = true, id
		drag.from, _ = m.ctrl.Board().ColumnOf(id)
	}
	body := renderBoard(m.ctrl.Board().Columns(), m.sel, drag, w, bodyH, m.now())
	return strings.Join(append(top, body, footer), "\n")
}

func (m appModel) renderHeader(w int) string {
	sess := m.ctrl.Session()
	var crumbs string
	switch v := m.ctrl.View(); v {
	case board.ViewMilestone:
		product, milestone := sess.Product, sess.Milestone
		if product == "" {
			product = "(no product)"
		}
		if milestone == "" {
			milestone = "(no milestone)"
		}
		crumbs = product + " " + glyph().crumb + " " + milestone
	default:
		crumbs = strings.ToUpper(v.String()[:1]) + v.String()[1:]
	}
	left := lipgloss.NewStyle().Bold(true).Render(crumbs)
	if sess.Assignee != "" {
		if a, ok := m.ctrl.Board().Assignee(sess.Assignee); ok {
			left += styleMuted().Render("  @" + a.RealName)
		}
	}

	var rightParts []string
	if m.loading > 0 {
		rightParts = append(rightParts, m.spinner.View())
	}
	if sess.AutoRefresh {
		rightParts = append(rightParts, styleMuted().Render("auto"))
	}
	if sess.LoadComments {
		rightParts = append(rightParts, styleMuted().Render(glyph().comments))
	}
	if m.ctrl.LoggedIn() {
		who := firstOf(m.ctrl.Meta().UserRealName, m.ctrl.Meta().UserName)
		if who == "" {
			who = fmt.Sprintf("user %d", m.ctrl.Auth().UserID)
		}
		rightParts = append(rightParts, okStyle.Render(who))
	} else {
		rightParts = append(rightParts, styleMuted().Render("not logged in"))
	}
	right := strings.Join(rightParts, "  ")

	gap := w - xansi.StringWidth(left) - xansi.StringWidth(right)
	if gap < 1 {
		left = truncateText(left, max(1, w-xansi.StringWidth(right)-1))
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right
	return lipgloss.NewStyle().Background(colorSurfaceBg).Foreground(colorSurfaceFg).Width(w).Render(normalizePane(line, w, 1))
}

func (m appModel) renderFooter(w int) string {
	if msg, ok := m.flashText(); ok {
		st := okStyle
		if m.flashErr {
			st = errorStyle
		}
		return st.Render(truncateText(msg, w))
	}
	if m.showHelp {
		return m.help.FullHelpView(m.keys.FullHelp())
	}
	status := fmt.Sprintf("%d cards", m.ctrl.Board().VisibleTotal())
	if _, ok := m.ctrl.Board().Dragging(); ok {
		status = "moving: ←/→ pick column, space drop, esc cancel"
	}
	short := m.help.ShortHelpView(m.keys.ShortHelp())
	line := styleMuted().Render(status) + "   " + short
	return truncateText(line, w)
}

