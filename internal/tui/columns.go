package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"bzboard/internal/board"
	"bzboard/internal/model"
	"bzboard/internal/statusutil"
)

// boardSelection tracks the focused card. BugID is preferred over the
// indexes so focus survives reloads and moves.
type boardSelection struct {
	Col   int
	Item  int
	BugID int
}

func indexOfBug(cols []board.Column, id int) (int, int, bool) {
	if id <= 0 {
		return 0, 0, false
	}
	for ci := range cols {
		for ii := range cols[ci].Cards {
			if cols[ci].Cards[ii].ID == id {
				return ci, ii, true
			}
		}
	}
	return 0, 0, false
}

func clampSelection(cols []board.Column, sel boardSelection) boardSelection {
	if len(cols) == 0 {
		return boardSelection{Item: -1}
	}
	if ci, ii, ok := indexOfBug(cols, sel.BugID); ok {
		sel.Col, sel.Item = ci, ii
	} else {
		sel.BugID = 0
	}
	sel.Col = max(0, min(sel.Col, len(cols)-1))
	n := len(cols[sel.Col].Cards)
	if n == 0 {
		sel.Item = -1
		return sel
	}
	sel.Item = max(0, min(sel.Item, n-1))
	sel.BugID = cols[sel.Col].Cards[sel.Item].ID
	return sel
}

func selectedCard(cols []board.Column, sel boardSelection) (model.Bug, bool) {
	sel = clampSelection(cols, sel)
	if sel.Item < 0 {
		return model.Bug{}, false
	}
	return cols[sel.Col].Cards[sel.Item], true
}

// dragView is what the renderer needs to know about an in-flight move.
type dragView struct {
	active bool
	id     int
	from   string
}

const (
	columnGap      = 2
	minColumnWidth = 22
)

// visibleColumnRange picks the window of columns that fits width, keeping the
// focused column on screen.
func visibleColumnRange(n, focus, width int) (start, end, colW int) {
	if n == 0 {
		return 0, 0, width
	}
	fit := (width + columnGap) / (minColumnWidth + columnGap)
	if fit < 1 {
		fit = 1
	}
	if fit >= n {
		return 0, n, max(minColumnWidth/2, (width-columnGap*(n-1))/n)
	}
	start = focus - fit/2
	start = max(0, min(start, n-fit))
	return start, start + fit, (width - columnGap*(fit-1)) / fit
}

func renderBoard(cols []board.Column, sel boardSelection, drag dragView, width, height int, now time.Time) string {
	if len(cols) == 0 {
		return normalizePane(styleMuted().Render("No columns. Pick a product and milestone (p / m)."), width, height)
	}
	sel = clampSelection(cols, sel)
	start, end, colW := visibleColumnRange(len(cols), sel.Col, width)

	rendered := make([]string, 0, end-start)
	for ci := start; ci < end; ci++ {
		c := cols[ci]
		focusItem := -1
		if ci == sel.Col && !drag.active {
			focusItem = sel.Item
		}
		rendered = append(rendered, renderColumn(c, ci == sel.Col, focusItem, drag, colW, height, now))
	}
	out := rendered[0]
	sep := strings.Repeat(" ", columnGap)
	for _, r := range rendered[1:] {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, sep, r)
	}
	if start > 0 || end < len(cols) {
		hint := styleMuted().Render(fmt.Sprintf("columns %d-%d of %d", start+1, end, len(cols)))
		return normalizePane(out, width, height-1) + "\n" + normalizePane(hint, width, 1)
	}
	return normalizePane(out, width, height)
}

func renderColumn(c board.Column, focused bool, focusItem int, drag dragView, colW, height int, now time.Time) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg).Padding(0, 1)
	if focused {
		headerStyle = headerStyle.Foreground(colorSelectedFg).Background(colorSelectedBg)
		if drag.active {
			headerStyle = headerStyle.Foreground(colorAccentFg).Background(colorAccent)
		}
	}
	title := c.Title
	if c.ID == model.BacklogColumn {
		title = "Backlog"
	}
	head := truncateText(fmt.Sprintf("%s (%d)", title, c.Count), colW-2)
	lines := []string{headerStyle.Width(colW).Render(head)}
	if drag.active && focused && c.ID != drag.from {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorAccent).Render(truncateText("  drop here", colW)))
	}

	if len(c.Cards) == 0 {
		lines = append(lines, styleMuted().Render("(empty)"))
		return normalizePane(strings.Join(lines, "\n"), colW, height)
	}
	lines = append(lines, "")

	end := statusutil.IsEndState(c.ID)
	blocks := make([][]string, len(c.Cards))
	for i, b := range c.Cards {
		blocks[i] = renderCard(b, i == focusItem, drag.active && drag.id == b.ID, end, colW, now)
	}

	// Scroll so the focused card is fully visible.
	avail := height - len(lines)
	first := 0
	if focusItem >= 0 && height > 0 {
		for first < focusItem && blockSpan(blocks[first:focusItem+1]) > avail {
			first++
		}
	}
	if first > 0 {
		lines = append(lines, styleMuted().Render(fmt.Sprintf("  %s %d more", glyph().moreUp, first)))
	}
	for i := first; i < len(blocks); i++ {
		lines = append(lines, blocks[i]...)
		if i < len(blocks)-1 {
			lines = append(lines, styleMuted().Render(" "+strings.Repeat(glyph().hrule, max(0, colW-2))+" "))
		}
	}
	return normalizePane(strings.Join(lines, "\n"), colW, height)
}

func blockSpan(blocks [][]string) int {
	n := 0
	for _, b := range blocks {
		n += len(b) + 1
	}
	return n
}

func renderCard(b model.Bug, selected, dragged, endState bool, colW int, now time.Time) []string {
	innerW := max(1, colW-2)
	base := lipgloss.NewStyle().Width(colW).Padding(0, 1)
	if selected || dragged {
		base = base.Foreground(colorSelectedFg).Background(colorSelectedBg)
	}

	titleStyle := lipgloss.NewStyle().Bold(true)
	if endState && !selected {
		titleStyle = faintIfDark(lipgloss.NewStyle()).Foreground(colorMuted).Strikethrough(true)
	}
	prefix := ""
	if dragged {
		prefix = "» "
	}
	summary := wrapWords(prefix+b.Summary, innerW)
	if len(summary) > 3 {
		summary = append(summary[:2], truncateText(summary[2]+" …", innerW))
	}

	content := make([]string, 0, len(summary)+2)
	for _, ln := range summary {
		content = append(content, titleStyle.Render(ln))
	}
	content = append(content, renderCardMeta(b, innerW, now))
	if who := model.AssigneeOf(b).RealName; who != "" {
		content = append(content, styleMuted().Render(truncateText(who, innerW)))
	}
	out := make([]string, 0, len(content))
	for _, ln := range content {
		out = append(out, base.Render(normalizePane(ln, innerW, 1)))
	}
	return out
}

func renderCardMeta(b model.Bug, maxW int, now time.Time) string {
	segs := []string{styleMuted().Render(fmt.Sprintf("#%d", b.ID))}
	if p := strings.TrimSpace(b.Priority); p != "" {
		segs = append(segs, metaPriorityStyle.Render(p))
	}
	if s := strings.TrimSpace(b.Severity); s != "" {
		segs = append(segs, metaDeadlineStyle.Render(s))
	}
	if b.Resolution != "" {
		segs = append(segs, styleMuted().Render(b.Resolution))
	}
	switch state, d := model.Deadline(b.Deadline, now); state {
	case model.DeadlineExpired:
		segs = append(segs, metaExpiredStyle.Render("overdue "+model.FormatDeadline(d)))
	case model.DeadlineSoon:
		label := "due today"
		if d.After(now) {
			label = "due " + humanize.RelTime(d, now, "ago", "from now")
		}
		segs = append(segs, metaTodayStyle.Render(label))
	case model.DeadlineLater:
		segs = append(segs, metaDeadlineStyle.Render("due "+model.FormatDeadline(d)))
	}
	if b.CommentCount > 0 {
		segs = append(segs, metaCommentsStyle.Render(fmt.Sprintf("%s%d", glyph().comments, b.CommentCount)))
	}
	line := strings.Join(segs, " ")
	if xansi.StringWidth(line) > maxW {
		line = truncateText(line, maxW)
	}
	return line
}
