package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane forces s to exactly width columns (ANSI-aware) and, when
// height > 0, exactly height lines so panes line up in JoinHorizontal.
func normalizePane(s string, width, height int) string {
	if width < 0 {
		width = 0
	}
	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}
	for i, ln := range lines {
		w := xansi.StringWidth(ln)
		if w > width {
			ln = truncateText(ln, width)
			w = xansi.StringWidth(ln)
		}
		if w < width {
			ln += strings.Repeat(" ", width-w)
		}
		lines[i] = ln
	}
	return strings.Join(lines, "\n")
}

// truncateText cuts s to width columns, marking the cut with an ellipsis.
func truncateText(s string, width int) string {
	switch {
	case width <= 0:
		return ""
	case xansi.StringWidth(s) <= width:
		return s
	case width == 1:
		return xansi.Cut(s, 0, 1)
	default:
		return xansi.Cut(s, 0, width-1) + "…"
	}
}

// wrapWords wraps plain text to maxW columns. Words longer than a line are
// hard-cut.
func wrapWords(s string, maxW int) []string {
	if maxW <= 0 {
		return []string{""}
	}
	var lines []string
	cur, curW := "", 0
	for _, w := range strings.Fields(s) {
		ww := xansi.StringWidth(w)
		for ww > maxW {
			if cur != "" {
				lines = append(lines, cur)
				cur, curW = "", 0
			}
			lines = append(lines, xansi.Cut(w, 0, maxW))
			w = xansi.Cut(w, maxW, ww)
			ww = xansi.StringWidth(w)
		}
		switch {
		case cur == "":
			cur, curW = w, ww
		case curW+1+ww <= maxW:
			cur += " " + w
			curW += 1 + ww
		default:
			lines = append(lines, cur)
			cur, curW = w, ww
		}
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, cur)
	}
	return lines
}

const (
	modalMinWidth = 44
	modalMaxWidth = 90
)

func modalWidth(screen int) int {
	w := screen - 8
	if w > modalMaxWidth {
		w = modalMaxWidth
	}
	if w < modalMinWidth {
		w = modalMinWidth
	}
	return w
}

// modalBodyWidth is the usable width inside the modal border and padding.
func modalBodyWidth(screen int) int {
	return modalWidth(screen) - 4
}

func renderModalBox(screen int, title, body string) string {
	w := modalWidth(screen)
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorAccentFg).
		Background(colorAccent).
		Width(w-4).
		Padding(0, 1).
		Render(title)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1).
		Width(w - 2)
	return box.Render(head + "\n\n" + body)
}

func placeCentered(width, height int, s string) string {
	if width <= 0 || height <= 0 {
		return s
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, s)
}
