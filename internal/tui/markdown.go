package tui

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"

	"bzboard/internal/model"
)

var (
	mdRendererMu sync.Mutex
	// Keyed by style and wrap width. WithAutoStyle can block on terminal
	// queries, so a fixed standard style is used.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}
	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			mdRendererMu.Unlock()
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	mdRendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

// renderComments renders a ticket's comment thread newest last, each with a
// relative timestamp header.
func renderComments(comments []model.Comment, width int, now time.Time) string {
	if len(comments) == 0 {
		return styleMuted().Render("(no comments)")
	}
	parts := make([]string, 0, len(comments))
	for i, c := range comments {
		who := strings.TrimSpace(c.Creator)
		if who == "" {
			who = "unknown"
		}
		when := ""
		if !c.Time.IsZero() {
			when = humanize.RelTime(c.Time, now, "ago", "from now")
		}
		head := styleMuted().Render("#" + strconv.Itoa(i) + " " + who + " · " + when)
		body := renderMarkdown(c.Text, width)
		if body == "" {
			body = styleMuted().Render("(empty)")
		}
		parts = append(parts, head+"\n"+body)
	}
	return strings.Join(parts, "\n\n")
}
