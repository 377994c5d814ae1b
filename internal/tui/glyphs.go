package tui

import (
	"os"
	"strings"
	"sync/atomic"
)

// boardGlyphs holds the symbols the board draws with. Some terminal fonts
// render arrows and box drawing badly, so BZBOARD_TUI_GLYPHS=ascii swaps in
// plain ASCII.
type boardGlyphs struct {
	focus, arrow, crumb, hrule, moreUp, comments string
	choiceOpen, choiceClose                      string
}

var (
	unicodeGlyphs = boardGlyphs{
		focus: "▸", arrow: "→", crumb: "›", hrule: "─", moreUp: "↑", comments: "✎",
		choiceOpen: "‹ ", choiceClose: " ›",
	}
	asciiGlyphs = boardGlyphs{
		focus: ">", arrow: "->", crumb: ">", hrule: "-", moreUp: "^", comments: "c",
		choiceOpen: "< ", choiceClose: " >",
	}

	activeGlyphs atomic.Pointer[boardGlyphs]
)

func init() { activeGlyphs.Store(&unicodeGlyphs) }

// glyphsNamed resolves a BZBOARD_TUI_GLYPHS value. Unknown names report false.
func glyphsNamed(name string) (*boardGlyphs, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "unicode", "utf8":
		return &unicodeGlyphs, true
	case "ascii":
		return &asciiGlyphs, true
	}
	return nil, false
}

func applyGlyphPreference() {
	if g, ok := glyphsNamed(os.Getenv("BZBOARD_TUI_GLYPHS")); ok {
		activeGlyphs.Store(g)
	}
}

func glyph() *boardGlyphs { return activeGlyphs.Load() }

func glyphChoice(v string) string {
	g := glyph()
	return g.choiceOpen + v + g.choiceClose
}
