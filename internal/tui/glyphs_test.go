package tui

import "testing"

func TestGlyphs_FromEnv(t *testing.T) {
	t.Cleanup(func() { activeGlyphs.Store(&unicodeGlyphs) })

	t.Setenv("BZBOARD_TUI_GLYPHS", "")
	applyGlyphPreference()
	if glyph() != &unicodeGlyphs {
		t.Fatalf("expected unicode glyphs by default")
	}

	t.Setenv("BZBOARD_TUI_GLYPHS", " ASCII ")
	applyGlyphPreference()
	if got := glyph().arrow; got != "->" {
		t.Fatalf("expected ascii arrow; got %q", got)
	}
	if got := glyphChoice("P1"); got != "< P1 >" {
		t.Fatalf("unexpected choice %q", got)
	}

	// Unknown values keep the current set.
	t.Setenv("BZBOARD_TUI_GLYPHS", "bogus")
	applyGlyphPreference()
	if glyph() != &asciiGlyphs {
		t.Fatalf("expected unknown to be ignored")
	}
}
