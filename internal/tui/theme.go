package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The board must stay readable on light and dark terminals, so colors are
// adaptive and faint styling is only used on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted      lipgloss.TerminalColor = ac("240", "243")
	colorSelectedBg lipgloss.TerminalColor = ac("#e9e9e9", "#262626")
	colorSelectedFg lipgloss.TerminalColor = ac("235", "255")
	colorSurfaceBg  lipgloss.TerminalColor = ac("255", "235")
	colorSurfaceFg  lipgloss.TerminalColor = ac("235", "252")
	colorControlBg  lipgloss.TerminalColor = ac("252", "235")
	colorAccent     lipgloss.TerminalColor = ac("27", "62")
	colorAccentFg   lipgloss.TerminalColor = ac("255", "235")
	colorCardMetaFg lipgloss.TerminalColor = ac("238", "250")
	colorError      lipgloss.TerminalColor = ac("160", "203")
	colorWarn       lipgloss.TerminalColor = ac("130", "214")
	colorOK         lipgloss.TerminalColor = ac("28", "114")
	colorNotice     lipgloss.TerminalColor = ac("#fff3cd", "#4a3b00")
)

var (
	metaPriorityStyle = lipgloss.NewStyle().Foreground(colorWarn)
	metaDeadlineStyle = lipgloss.NewStyle().Foreground(colorCardMetaFg)
	metaExpiredStyle  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	metaTodayStyle    = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	metaCommentsStyle = lipgloss.NewStyle().Foreground(colorCardMetaFg)
	errorStyle        = lipgloss.NewStyle().Foreground(colorError)
	okStyle           = lipgloss.NewStyle().Foreground(colorOK)
	noticeStyle       = lipgloss.NewStyle().Background(colorNotice).Padding(0, 1)
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

// applyColorProfilePreference only honors NO_COLOR. termenv.EnvColorProfile
// also reads CLICOLOR, which is meant for piped output and would strip colors
// from the board.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.ColorProfile()
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	switch {
	case strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit"):
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	case strings.Contains(term, "256color") && profile > termenv.ANSI256:
		// Profiles are ordered from TrueColor down to Ascii.
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// applyThemePreference picks the palette variant:
// BZBOARD_THEME=light|dark, then BZBOARD_DARKBG, then the COLORFGBG heuristic.
func applyThemePreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("BZBOARD_THEME"))) {
	case "light":
		lipgloss.SetHasDarkBackground(false)
		return
	case "dark":
		lipgloss.SetHasDarkBackground(true)
		return
	}
	if v := strings.TrimSpace(os.Getenv("BZBOARD_DARKBG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			lipgloss.SetHasDarkBackground(b)
			return
		}
	}
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			lipgloss.SetHasDarkBackground(bg < 7)
		}
	}
}

// markdownStyle follows the theme so comment text stays legible.
func markdownStyle() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("BZBOARD_THEME"))) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
