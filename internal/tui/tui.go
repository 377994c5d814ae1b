// Package tui is the interactive Kanban board.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"bzboard/internal/board"
	"bzboard/internal/poll"
)

// Run starts the board on the alternate screen. Focus reporting drives the
// poller's visibility.
func Run(ctx context.Context, ctrl *board.Controller, logger *log.Logger) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference()
	p := poll.New(ctrl.Options().PollInterval, logger)
	m := newAppModel(ctx, ctrl, p, logger)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx)).Run()
	return err
}
