package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	log "github.com/sirupsen/logrus"

	"bzboard/internal/board"
	"bzboard/internal/poll"
)

type appModel struct {
	ctx    context.Context
	ctrl   *board.Controller
	poller *poll.Poller
	logger *log.Logger
	now    func() time.Time

	width  int
	height int

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	showHelp bool

	// loading is the number of in-flight tracker calls shown by the spinner.
	loading int

	sel boardSelection

	filter    textinput.Model
	filtering bool

	modal      modalKind
	pickerKind pickerKind
	picker     list.Model
	edit       *editModal
	create     *createModal
	login      *loginModal

	// pendingMilestonePick opens the milestone picker once product metadata arrives.
	pendingMilestonePick bool

	flash      string
	flashErr   bool
	flashUntil time.Time

	// externalEditor* track a text field handed to $EDITOR.
	externalEditorPath   string
	externalEditorBefore string
	externalEditorField  string
}

func newAppModel(ctx context.Context, ctrl *board.Controller, poller *poll.Poller, logger *log.Logger) appModel {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if poller == nil {
		poller = poll.New(ctrl.Options().PollInterval, logger)
	}
	f := textinput.New()
	f.Prompt = "/ "
	f.Placeholder = "filter cards"
	f.SetValue(ctrl.Session().Filter)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return appModel{
		ctx:     ctx,
		ctrl:    ctrl,
		poller:  poller,
		logger:  logger,
		now:     time.Now,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		filter:  f,
	}
}

const flashDuration = 4 * time.Second

func (m *appModel) showFlash(msg string) {
	m.flash, m.flashErr, m.flashUntil = msg, false, m.now().Add(flashDuration)
}

func (m *appModel) showFlashErr(msg string) {
	m.flash, m.flashErr, m.flashUntil = msg, true, m.now().Add(flashDuration)
}

func (m appModel) flashText() (string, bool) {
	if m.flash == "" || m.now().After(m.flashUntil) {
		return "", false
	}
	return m.flash, true
}
