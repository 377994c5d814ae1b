package tui

import (
	"bzboard/internal/board"
	"bzboard/internal/model"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalPicker
	modalEdit
	modalCreate
	modalLogin
	modalConfirmDiscard
)

type pickerKind int

const (
	pickProduct pickerKind = iota
	pickMilestone
	pickAssignee
)

func (k pickerKind) title() string {
	switch k {
	case pickProduct:
		return "Product"
	case pickMilestone:
		return "Milestone"
	default:
		return "Assignee"
	}
}

type metaLoadedMsg struct {
	meta board.Meta
	err  error
}

type productLoadedMsg struct {
	pm  board.ProductMeta
	err error
}

type reloadDoneMsg struct {
	gen uint64
	res board.ReloadResult
	err error
}

type writeDoneMsg struct {
	id  int
	err error
}

type createDoneMsg struct {
	id  int
	err error
}

type loginDoneMsg struct {
	auth model.Auth
	err  error
}

type commentsLoadedMsg struct {
	id       int
	comments []model.Comment
	err      error
}

type pollTickMsg struct{}

type pollCheckedMsg struct {
	gen     uint64
	changed int
	err     error
}
