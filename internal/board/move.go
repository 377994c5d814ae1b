package board

import (
	"errors"
	"fmt"

	"bzboard/internal/model"
)

var (
	ErrDragInProgress = errors.New("another card is already being moved")
	ErrNotDragging    = errors.New("no card is being moved")
	ErrEditDisabled   = errors.New("editing is disabled: log in and enable allow_edit_bugs")
	ErrSameColumn     = errors.New("card dropped on its own column")
)

type DragState int

const (
	DragIdle DragState = iota
	DragDragging
)

func (s DragState) String() string {
	if s == DragDragging {
		return "dragging"
	}
	return "idle"
}

type drag struct {
	state DragState
	id    int
	from  string
}

// Staged is a ticket mutation collected client-side and not yet submitted.
type Staged struct {
	Current model.Bug       `json:"current"`
	Update  model.BugUpdate `json:"update"`
	// Opened is true when the card was opened rather than moved.
	Opened bool `json:"opened"`
}

// DropTarget carries what a drop needs besides the column.
type DropTarget struct {
	Column          string
	Milestone       string
	BacklogStatus   string
	DefaultPriority string
}

// StageDrop derives the staged update for dropping cur on a column.
func StageDrop(cur model.Bug, t DropTarget) model.BugUpdate {
	u := model.BugUpdate{ID: cur.ID}
	if t.Column == model.BacklogColumn {
		u.Status = t.BacklogStatus
		u.Milestone = model.NoMilestone
		u.Priority = t.DefaultPriority
		return u
	}
	u.Status = t.Column
	u.Milestone = t.Milestone
	return u
}

func (b *Board) DragState() DragState { return b.drag.state }

// Dragging returns the card being moved.
func (b *Board) Dragging() (int, bool) {
	if b.drag.state != DragDragging {
		return 0, false
	}
	return b.drag.id, true
}

// Interactive reports whether a card accepts input. While a card is being
// moved every other card is locked.
func (b *Board) Interactive(id int) bool {
	return b.drag.state == DragIdle || b.drag.id == id
}

// StartDrag picks up a card. Only one card can be in flight.
func (b *Board) StartDrag(id int) error {
	if b.drag.state == DragDragging {
		return ErrDragInProgress
	}
	col, ok := b.placed[id]
	if !ok || !b.Visible(id) {
		return fmt.Errorf("card #%d is not on the board", id)
	}
	b.drag = drag{state: DragDragging, id: id, from: col}
	return nil
}

func (b *Board) CancelDrag() { b.drag = drag{} }

// Drop ends the drag over t.Column and stages the change. The board is not
// modified; the write and reload happen afterwards.
func (b *Board) Drop(t DropTarget) (Staged, error) {
	if b.drag.state != DragDragging {
		return Staged{}, ErrNotDragging
	}
	d := b.drag
	b.drag = drag{}
	if !b.columnShown(t.Column) {
		return Staged{}, fmt.Errorf("unknown column %q", t.Column)
	}
	if t.Column == d.from {
		return Staged{}, ErrSameColumn
	}
	cur, ok := b.store.Get(d.id)
	if !ok {
		return Staged{}, fmt.Errorf("card #%d is no longer loaded", d.id)
	}
	return Staged{Current: cur, Update: StageDrop(cur, t)}, nil
}
