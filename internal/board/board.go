// Package board is the in-memory Kanban board and the controller that keeps
// it in sync with the tracker.
package board

import (
	"sort"
	"strings"

	"bzboard/internal/model"
	"bzboard/internal/statusutil"
)

const unconfirmedStatus = "UNCONFIRMED"

// Column is a rendered view of one board column.
type Column struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Count int         `json:"count"`
	Cards []model.Bug `json:"cards"`
}

// Board places stored tickets into columns and tracks filter visibility.
type Board struct {
	store    *Store
	statuses []string
	columns  map[string][]int
	placed   map[int]string
	hidden   map[int]bool

	backlogShown     bool
	unconfirmedShown bool

	assignees map[string]model.Assignee

	drag drag
}

func New() *Board {
	b := &Board{store: NewStore(), unconfirmedShown: true}
	b.reset()
	return b
}

func (b *Board) reset() {
	b.columns = map[string][]int{model.BacklogColumn: nil}
	for _, s := range b.statuses {
		b.columns[s] = nil
	}
	b.placed = map[int]string{}
	b.hidden = map[int]bool{}
	b.assignees = map[string]model.Assignee{}
}

func (b *Board) Store() *Store { return b.store }

// SetStatuses defines the workflow columns. Cards are cleared.
func (b *Board) SetStatuses(statuses []string) {
	b.statuses = append([]string(nil), statuses...)
	b.store.Clear()
	b.reset()
}

func (b *Board) Statuses() []string { return append([]string(nil), b.statuses...) }

func (b *Board) HasStatuses() bool { return len(b.statuses) > 0 }

// Clear removes every card, assignee and filter flag; columns stay.
func (b *Board) Clear() {
	b.store.Clear()
	b.reset()
	b.drag = drag{}
}

func (b *Board) SetBacklogShown(v bool) { b.backlogShown = v }
func (b *Board) BacklogShown() bool { return b.backlogShown }

func (b *Board) SetUnconfirmedShown(v bool) { b.unconfirmedShown = v }

// Place stores bugs and appends them to column, or to the column named by
// their status when column is empty. Bugs whose column does not exist are
// kept in the store but not placed.
func (b *Board) Place(bugs []model.Bug, column string) {
	for _, bug := range bugs {
		col := column
		if col == "" {
			col = bug.Status
		}
		b.store.Put(bug)
		if prev, ok := b.placed[bug.ID]; ok {
			b.columns[prev] = removeID(b.columns[prev], bug.ID)
			delete(b.placed, bug.ID)
		}
		if _, ok := b.columns[col]; !ok {
			continue
		}
		b.columns[col] = append(b.columns[col], bug.ID)
		b.placed[bug.ID] = col
	}
}

func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// ColumnOf returns the column a card sits in.
func (b *Board) ColumnOf(id int) (string, bool) {
	c, ok := b.placed[id]
	return c, ok
}

// ColumnIDs lists the displayed columns: backlog first when shown, then the
// workflow statuses.
func (b *Board) ColumnIDs() []string {
	out := make([]string, 0, len(b.statuses)+1)
	if b.backlogShown {
		out = append(out, model.BacklogColumn)
	}
	for _, s := range b.statuses {
		if s == unconfirmedStatus && !b.unconfirmedShown {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (b *Board) columnShown(id string) bool {
	for _, c := range b.ColumnIDs() {
		if c == id {
			return true
		}
	}
	return false
}

// Visible reports whether a card passes the current filters.
func (b *Board) Visible(id int) bool {
	_, placed := b.placed[id]
	return placed && !b.hidden[id]
}

// Cards returns the visible cards of a column in placement order.
func (b *Board) Cards(column string) []model.Bug {
	ids := b.columns[column]
	out := make([]model.Bug, 0, len(ids))
	for _, id := range ids {
		if b.hidden[id] {
			continue
		}
		if bug, ok := b.store.Get(id); ok {
			out = append(out, bug)
		}
	}
	return out
}

// Count is the number of visible cards in a column.
func (b *Board) Count(column string) int {
	n := 0
	for _, id := range b.columns[column] {
		if !b.hidden[id] {
			n++
		}
	}
	return n
}

// Columns snapshots the displayed columns with their visible cards.
func (b *Board) Columns() []Column {
	ids := b.ColumnIDs()
	out := make([]Column, 0, len(ids))
	for _, id := range ids {
		cards := b.Cards(id)
		out = append(out, Column{ID: id, Title: statusutil.Title(id), Count: len(cards), Cards: cards})
	}
	return out
}

// VisibleTotal counts visible cards across displayed columns.
func (b *Board) VisibleTotal() int {
	n := 0
	for _, id := range b.ColumnIDs() {
		n += b.Count(id)
	}
	return n
}

// RebuildAssignees derives the assignee list from the stored tickets.
func (b *Board) RebuildAssignees() {
	b.assignees = map[string]model.Assignee{}
	for _, id := range b.store.IDs() {
		bug, _ := b.store.Get(id)
		if bug.AssignedToDetail.Name == "" && bug.AssignedToDetail.Email == "" {
			continue
		}
		a := model.AssigneeOf(bug)
		b.assignees[a.Key()] = a
	}
}

// Assignees returns the de-duplicated assignees sorted by display name.
func (b *Board) Assignees() []model.Assignee {
	out := make([]model.Assignee, 0, len(b.assignees))
	for _, a := range b.assignees {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].RealName), strings.ToLower(out[j].RealName)
		if li != lj {
			return li < lj
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

func (b *Board) Assignee(key string) (model.Assignee, bool) {
	a, ok := b.assignees[key]
	return a, ok
}

// ApplyFilters hides cards that do not match both the assignee and the text
// filter. An assignee with no cards on the board matches everything; an
// empty text filter matches everything.
func (b *Board) ApplyFilters(assignee, text string) {
	b.hidden = map[int]bool{}
	_, knownAssignee := b.assignees[assignee]
	needle := strings.ToLower(strings.TrimSpace(text))
	for id := range b.placed {
		bug, ok := b.store.Get(id)
		if !ok {
			continue
		}
		if assignee != "" && knownAssignee && model.AssigneeOf(bug).Key() != assignee {
			b.hidden[id] = true
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(model.CardText(bug)), needle) {
			b.hidden[id] = true
		}
	}
}
