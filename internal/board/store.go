package board

import (
	"sort"

	"bzboard/internal/model"
)

// Store holds the loaded tickets keyed by id. Columns only reference ids.
type Store struct {
	bugs map[int]model.Bug
}

func NewStore() *Store {
	return &Store{bugs: map[int]model.Bug{}}
}

func (s *Store) Put(b model.Bug) { s.bugs[b.ID] = b }

func (s *Store) Get(id int) (model.Bug, bool) {
	b, ok := s.bugs[id]
	return b, ok
}

func (s *Store) Len() int { return len(s.bugs) }

func (s *Store) Clear() { s.bugs = map[int]model.Bug{} }

// Update applies fn to the stored ticket, if present.
func (s *Store) Update(id int, fn func(*model.Bug)) bool {
	b, ok := s.bugs[id]
	if !ok {
		return false
	}
	fn(&b)
	s.bugs[id] = b
	return true
}

func (s *Store) IDs() []int {
	ids := make([]int, 0, len(s.bugs))
	for id := range s.bugs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
