package actions

import (
	"sort"
	"sync"
)

// Set is the ordered collection of lists driven by the replay scheduler.
// Display order is kept equal to sequence order by every mutation.
type Set struct {
	mu    sync.RWMutex
	lists []*List
}

// NewSet returns a set holding lists in the given order.
func NewSet(lists ...*List) *Set {
	s := &Set{}
	s.lists = append(s.lists, lists...)
	return s
}

// Len returns the number of lists.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lists)
}

// Get returns the list at index i.
func (s *Set) Get(i int) (*List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.lists) {
		return nil, &IndexError{Index: i, Len: len(s.lists)}
	}
	return s.lists[i], nil
}

// Lists returns the lists in display order.
func (s *Set) Lists() []*List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*List, len(s.lists))
	copy(out, s.lists)
	return out
}

// Sorted returns the lists ordered by ascending sequence. Lists sharing a
// sequence keep their display order.
func (s *Set) Sorted() []*List {
	out := s.Lists()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Policy().Sequence < out[j].Policy().Sequence
	})
	return out
}

// Add appends l with a sequence one past the current maximum.
func (s *Set) Add(l *List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 0
	for _, existing := range s.lists {
		if seq := existing.Policy().Sequence; seq+1 > next {
			next = seq + 1
		}
	}
	l.setSequence(next)
	s.lists = append(s.lists, l)
}

// Insert places l at index i, keeping its own sequence.
func (s *Set) Insert(i int, l *List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i > len(s.lists) {
		return &IndexError{Index: i, Len: len(s.lists)}
	}
	s.lists = append(s.lists[:i], append([]*List{l}, s.lists[i:]...)...)
	return nil
}

// Remove deletes the list at index i.
func (s *Set) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.lists) {
		return &IndexError{Index: i, Len: len(s.lists)}
	}
	s.lists = append(s.lists[:i], s.lists[i+1:]...)
	return nil
}

// Duplicate inserts a copy of list i right after it, named "<name> (Copy)".
func (s *Set) Duplicate(i int) (*List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.lists) {
		return nil, &IndexError{Index: i, Len: len(s.lists)}
	}
	orig := s.lists[i]
	dup := orig.Clone(orig.Name() + " (Copy)")
	s.lists = append(s.lists[:i+1], append([]*List{dup}, s.lists[i+1:]...)...)
	return dup, nil
}

// MoveUp swaps list i with its predecessor, exchanging their sequences.
func (s *Set) MoveUp(i int) error {
	return s.swap(i, i-1)
}

// MoveDown swaps list i with its successor, exchanging their sequences.
func (s *Set) MoveDown(i int) error {
	return s.swap(i, i+1)
}

func (s *Set) swap(i, j int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, idx := range []int{i, j} {
		if idx < 0 || idx >= len(s.lists) {
			return &IndexError{Index: idx, Len: len(s.lists)}
		}
	}
	a, b := s.lists[i], s.lists[j]
	seqA, seqB := a.Policy().Sequence, b.Policy().Sequence
	a.setSequence(seqB)
	b.setSequence(seqA)
	s.lists[i], s.lists[j] = b, a
	return nil
}

// ToggleActive flips the active flag of list i and returns the new value.
func (s *Set) ToggleActive(i int) (bool, error) {
	l, err := s.Get(i)
	if err != nil {
		return false, err
	}
	active := !l.Policy().Active
	l.SetActive(active)
	return active, nil
}

// Replace swaps the whole content for lists, as an import does.
func (s *Set) Replace(lists []*List) {
	s.mu.Lock()
	s.lists = append([]*List(nil), lists...)
	s.mu.Unlock()
}

// Combine appends lists keeping their own sequences.
func (s *Set) Combine(lists []*List) {
	s.mu.Lock()
	s.lists = append(s.lists, lists...)
	s.mu.Unlock()
}

// Clear removes every list.
func (s *Set) Clear() {
	s.mu.Lock()
	s.lists = nil
	s.mu.Unlock()
}
