// Package undo keeps bounded undo and redo stacks of whole feature-tree
// snapshots.
package undo

import (
	"errors"
	"sync"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

// DefaultDepth is the number of snapshots kept when New is given a
// non-positive depth.
const DefaultDepth = 50

var (
	ErrNothingToUndo = errors.New("undo: nothing to undo")
	ErrNothingToRedo = errors.New("undo: nothing to redo")
)

// Stack is safe for concurrent use. Snapshots are deep copies, so later
// changes to a pushed tree do not leak into the history.
type Stack struct {
	mu    sync.Mutex
	depth int
	undo  []feature.Tree
	redo  []feature.Tree
}

// New returns an empty stack holding at most depth undo snapshots.
func New(depth int) *Stack {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Stack{depth: depth}
}

// Push records t, the state before a mutation. It clears the redo stack
// and drops the oldest snapshot once the stack is full.
func (s *Stack) Push(t feature.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = bounded(append(s.undo, t.Clone()), s.depth)
	s.redo = nil
}

// Undo returns the most recent snapshot and keeps current for Redo.
func (s *Stack) Undo(current feature.Tree) (feature.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.undo) == 0 {
		return current, ErrNothingToUndo
	}
	prev := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = bounded(append(s.redo, current.Clone()), s.depth)
	return prev.Clone(), nil
}

// Redo reverses the last Undo and keeps current for Undo.
func (s *Stack) Redo(current feature.Tree) (feature.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return current, ErrNothingToRedo
	}
	next := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = bounded(append(s.undo, current.Clone()), s.depth)
	return next.Clone(), nil
}

// Reset forgets all history.
func (s *Stack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo, s.redo = nil, nil
}

func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

// Len returns the number of undo and redo snapshots held.
func (s *Stack) Len() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo), len(s.redo)
}

// bounded drops the oldest entries beyond depth.
func bounded(ts []feature.Tree, depth int) []feature.Tree {
	if over := len(ts) - depth; over > 0 {
		ts = append(ts[:0], ts[over:]...)
	}
	return ts
}
