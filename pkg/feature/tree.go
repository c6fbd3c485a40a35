package feature

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var (
	ErrNotFound        = errors.New("feature: not found")
	ErrIndexOutOfRange = errors.New("feature: index out of range")
	ErrDuplicateID     = errors.New("feature: duplicate id")
)

// Tree is the ordered feature history. List order is evaluation order and
// dependency order. A Tree is value data: every mutation returns a new tree
// and leaves the receiver untouched.
type Tree struct {
	Features []Feature
}

// NewTree returns a tree holding deep copies of features.
func NewTree(features ...Feature) Tree {
	return Tree{Features: lo.Map(features, func(f Feature, _ int) Feature { return f.Clone() })}
}

// Len returns the number of features.
func (t Tree) Len() int { return len(t.Features) }

// Clone returns a deep copy.
func (t Tree) Clone() Tree {
	if t.Features == nil {
		return Tree{}
	}
	return NewTree(t.Features...)
}

// IndexOf returns the position of id, or -1.
func (t Tree) IndexOf(id ID) int {
	_, i, ok := lo.FindIndexOf(t.Features, func(f Feature) bool { return f.ID == id })
	if !ok {
		return -1
	}
	return i
}

// Lookup returns the feature with the given id.
func (t Tree) Lookup(id ID) (Feature, bool) {
	i := t.IndexOf(id)
	if i < 0 {
		return Feature{}, false
	}
	return t.Features[i], true
}

// Active returns the non-suppressed features in order.
func (t Tree) Active() []Feature {
	return lo.Filter(t.Features, func(f Feature, _ int) bool { return !f.Suppressed })
}

// Append adds f at the end.
func (t Tree) Append(f Feature) (Tree, error) {
	return t.Insert(len(t.Features), f)
}

// Insert places f at index, shifting later features. index may equal Len.
func (t Tree) Insert(index int, f Feature) (Tree, error) {
	if index < 0 || index > len(t.Features) {
		return t, fmt.Errorf("insert at %d of %d: %w", index, len(t.Features), ErrIndexOutOfRange)
	}
	if f.ID.IsZero() {
		f.ID = NewID()
	}
	if t.IndexOf(f.ID) >= 0 {
		return t, fmt.Errorf("insert %s: %w", f.ID.Short(), ErrDuplicateID)
	}
	out := t.Clone()
	out.Features = append(out.Features, Feature{})
	copy(out.Features[index+1:], out.Features[index:])
	out.Features[index] = f.Clone()
	return out, nil
}

// Remove deletes the feature with id. Features referencing it are kept and
// fail to resolve on the next evaluation.
func (t Tree) Remove(id ID) (Tree, error) {
	i := t.IndexOf(id)
	if i < 0 {
		return t, fmt.Errorf("remove %s: %w", id.Short(), ErrNotFound)
	}
	out := t.Clone()
	out.Features = append(out.Features[:i], out.Features[i+1:]...)
	return out, nil
}

// Move relocates the feature with id so that it ends up at index.
func (t Tree) Move(id ID, index int) (Tree, error) {
	i := t.IndexOf(id)
	if i < 0 {
		return t, fmt.Errorf("move %s: %w", id.Short(), ErrNotFound)
	}
	if index < 0 || index >= len(t.Features) {
		return t, fmt.Errorf("move to %d of %d: %w", index, len(t.Features), ErrIndexOutOfRange)
	}
	out := t.Clone()
	f := out.Features[i]
	out.Features = append(out.Features[:i], out.Features[i+1:]...)
	out.Features = append(out.Features[:index], append([]Feature{f}, out.Features[index:]...)...)
	return out, nil
}

// Rename changes the display name.
func (t Tree) Rename(id ID, name string) (Tree, error) {
	return t.modify(id, "rename", func(f *Feature) { f.Name = name })
}

// SetSuppressed sets the suppressed flag.
func (t Tree) SetSuppressed(id ID, suppressed bool) (Tree, error) {
	return t.modify(id, "suppress", func(f *Feature) { f.Suppressed = suppressed })
}

// ToggleSuppressed flips the suppressed flag.
func (t Tree) ToggleSuppressed(id ID) (Tree, error) {
	return t.modify(id, "toggle", func(f *Feature) { f.Suppressed = !f.Suppressed })
}

// Update replaces the payload, keeping id, name and suppressed flag.
func (t Tree) Update(id ID, data Data) (Tree, error) {
	if data == nil {
		return t, fmt.Errorf("update %s: nil data", id.Short())
	}
	return t.modify(id, "update", func(f *Feature) { f.Data = data.clone() })
}

func (t Tree) modify(id ID, op string, fn func(*Feature)) (Tree, error) {
	i := t.IndexOf(id)
	if i < 0 {
		return t, fmt.Errorf("%s %s: %w", op, id.Short(), ErrNotFound)
	}
	out := t.Clone()
	fn(&out.Features[i])
	return out, nil
}
