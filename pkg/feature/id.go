package feature

import "github.com/google/uuid"

// ID is a stable, opaque feature identifier. It survives reorder, rename,
// undo and re-parameterization; it is never a list index.
type ID string

// NewID returns a fresh random identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// IsZero reports whether id is the empty identifier.
func (id ID) IsZero() bool { return id == "" }

// Short returns the first 8 characters of the id for log and error output.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

func (id ID) String() string { return string(id) }

// ElementID identifies a sketch element. Unique within one sketch.
type ElementID string
