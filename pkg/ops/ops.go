// Package ops builds and modifies triangle meshes: prisms from sketch
// profiles, fillets, chamfers, shells, patterns, sweeps and lofts.
//
// Every modifier follows the same edge policy. A size (radius, distance,
// thickness, count) that is not positive returns the input unchanged, and
// an empty input returns an empty mesh. Modifiers never panic on degenerate
// input. When fillet or chamfer cannot process the topology they return a
// copy of the input with an error wrapping ErrUnsupportedTopology.
package ops

import (
	"errors"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

var (
	ErrDimensionMismatch = errors.New("ops: profiles or heights do not match")
	ErrTooFewProfiles    = errors.New("ops: loft needs at least two profiles")
	ErrShortPath         = errors.New("ops: sweep path needs at least two distinct points")

	// ErrUnsupportedTopology reports a mesh whose planar faces cannot be
	// chained into closed boundary loops, or a size that collapses a face.
	ErrUnsupportedTopology = errors.New("ops: unsupported topology")
)

const (
	DefaultSharpAngle     = 30.0 // degrees between face normals
	DefaultFilletSegments = 4
	DefaultLoftSlices     = 8
)

// unchanged applies the shared edge policy. ok is false when the caller
// should return out as is.
func unchanged(m *kernel.Mesh, size float64) (out *kernel.Mesh, ok bool) {
	if m.IsEmpty() {
		return &kernel.Mesh{}, false
	}
	if !(size > 0) {
		return m.Clone(), false
	}
	return nil, true
}
