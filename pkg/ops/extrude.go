package ops

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
)

// Span selects where an extrusion sits relative to its sketch plane.
type Span int

const (
	SpanForward   Span = iota // [0, depth] along the normal
	SpanReverse               // [-depth, 0]
	SpanSymmetric             // [-depth/2, depth/2]
)

// Extrude builds a closed prism from a profile placed in frame.
func Extrude(p sketch.Profile, f sketch.Frame, depth float64, span Span) (*kernel.Mesh, error) {
	if !(depth > 0) || math.IsInf(depth, 0) {
		return nil, fmt.Errorf("%w: extrude depth %g", sketch.ErrInvalidDimensions, depth)
	}
	if len(p.Outer) < 3 {
		return nil, fmt.Errorf("%w: profile has %d points", sketch.ErrOpenProfile, len(p.Outer))
	}
	from, to := 0.0, depth
	switch span {
	case SpanReverse:
		from, to = -depth, 0
	case SpanSymmetric:
		from, to = -depth/2, depth/2
	}
	return prism(normalize(p), f, from, to), nil
}

// normalize returns the profile with a counter-clockwise outer boundary and
// clockwise holes.
func normalize(p sketch.Profile) sketch.Profile {
	out := sketch.Profile{Outer: oriented(p.Outer, true)}
	for _, h := range p.Holes {
		if len(h) >= 3 {
			out.Holes = append(out.Holes, oriented(h, false))
		}
	}
	return out
}

func oriented(l []r2.Vec, ccw bool) []r2.Vec {
	out := append([]r2.Vec(nil), l...)
	if (sketch.SignedArea(out) > 0) != ccw {
		lo.Reverse(out)
	}
	return out
}

// prism extrudes an oriented profile between heights from and to.
func prism(p sketch.Profile, f sketch.Frame, from, to float64) *kernel.Mesh {
	loops := p.Loops()
	var flat []r2.Vec
	for _, l := range loops {
		flat = append(flat, l...)
	}
	bottom, top := f.Lift(flat, from), f.Lift(flat, to)
	tris := Triangulate(p.Outer, p.Holes...)

	b := kernel.NewBuilder(2*len(tris) + 2*len(flat))
	caps(b, tris, bottom, top)
	off := 0
	for _, l := range loops {
		walls(b, bottom[off:off+len(l)], top[off:off+len(l)])
		off += len(l)
	}
	return b.Mesh()
}

// caps adds the top cap facing along the frame normal and the bottom cap
// facing against it.
func caps(b *kernel.Builder, tris [][3]int, bottom, top []r3.Vec) {
	for _, t := range tris {
		b.AddTriangle(top[t[0]], top[t[1]], top[t[2]])
		b.AddTriangle(bottom[t[0]], bottom[t[2]], bottom[t[1]])
	}
}

// walls stitches two parallel rings of an oriented loop. Counter-clockwise
// loops produce outward walls; clockwise (hole) loops face into the hole.
func walls(b *kernel.Builder, lower, upper []r3.Vec) {
	n := len(lower)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		b.AddQuad(lower[i], lower[j], upper[j], upper[i])
	}
}
