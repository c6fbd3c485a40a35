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

// Sweep drags a profile along a polyline path. At each path station the
// profile sits in the plane perpendicular to the path tangent, twisted
// linearly from 0 to twist degrees and scaled linearly from 1 to scaleEnd
// (a non-positive scaleEnd means 1) by arc length. Holes are carried
// along as inner walls.
func Sweep(p sketch.Profile, path []r3.Vec, twist, scaleEnd float64) (*kernel.Mesh, error) {
	if len(p.Outer) < 3 {
		return nil, fmt.Errorf("%w: profile has %d points", sketch.ErrOpenProfile, len(p.Outer))
	}
	path = distinct(path)
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrShortPath, len(path))
	}
	if !(scaleEnd > 0) {
		scaleEnd = 1
	}
	p = normalize(p)

	length := make([]float64, len(path))
	for i := 1; i < len(path); i++ {
		length[i] = length[i-1] + r3.Norm(r3.Sub(path[i], path[i-1]))
	}
	total := length[len(length)-1]

	flat := flatten(p)
	rings := make([][]r3.Vec, len(path))
	for i := range path {
		t := length[i] / total
		side, up := stationAxes(tangent(path, i))
		a := twist * t * math.Pi / 180
		cs, sn := math.Cos(a), math.Sin(a)
		s := 1 + (scaleEnd-1)*t
		u := r3.Add(r3.Scale(cs, side), r3.Scale(sn, up))
		v := r3.Add(r3.Scale(-sn, side), r3.Scale(cs, up))
		f := sketch.Frame{Origin: path[i], U: r3.Scale(s, u), V: r3.Scale(s, v), Normal: r3.Cross(u, v)}
		rings[i] = f.Lift(flat, 0)
	}
	return stitch(p, p, p, rings), nil
}

// distinct drops consecutive repeated path points.
func distinct(path []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, 0, len(path))
	for _, p := range path {
		if len(out) > 0 && r3.Norm(r3.Sub(p, out[len(out)-1])) <= 1e-9 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// tangent is the path direction at station i: the segment direction at
// the ends and the average of the adjoining segments elsewhere.
func tangent(path []r3.Vec, i int) r3.Vec {
	switch i {
	case 0:
		return r3.Unit(r3.Sub(path[1], path[0]))
	case len(path) - 1:
		return r3.Unit(r3.Sub(path[i], path[i-1]))
	}
	in := r3.Unit(r3.Sub(path[i], path[i-1]))
	out := r3.Unit(r3.Sub(path[i+1], path[i]))
	if t := r3.Add(in, out); r3.Norm(t) > 1e-9 {
		return r3.Unit(t)
	}
	return out
}

// stationAxes returns the in-plane axes of a station with tangent t. The
// reference up is +Z, falling back to +X when t is nearly vertical; side ×
// up = t.
func stationAxes(t r3.Vec) (side, up r3.Vec) {
	ref := r3.Vec{Z: 1}
	if math.Abs(r3.Dot(t, ref)) > 0.99 {
		ref = r3.Vec{X: 1}
	}
	side = r3.Unit(r3.Cross(ref, t))
	up = r3.Cross(t, side)
	return side, up
}

func flatten(p sketch.Profile) []r2.Vec {
	var flat []r2.Vec
	for _, l := range p.Loops() {
		flat = append(flat, l...)
	}
	return flat
}

// stitch joins consecutive rings with walls following the loops of shape,
// then caps the first ring facing backward and the last facing forward.
// start and end are the planar outlines of the first and last rings.
func stitch(shape sketch.Profile, start, end sketch.Profile, rings [][]r3.Vec) *kernel.Mesh {
	n := len(rings[0])
	b := kernel.NewBuilder(2*len(shape.Outer) + 2*n*(len(rings)-1))
	first, last := rings[0], rings[len(rings)-1]
	for _, t := range Triangulate(end.Outer, end.Holes...) {
		b.AddTriangle(last[t[0]], last[t[1]], last[t[2]])
	}
	for _, t := range Triangulate(start.Outer, start.Holes...) {
		b.AddTriangle(first[t[0]], first[t[2]], first[t[1]])
	}
	for r := 0; r+1 < len(rings); r++ {
		off := 0
		for _, l := range shape.Loops() {
			walls(b, rings[r][off:off+len(l)], rings[r+1][off:off+len(l)])
			off += len(l)
		}
	}
	return b.Mesh()
}

// Loft blends between profiles of equal point count placed in frame at the
// given heights. Within each consecutive pair, points move with the
// smoothstep t²(3-2t) while the height moves linearly, over slices steps.
// Profiles with fewer than three points produce an empty mesh.
func Loft(f sketch.Frame, profiles [][]r2.Vec, heights []float64, slices int) (*kernel.Mesh, error) {
	if len(profiles) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewProfiles, len(profiles))
	}
	if len(heights) != len(profiles) {
		return nil, fmt.Errorf("%w: %d heights for %d profiles", ErrDimensionMismatch, len(heights), len(profiles))
	}
	n := len(profiles[0])
	for i, pr := range profiles[1:] {
		if len(pr) != n {
			return nil, fmt.Errorf("%w: profile %d has %d points, profile 0 has %d", ErrDimensionMismatch, i+1, len(pr), n)
		}
	}
	if n < 3 {
		return &kernel.Mesh{}, nil
	}
	if slices < 1 {
		slices = DefaultLoftSlices
	}

	var flat [][]r2.Vec
	var heightAt []float64
	for j := 0; j+1 < len(profiles); j++ {
		a, b := profiles[j], profiles[j+1]
		first := 1
		if j == 0 {
			first = 0
		}
		for s := first; s <= slices; s++ {
			t := float64(s) / float64(slices)
			w := t * t * (3 - 2*t)
			ring := make([]r2.Vec, n)
			for i := range ring {
				ring[i] = r2.Add(r2.Scale(1-w, a[i]), r2.Scale(w, b[i]))
			}
			flat = append(flat, ring)
			heightAt = append(heightAt, heights[j]+(heights[j+1]-heights[j])*t)
		}
	}

	// Walls face outward when the rings run up the frame normal and the
	// first profile winds counter-clockwise. Every ring is flipped with the
	// first so corresponding points stay paired.
	if sketch.SignedArea(profiles[0]) < 0 {
		for _, r := range flat {
			lo.Reverse(r)
		}
	}
	if heights[len(heights)-1] < heights[0] {
		lo.Reverse(flat)
		lo.Reverse(heightAt)
	}
	rings := make([][]r3.Vec, len(flat))
	for i, r := range flat {
		rings[i] = f.Lift(r, heightAt[i])
	}
	start := sketch.Profile{Outer: flat[0]}
	end := sketch.Profile{Outer: flat[len(flat)-1]}
	return stitch(start, start, end, rings), nil
}
