// Package sketch turns sketch elements into closed profiles, places them
// in world space and solves geometric constraints between them.
package sketch

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

var (
	ErrEmptySketch       = errors.New("sketch: no elements")
	ErrInvalidDimensions = errors.New("sketch: invalid dimensions")
	ErrOpenProfile       = errors.New("sketch: elements do not form a simple closed profile")
	ErrUnresolvedPlane   = errors.New("sketch: plane cannot be resolved")
)

// DefaultSegments is the circle tessellation used when none is given.
const DefaultSegments = 32

// Profile is a closed 2D region: a counter-clockwise outer boundary and
// clockwise holes.
type Profile struct {
	Outer []r2.Vec
	Holes [][]r2.Vec
}

// Area returns the enclosed area (outer minus holes).
func (p Profile) Area() float64 {
	a := SignedArea(p.Outer)
	for _, h := range p.Holes {
		a += SignedArea(h)
	}
	return a
}

// Loops returns the outer boundary followed by the holes.
func (p Profile) Loops() [][]r2.Vec {
	return append([][]r2.Vec{p.Outer}, p.Holes...)
}

// Bounds returns the bounding box of the outer boundary.
func (p Profile) Bounds() r2.Box {
	if len(p.Outer) == 0 {
		return r2.Box{}
	}
	b := r2.Box{Min: p.Outer[0], Max: p.Outer[0]}
	for _, v := range p.Outer[1:] {
		b.Min = r2.Vec{X: math.Min(b.Min.X, v.X), Y: math.Min(b.Min.Y, v.Y)}
		b.Max = r2.Vec{X: math.Max(b.Max.X, v.X), Y: math.Max(b.Max.Y, v.Y)}
	}
	return b
}

// SignedArea is positive for counter-clockwise polygons.
func SignedArea(pts []r2.Vec) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += r2.Cross(pts[i], pts[j])
	}
	return a / 2
}

// curve is an open polyline contributed by a line or arc.
type curve struct {
	pts []r2.Vec
}

// Extract builds a profile from sketch elements. Rectangles and circles
// are closed on their own; lines and arcs must chain end to end into
// closed loops. The largest loop is the outer boundary and every other
// loop must lie inside it.
func Extract(elements []feature.Element, segments int) (Profile, error) {
	if len(elements) == 0 {
		return Profile{}, ErrEmptySketch
	}
	if segments < 3 {
		segments = DefaultSegments
	}

	var loops [][]r2.Vec
	var curves []curve
	for _, e := range elements {
		if err := checkDimensions(e); err != nil {
			return Profile{}, err
		}
		p := e.Params
		switch e.Kind {
		case feature.ElementRect:
			x, y, w, h := p[0], p[1], p[2], p[3]
			loops = append(loops, []r2.Vec{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}})
		case feature.ElementCircle:
			loops = append(loops, arcPoints(p[0], p[1], p[2], 0, 360, segments))
		case feature.ElementLine:
			curves = append(curves, curve{pts: []r2.Vec{{X: p[0], Y: p[1]}, {X: p[2], Y: p[3]}}})
		case feature.ElementArc:
			sweep := arcSweep(p[3], p[4])
			n := max(2, int(math.Ceil(float64(segments)*sweep/360)))
			pts := arcPoints(p[0], p[1], p[2], p[3], sweep, n)
			if sweep >= 360 {
				loops = append(loops, pts)
				continue
			}
			end := p[3] + sweep
			a := end * math.Pi / 180
			pts = append(pts, r2.Vec{X: p[0] + p[2]*math.Cos(a), Y: p[1] + p[2]*math.Sin(a)})
			curves = append(curves, curve{pts: pts})
		}
	}

	chained, err := chain(curves, tolerance(elements))
	if err != nil {
		return Profile{}, err
	}
	loops = append(loops, chained...)
	return assemble(loops, tolerance(elements))
}

func checkDimensions(e feature.Element) error {
	if !e.Valid() {
		return fmt.Errorf("%w: %s %q has %d params, want %d",
			ErrInvalidDimensions, e.Kind, e.ID, len(e.Params), e.Kind.ParamCount())
	}
	for _, v := range e.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %q has a non-finite parameter", ErrInvalidDimensions, e.Kind, e.ID)
		}
	}
	p := e.Params
	switch e.Kind {
	case feature.ElementRect:
		if p[2] <= 0 || p[3] <= 0 {
			return fmt.Errorf("%w: rect %q is %gx%g", ErrInvalidDimensions, e.ID, p[2], p[3])
		}
	case feature.ElementCircle, feature.ElementArc:
		if p[2] <= 0 {
			return fmt.Errorf("%w: %s %q radius %g", ErrInvalidDimensions, e.Kind, e.ID, p[2])
		}
	case feature.ElementLine:
		if math.Hypot(p[2]-p[0], p[3]-p[1]) < 1e-12 {
			return fmt.Errorf("%w: line %q has zero length", ErrInvalidDimensions, e.ID)
		}
	}
	return nil
}

// arcSweep returns the CCW sweep from start to end in (0, 360].
func arcSweep(start, end float64) float64 {
	s := math.Mod(end-start, 360)
	if s <= 0 {
		s += 360
	}
	return s
}

// arcPoints returns n points starting at startDeg and stepping sweep/n,
// excluding the end point.
func arcPoints(cx, cy, r, startDeg, sweep float64, n int) []r2.Vec {
	pts := make([]r2.Vec, n)
	for i := range pts {
		a := (startDeg + sweep*float64(i)/float64(n)) * math.Pi / 180
		pts[i] = r2.Vec{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}

// tolerance is the endpoint-matching distance: 1e-6 relative to the
// sketch extent.
func tolerance(elements []feature.Element) float64 {
	var extent float64
	for _, e := range elements {
		p := e.Params
		if e.Kind == feature.ElementArc && len(p) > 3 {
			p = p[:3] // angles are not lengths
		}
		for _, v := range p {
			extent = math.Max(extent, math.Abs(v))
		}
	}
	return 1e-6 * math.Max(1, extent)
}

// chain links open curves end to end. Every endpoint must meet exactly one
// other endpoint.
func chain(curves []curve, tol float64) ([][]r2.Vec, error) {
	if len(curves) == 0 {
		return nil, nil
	}

	// Cluster endpoints into nodes.
	var nodes []r2.Vec
	nodeOf := func(p r2.Vec) int {
		_, i, ok := lo.FindIndexOf(nodes, func(n r2.Vec) bool { return r2.Norm(r2.Sub(n, p)) <= tol })
		if ok {
			return i
		}
		nodes = append(nodes, p)
		return len(nodes) - 1
	}
	ends := make([][2]int, len(curves))
	for i, c := range curves {
		ends[i] = [2]int{nodeOf(c.pts[0]), nodeOf(c.pts[len(c.pts)-1])}
	}
	degree := make([]int, len(nodes))
	incident := make([][]int, len(nodes))
	for i, e := range ends {
		for _, n := range e {
			degree[n]++
			incident[n] = append(incident[n], i)
		}
	}
	for n, d := range degree {
		if d != 2 {
			return nil, fmt.Errorf("%w: endpoint (%g, %g) joins %d curves", ErrOpenProfile, nodes[n].X, nodes[n].Y, d)
		}
	}

	used := make([]bool, len(curves))
	var loops [][]r2.Vec
	for start := range curves {
		if used[start] {
			continue
		}
		var loop []r2.Vec
		cur, at := start, ends[start][0]
		for !used[cur] {
			used[cur] = true
			pts := curves[cur].pts
			if ends[cur][0] != at {
				pts = lo.Reverse(append([]r2.Vec(nil), pts...))
				at = ends[cur][0]
			} else {
				at = ends[cur][1]
			}
			// Drop the joint shared with the next curve.
			loop = append(loop, pts[:len(pts)-1]...)
			next := incident[at][0]
			if next == cur {
				next = incident[at][1]
			}
			cur = next
		}
		loops = append(loops, loop)
	}
	return loops, nil
}

// assemble checks each loop, picks the outer boundary and orients loops.
func assemble(loops [][]r2.Vec, tol float64) (Profile, error) {
	for i, l := range loops {
		l = dedupe(l, tol)
		if len(l) < 3 || math.Abs(SignedArea(l)) < tol*tol {
			return Profile{}, fmt.Errorf("%w: degenerate loop", ErrOpenProfile)
		}
		if selfIntersects(l) {
			return Profile{}, fmt.Errorf("%w: loop crosses itself", ErrOpenProfile)
		}
		loops[i] = l
	}

	outerIdx := 0
	for i, l := range loops {
		if math.Abs(SignedArea(l)) > math.Abs(SignedArea(loops[outerIdx])) {
			outerIdx = i
		}
	}
	outer := loops[outerIdx]
	prof := Profile{Outer: orient(outer, true)}
	holes := lo.Reject(loops, func(_ []r2.Vec, i int) bool { return i == outerIdx })
	for i, h := range holes {
		for _, v := range h {
			if !inside(v, outer) {
				return Profile{}, fmt.Errorf("%w: loop lies outside the outer boundary", ErrOpenProfile)
			}
		}
		if crosses(h, outer) {
			return Profile{}, fmt.Errorf("%w: loop crosses the outer boundary", ErrOpenProfile)
		}
		for _, other := range holes[i+1:] {
			if crosses(h, other) || inside(other[0], h) || inside(h[0], other) {
				return Profile{}, fmt.Errorf("%w: inner loops overlap", ErrOpenProfile)
			}
		}
		prof.Holes = append(prof.Holes, orient(h, false))
	}
	return prof, nil
}

// dedupe removes consecutive points closer than tol, including the
// closing pair.
func dedupe(l []r2.Vec, tol float64) []r2.Vec {
	out := make([]r2.Vec, 0, len(l))
	for _, p := range l {
		if len(out) > 0 && r2.Norm(r2.Sub(p, out[len(out)-1])) <= tol {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && r2.Norm(r2.Sub(out[0], out[len(out)-1])) <= tol {
		out = out[:len(out)-1]
	}
	return out
}

func orient(l []r2.Vec, ccw bool) []r2.Vec {
	out := append([]r2.Vec(nil), l...)
	if (SignedArea(out) > 0) != ccw {
		lo.Reverse(out)
	}
	return out
}

// segmentsCross reports a proper crossing or touching between segments
// ab and cd.
func segmentsCross(a, b, c, d r2.Vec) bool {
	d1 := r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
	d2 := r2.Cross(r2.Sub(b, a), r2.Sub(d, a))
	d3 := r2.Cross(r2.Sub(d, c), r2.Sub(a, c))
	d4 := r2.Cross(r2.Sub(d, c), r2.Sub(b, c))
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	onSeg := func(p, q, r r2.Vec) bool {
		return math.Min(p.X, q.X) <= r.X && r.X <= math.Max(p.X, q.X) &&
			math.Min(p.Y, q.Y) <= r.Y && r.Y <= math.Max(p.Y, q.Y)
	}
	return (d1 == 0 && onSeg(a, b, c)) || (d2 == 0 && onSeg(a, b, d)) ||
		(d3 == 0 && onSeg(c, d, a)) || (d4 == 0 && onSeg(c, d, b))
}

func selfIntersects(l []r2.Vec) bool {
	n := len(l)
	for i := 0; i < n; i++ {
		a, b := l[i], l[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // adjacent through the closing edge
			}
			if segmentsCross(a, b, l[j], l[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

func crosses(p, q []r2.Vec) bool {
	for i := range p {
		for j := range q {
			if segmentsCross(p[i], p[(i+1)%len(p)], q[j], q[(j+1)%len(q)]) {
				return true
			}
		}
	}
	return false
}

// inside is the even-odd point-in-polygon test.
func inside(p r2.Vec, poly []r2.Vec) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}
