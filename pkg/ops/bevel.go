package ops

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/logging"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
)

// Fillet rounds every sharp edge of m with an arc of the given radius
// approximated by segments flat strips. Corners where sharp edges meet are
// closed with a fan. angle is the sharp-edge threshold in degrees.
//
// When the planar faces of m cannot be chained into boundary loops, or the
// radius collapses a face, Fillet returns a copy of m and an error wrapping
// ErrUnsupportedTopology.
func Fillet(m *kernel.Mesh, radius float64, segments int, angle float64) (*kernel.Mesh, error) {
	if out, ok := unchanged(m, radius); !ok {
		return out, nil
	}
	if segments < 1 {
		segments = DefaultFilletSegments
	}
	return bevelOrKeep(m, bevel{size: radius, segments: segments, round: true, angle: angle})
}

// Chamfer cuts every sharp edge of m with a flat strip set back by
// distance on both adjacent faces. Errors are reported as for Fillet.
func Chamfer(m *kernel.Mesh, distance float64, angle float64) (*kernel.Mesh, error) {
	if out, ok := unchanged(m, distance); !ok {
		return out, nil
	}
	return bevelOrKeep(m, bevel{size: distance, segments: 1, angle: angle})
}

type bevel struct {
	size     float64
	segments int
	round    bool
	angle    float64 // degrees
}

func bevelOrKeep(m *kernel.Mesh, bv bevel) (*kernel.Mesh, error) {
	if !(bv.angle > 0) {
		bv.angle = DefaultSharpAngle
	}
	out, err := bv.apply(m)
	if err != nil {
		logging.Logger().Warn("edge modifier left mesh unchanged", "round", bv.round, "size", bv.size, "err", err)
		return m.Clone(), err
	}
	return out, nil
}

// edgeInfo describes a sharp edge.
type edgeInfo struct {
	setback float64
	convex  bool
}

type faceVertex struct {
	face int
	v    uint32
}

type beveler struct {
	bevel
	s     *solid
	sharp map[dirEdge]edgeInfo // both directions
	inset map[faceVertex]r3.Vec
	b     *kernel.Builder
}

func (bv bevel) apply(m *kernel.Mesh) (*kernel.Mesh, error) {
	s, err := newSolid(m)
	if err != nil {
		return nil, err
	}
	w := &beveler{
		bevel: bv,
		s:     s,
		sharp: make(map[dirEdge]edgeInfo),
		inset: make(map[faceVertex]r3.Vec),
		b:     kernel.NewBuilder(2 * m.TriangleCount()),
	}
	cosLimit := math.Cos(bv.angle * math.Pi / 180)
	edges := s.edges()
	for _, e := range edges {
		fi := s.owner[e]
		gi, ok := s.neighbor(e.a, e.b)
		if !ok {
			continue
		}
		nf, ng := s.faces[fi].normal, s.faces[gi].normal
		if r3.Dot(nf, ng) >= cosLimit {
			continue
		}
		setback := bv.size
		if bv.round {
			setback = bv.size * math.Tan(normalAngle(nf, ng)/2)
		}
		w.sharp[e] = edgeInfo{setback: setback, convex: s.convex(fi, gi, e)}
	}
	if len(w.sharp) == 0 {
		return m.Clone(), nil
	}

	for fi := range s.faces {
		if err := w.insetFace(fi); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if _, ok := w.sharp[e]; !ok {
			continue
		}
		fi := s.owner[e]
		gi, _ := s.neighbor(e.a, e.b)
		if fi > gi || (fi == gi && e.a > e.b) {
			continue // one strip per edge
		}
		w.strip(e, fi, gi)
	}
	for _, v := range s.vertices() {
		w.corner(v, s.around[v])
	}
	return w.b.Mesh(), nil
}

// insetFace moves each sharp boundary edge of face fi into the face by its
// setback and triangulates the result.
func (w *beveler) insetFace(fi int) error {
	f := w.s.faces[fi]
	n := f.normal
	loops := make([][]r3.Vec, len(f.loops))
	for li, l := range f.loops {
		k := len(l)
		pts := make([]r3.Vec, k)
		for i, v := range l {
			prev, next := l[(i+k-1)%k], l[(i+1)%k]
			pts[i] = w.insetPoint(n, prev, v, next)
			w.inset[faceVertex{fi, v}] = pts[i]
		}
		before, after := loopArea(w.s.pos, l, n), pointsArea(pts, n)
		if before*after <= 0 || math.Abs(after) < 1e-12 || reversed(w.s.pos, l, pts) {
			return fmt.Errorf("%w: size %g collapses face %d", ErrUnsupportedTopology, w.size, fi)
		}
		loops[li] = pts
	}

	frame := sketch.FrameOnFace(loops[0][0], n)
	flat := make([][]r2.Vec, len(loops))
	outer := 0
	for i, l := range loops {
		flat[i] = project(frame, l)
		if math.Abs(sketch.SignedArea(flat[i])) > math.Abs(sketch.SignedArea(flat[outer])) {
			outer = i
		}
	}
	order := append([]int{outer}, without(len(loops), outer)...)
	var all []r3.Vec
	var holes [][]r2.Vec
	for _, i := range order {
		all = append(all, loops[i]...)
		if i != outer {
			holes = append(holes, flat[i])
		}
	}
	for _, t := range Triangulate(flat[outer], holes...) {
		w.b.AddTriangle(all[t[0]], all[t[1]], all[t[2]])
	}
	return nil
}

// reversed reports whether an inset edge runs against its original edge.
func reversed(pos []r3.Vec, l []uint32, pts []r3.Vec) bool {
	for i := range l {
		j := (i + 1) % len(l)
		if r3.Dot(r3.Sub(pts[j], pts[i]), r3.Sub(pos[l[j]], pos[l[i]])) < 0 {
			return true
		}
	}
	return false
}

func without(n, skip int) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if i != skip {
			out = append(out, i)
		}
	}
	return out
}

func project(f sketch.Frame, pts []r3.Vec) []r2.Vec {
	out := make([]r2.Vec, len(pts))
	for i, p := range pts {
		d := r3.Sub(p, f.Origin)
		out[i] = r2.Vec{X: r3.Dot(d, f.U), Y: r3.Dot(d, f.V)}
	}
	return out
}

func loopArea(pos []r3.Vec, l []uint32, n r3.Vec) float64 {
	pts := make([]r3.Vec, len(l))
	for i, v := range l {
		pts[i] = pos[v]
	}
	return pointsArea(pts, n)
}

// pointsArea is the signed area of a planar loop about normal n.
func pointsArea(pts []r3.Vec, n r3.Vec) float64 {
	var sum r3.Vec
	for i := range pts {
		sum = r3.Add(sum, r3.Cross(pts[i], pts[(i+1)%len(pts)]))
	}
	return r3.Dot(sum, n) / 2
}

// insetPoint intersects the offset lines of the boundary edges prev→v and
// v→next. Edges that are not sharp keep a zero offset.
func (w *beveler) insetPoint(n r3.Vec, prev, v, next uint32) r3.Vec {
	pv, pp, pn := w.s.pos[v], w.s.pos[prev], w.s.pos[next]
	d1, d2 := r3.Sub(pv, pp), r3.Sub(pn, pv)
	s1 := w.sharp[dirEdge{prev, v}].setback
	s2 := w.sharp[dirEdge{v, next}].setback
	if s1 == 0 && s2 == 0 {
		return pv
	}
	in1 := r3.Unit(r3.Cross(n, d1))
	in2 := r3.Unit(r3.Cross(n, d2))
	p1 := r3.Add(pv, r3.Scale(s1, in1))
	p2 := r3.Add(pv, r3.Scale(s2, in2))

	den := r3.Dot(r3.Cross(d1, d2), n)
	if math.Abs(den) < 1e-9*r3.Norm(d1)*r3.Norm(d2) {
		if s1 >= s2 {
			return p1
		}
		return p2
	}
	t := r3.Dot(r3.Cross(r3.Sub(p2, p1), d2), n) / den
	return r3.Add(p1, r3.Scale(t, d1))
}

// arc returns the bevel profile at vertex v of the sharp edge between faces
// fi and gi, running from fi's inset corner to gi's.
func (w *beveler) arc(v uint32, fi, gi int, info edgeInfo) []r3.Vec {
	pf, pg := w.inset[faceVertex{fi, v}], w.inset[faceVertex{gi, v}]
	if !w.round {
		return []r3.Vec{pf, pg}
	}
	nf, ng := w.s.faces[fi].normal, w.s.faces[gi].normal
	theta := normalAngle(nf, ng)
	sign := -1.0
	if !info.convex {
		sign = 1
	}
	center := r3.Add(pf, r3.Scale(sign*w.size, nf))
	pts := make([]r3.Vec, w.segments+1)
	pts[0], pts[w.segments] = pf, pg
	for k := 1; k < w.segments; k++ {
		d := slerp(nf, ng, theta, float64(k)/float64(w.segments))
		pts[k] = r3.Sub(center, r3.Scale(sign*w.size, d))
	}
	return pts
}

func slerp(a, b r3.Vec, theta, t float64) r3.Vec {
	if s := math.Sin(theta); s > 1e-9 {
		return r3.Add(r3.Scale(math.Sin((1-t)*theta)/s, a), r3.Scale(math.Sin(t*theta)/s, b))
	}
	return r3.Unit(r3.Add(r3.Scale(1-t, a), r3.Scale(t, b)))
}

// strip bridges the inset boundaries of two faces along sharp edge e.
func (w *beveler) strip(e dirEdge, fi, gi int) {
	info := w.sharp[e]
	pa := w.arc(e.a, fi, gi, info)
	pb := w.arc(e.b, fi, gi, info)
	out := r3.Add(w.s.faces[fi].normal, w.s.faces[gi].normal)
	for k := 0; k+1 < len(pa); k++ {
		w.facing(out, pa[k], pb[k], pb[k+1])
		w.facing(out, pa[k], pb[k+1], pa[k+1])
	}
}

// facing adds a triangle wound so its normal agrees with out.
func (w *beveler) facing(out, a, b, c r3.Vec) {
	if r3.Dot(r3.Triangle{a, b, c}.Normal(), out) < 0 {
		b, c = c, b
	}
	w.b.AddTriangle(a, b, c)
}

// corner closes the gap left at vertex v between the strips of its sharp
// edges. Faces are visited in order around v; sharp edges contribute their
// bevel profile and smooth edges join the two inset corners directly.
func (w *beveler) corner(v uint32, faces []int) {
	if len(faces) < 3 {
		return
	}
	var loop []r3.Vec
	var nsum r3.Vec
	allSharp, allConvex := true, true
	fi := faces[0]
	for step := 0; step <= len(faces); step++ {
		f := w.s.faces[fi]
		nsum = r3.Add(nsum, f.normal)
		next, ok := f.next[v]
		if !ok {
			return
		}
		gi, ok := w.s.neighbor(v, next)
		if !ok {
			return // open boundary
		}
		if info, ok := w.sharp[dirEdge{v, next}]; ok {
			loop = append(loop, w.arc(v, fi, gi, info)...)
			allConvex = allConvex && info.convex
		} else {
			allSharp = false
			loop = append(loop, w.inset[faceVertex{fi, v}], w.inset[faceVertex{gi, v}])
		}
		fi = gi
		if fi == faces[0] {
			break
		}
	}
	if fi != faces[0] {
		return
	}
	loop = dedupe3(loop)
	if len(loop) < 3 {
		return
	}
	if len(loop) == 3 {
		w.facing(nsum, loop[0], loop[1], loop[2])
		return
	}

	apex := centroid3(loop)
	if w.round && allSharp && allConvex {
		f := w.s.faces[faces[0]]
		center := r3.Sub(w.inset[faceVertex{faces[0], v}], r3.Scale(w.size, f.normal))
		apex = r3.Add(center, r3.Scale(w.size, r3.Unit(nsum)))
	}
	for i := range loop {
		w.facing(nsum, apex, loop[i], loop[(i+1)%len(loop)])
	}
}

func dedupe3(pts []r3.Vec) []r3.Vec {
	const tol = 1e-9
	out := make([]r3.Vec, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && r3.Norm(r3.Sub(p, out[len(out)-1])) <= tol {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && r3.Norm(r3.Sub(out[0], out[len(out)-1])) <= tol {
		out = out[:len(out)-1]
	}
	return out
}

func centroid3(pts []r3.Vec) r3.Vec {
	var c r3.Vec
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(pts)), c)
}
