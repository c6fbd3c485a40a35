package topo

import (
	"cmp"
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

// vertex adapts a welded vertex to rtreego.Spatial.
type vertex struct {
	id   uint32
	rect rtreego.Rect
}

func (v *vertex) Bounds() rtreego.Rect { return v.rect }

// SplitTJunctions splits triangle edges that pass through another vertex of
// an indexed mesh, so that neighboring triangles share whole edges. Boolean
// results leave such T-junctions wherever a face was cut on one side of an
// edge only. A split triangle is replaced by a fan about its centroid,
// which is appended to positions; winding is preserved. Triangles without
// T-junctions keep their indices and relative order.
func SplitTJunctions(positions []r3.Vec, indices []uint32, tol float64) ([]r3.Vec, []uint32) {
	if len(indices) == 0 {
		return positions, indices
	}
	if tol <= 0 {
		tol = kernel.DefaultWeldTolerance
	}
	tree := rtreego.NewTree(3, 4, 16)
	for i, p := range positions {
		tree.Insert(&vertex{id: uint32(i), rect: point(p).ToRect(tol)})
	}

	pos := slices.Clip(positions)
	out := make([]uint32, 0, len(indices))
	var ring []uint32
	for t := 0; t < len(indices)/3; t++ {
		c := indices[3*t : 3*t+3]
		ring = ring[:0]
		for k := range 3 {
			ring = append(ring, c[k])
			ring = append(ring, onEdge(tree, positions, c[k], c[(k+1)%3], tol)...)
		}
		if len(ring) == 3 {
			out = append(out, c...)
			continue
		}
		centroid := r3.Triangle{positions[c[0]], positions[c[1]], positions[c[2]]}.Centroid()
		apex := uint32(len(pos))
		pos = append(pos, centroid)
		for i := range ring {
			out = append(out, apex, ring[i], ring[(i+1)%len(ring)])
		}
	}
	return pos, out
}

// onEdge returns the vertices lying strictly inside the segment a→b,
// ordered from a to b.
func onEdge(tree *rtreego.Rtree, pos []r3.Vec, a, b uint32, tol float64) []uint32 {
	pa, pb := pos[a], pos[b]
	d := r3.Sub(pb, pa)
	l2 := r3.Dot(d, d)
	if l2 <= tol*tol {
		return nil
	}
	lo := rtreego.Point{math.Min(pa.X, pb.X) - tol, math.Min(pa.Y, pb.Y) - tol, math.Min(pa.Z, pb.Z) - tol}
	hi := rtreego.Point{math.Max(pa.X, pb.X) + tol, math.Max(pa.Y, pb.Y) + tol, math.Max(pa.Z, pb.Z) + tol}
	box, err := rtreego.NewRectFromPoints(lo, hi)
	if err != nil {
		return nil
	}

	type hit struct {
		t float64
		v uint32
	}
	var hits []hit
	for _, s := range tree.SearchIntersect(box) {
		v := s.(*vertex).id
		if v == a || v == b {
			continue
		}
		p := pos[v]
		t := r3.Dot(r3.Sub(p, pa), d) / l2
		if t <= 0 || t >= 1 {
			continue
		}
		if r3.Norm(r3.Sub(p, r3.Add(pa, r3.Scale(t, d)))) > tol ||
			r3.Norm(r3.Sub(p, pa)) <= tol || r3.Norm(r3.Sub(p, pb)) <= tol {
			continue
		}
		hits = append(hits, hit{t, v})
	}
	slices.SortFunc(hits, func(x, y hit) int {
		return cmp.Or(cmp.Compare(x.t, y.t), cmp.Compare(x.v, y.v))
	})
	ids := make([]uint32, len(hits))
	for i, h := range hits {
		ids[i] = h.v
	}
	return ids
}
