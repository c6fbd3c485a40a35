package ops

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
)

type corner struct {
	p   r2.Vec
	idx int
}

// Triangulate splits a polygon with holes into counter-clockwise
// triangles. The result indexes the concatenation of outer and holes in
// argument order. Loops may be given in either orientation. Holes are
// bridged into the outer boundary and the result is ear clipped; if
// clipping stalls on degenerate input the remaining corners are dropped
// one at a time, so Triangulate always terminates.
func Triangulate(outer []r2.Vec, holes ...[]r2.Vec) [][3]int {
	if len(outer) < 3 {
		return nil
	}
	poly := loopCorners(outer, 0, true)
	base := len(outer)
	var hs [][]corner
	for _, h := range holes {
		if len(h) >= 3 {
			hs = append(hs, loopCorners(h, base, false))
		}
		base += len(h)
	}
	eps := epsilonFor(poly)
	poly = bridge(poly, hs, eps)
	return clip(poly, eps)
}

func loopCorners(pts []r2.Vec, base int, ccw bool) []corner {
	out := make([]corner, len(pts))
	for i, p := range pts {
		out[i] = corner{p: p, idx: base + i}
	}
	if (cornerArea(out) > 0) != ccw {
		lo.Reverse(out)
	}
	return out
}

func cornerArea(c []corner) float64 {
	var a float64
	for i := range c {
		a += r2.Cross(c[i].p, c[(i+1)%len(c)].p)
	}
	return a / 2
}

// epsilonFor scales the orientation tolerance to the polygon size.
func epsilonFor(c []corner) float64 {
	var ext float64
	for _, v := range c {
		ext = math.Max(ext, math.Max(math.Abs(v.p.X), math.Abs(v.p.Y)))
	}
	return 1e-12 * math.Max(1, ext*ext)
}

func orient(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

func samePoint(a, b r2.Vec) bool {
	return a == b
}

// ---------------------------------------------------------------------------
// Hole bridging
// ---------------------------------------------------------------------------

// bridge splices each hole into poly through a segment from the hole's
// rightmost corner to the nearest visible corner of poly.
func bridge(poly []corner, holes [][]corner, eps float64) []corner {
	sort.SliceStable(holes, func(i, j int) bool {
		return maxX(holes[i]) > maxX(holes[j])
	})
	for hi, h := range holes {
		m := 0
		for i, c := range h {
			if c.p.X > h[m].p.X {
				m = i
			}
		}
		mp := h[m].p

		order := make([]int, len(poly))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return r2.Norm(r2.Sub(poly[order[a]].p, mp)) < r2.Norm(r2.Sub(poly[order[b]].p, mp))
		})
		j := order[0]
		for _, cand := range order {
			if visible(poly, holes[hi:], poly[cand].p, mp, eps) {
				j = cand
				break
			}
		}

		spliced := make([]corner, 0, len(poly)+len(h)+2)
		spliced = append(spliced, poly[:j+1]...)
		spliced = append(spliced, h[m:]...)
		spliced = append(spliced, h[:m+1]...)
		spliced = append(spliced, poly[j:]...)
		poly = spliced
	}
	return poly
}

func maxX(c []corner) float64 {
	return lo.MaxBy(c, func(a, b corner) bool { return a.p.X > b.p.X }).p.X
}

// visible reports whether segment ab stays inside the region bounded by
// poly and the remaining holes without crossing any boundary.
func visible(poly []corner, holes [][]corner, a, b r2.Vec, eps float64) bool {
	if samePoint(a, b) {
		return false
	}
	loops := append([][]corner{poly}, holes...)
	for _, l := range loops {
		for i := range l {
			c, d := l[i].p, l[(i+1)%len(l)].p
			if properCross(a, b, c, d, eps) {
				return false
			}
			if !samePoint(c, a) && !samePoint(c, b) && onSegment(a, b, c, eps) {
				return false
			}
		}
	}
	mid := r2.Scale(0.5, r2.Add(a, b))
	if !insideCorners(mid, poly) {
		return false
	}
	for _, h := range holes {
		if insideCorners(mid, h) {
			return false
		}
	}
	return true
}

func properCross(a, b, c, d r2.Vec, eps float64) bool {
	d1, d2 := orient(a, b, c), orient(a, b, d)
	d3, d4 := orient(c, d, a), orient(c, d, b)
	return ((d1 > eps && d2 < -eps) || (d1 < -eps && d2 > eps)) &&
		((d3 > eps && d4 < -eps) || (d3 < -eps && d4 > eps))
}

// onSegment reports whether p lies on the open segment ab.
func onSegment(a, b, p r2.Vec, eps float64) bool {
	if math.Abs(orient(a, b, p)) > eps {
		return false
	}
	ab := r2.Sub(b, a)
	t := r2.Dot(r2.Sub(p, a), ab) / r2.Dot(ab, ab)
	return t > 0 && t < 1
}

func insideCorners(p r2.Vec, poly []corner) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i].p, poly[j].p
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

// ---------------------------------------------------------------------------
// Ear clipping
// ---------------------------------------------------------------------------

func clip(poly []corner, eps float64) [][3]int {
	pts := append([]corner(nil), poly...)
	tris := make([][3]int, 0, len(pts))
	for len(pts) > 3 {
		n := len(pts)
		ear := -1
		for i := 0; i < n; i++ {
			if isEar(pts, i, eps) {
				ear = i
				break
			}
		}
		if ear < 0 {
			// Degenerate remainder: drop the most convex corner.
			ear = 0
			best := math.Inf(-1)
			for i := 0; i < n; i++ {
				a, b, c := pts[(i+n-1)%n], pts[i], pts[(i+1)%n]
				if o := orient(a.p, b.p, c.p); o > best {
					best, ear = o, i
				}
			}
			if best <= eps {
				pts = append(pts[:ear], pts[ear+1:]...)
				continue
			}
		}
		a, b, c := pts[(ear+n-1)%n], pts[ear], pts[(ear+1)%n]
		tris = append(tris, [3]int{a.idx, b.idx, c.idx})
		pts = append(pts[:ear], pts[ear+1:]...)
	}
	if len(pts) == 3 && orient(pts[0].p, pts[1].p, pts[2].p) > eps {
		tris = append(tris, [3]int{pts[0].idx, pts[1].idx, pts[2].idx})
	}
	return tris
}

func isEar(pts []corner, i int, eps float64) bool {
	n := len(pts)
	a, b, c := pts[(i+n-1)%n].p, pts[i].p, pts[(i+1)%n].p
	if orient(a, b, c) <= eps {
		return false
	}
	for _, q := range pts {
		p := q.p
		if samePoint(p, a) || samePoint(p, b) || samePoint(p, c) {
			continue
		}
		if orient(a, b, p) >= -eps && orient(b, c, p) >= -eps && orient(c, a, p) >= -eps {
			return false
		}
	}
	return true
}
