package bsp

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// epsilon is the plane-side tolerance used when classifying points.
const epsilon = 1e-5

type plane struct {
	normal r3.Vec
	w      float64
}

// planeFrom returns the plane through a, b, c. ok is false for degenerate
// input.
func planeFrom(a, b, c r3.Vec) (plane, bool) {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) < 1e-12 {
		return plane{}, false
	}
	n = r3.Unit(n)
	return plane{normal: n, w: r3.Dot(n, a)}, true
}

func (p plane) flipped() plane {
	return plane{normal: r3.Scale(-1, p.normal), w: -p.w}
}

// polygon is a convex planar polygon.
type polygon struct {
	vertices []r3.Vec
	plane    plane
}

func (p polygon) flipped() polygon {
	n := len(p.vertices)
	vs := make([]r3.Vec, n)
	for i, v := range p.vertices {
		vs[n-1-i] = v
	}
	return polygon{vertices: vs, plane: p.plane.flipped()}
}

// Point classification relative to a plane.
const (
	coplanar = 0
	front    = 1
	back     = 2
	spanning = 3
)

// split sorts poly into the four buckets relative to p, splitting spanning
// polygons in two. Coplanar polygons go to coplanarFront or coplanarBack
// depending on their orientation.
func (p plane) split(poly polygon, coplanarFront, coplanarBack, fronts, backs *[]polygon) {
	polyType := 0
	types := make([]int, len(poly.vertices))
	for i, v := range poly.vertices {
		t := r3.Dot(p.normal, v) - p.w
		typ := coplanar
		if t < -epsilon {
			typ = back
		} else if t > epsilon {
			typ = front
		}
		polyType |= typ
		types[i] = typ
	}

	switch polyType {
	case coplanar:
		if r3.Dot(p.normal, poly.plane.normal) > 0 {
			*coplanarFront = append(*coplanarFront, poly)
		} else {
			*coplanarBack = append(*coplanarBack, poly)
		}
	case front:
		*fronts = append(*fronts, poly)
	case back:
		*backs = append(*backs, poly)
	case spanning:
		var f, b []r3.Vec
		n := len(poly.vertices)
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			ti, tj := types[i], types[j]
			vi, vj := poly.vertices[i], poly.vertices[j]
			if ti != back {
				f = append(f, vi)
			}
			if ti != front {
				b = append(b, vi)
			}
			if ti|tj == spanning {
				t := (p.w - r3.Dot(p.normal, vi)) / r3.Dot(p.normal, r3.Sub(vj, vi))
				v := r3.Add(vi, r3.Scale(t, r3.Sub(vj, vi)))
				f = append(f, v)
				b = append(b, v)
			}
		}
		if len(f) >= 3 {
			*fronts = append(*fronts, polygon{vertices: f, plane: poly.plane})
		}
		if len(b) >= 3 {
			*backs = append(*backs, polygon{vertices: b, plane: poly.plane})
		}
	}
}
