// Package bsp implements kernel.Kernel with binary space partitioning
// trees in the style of csg.js. It is an approximate, tessellation-level
// boolean: results are flat-shaded and unwelded.
package bsp

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/logging"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Options bounds the work of a single boolean.
type Options struct {
	MaxDepth    int // deepest tree level that may still split
	MaxPolygons int // total polygons processed by build across one boolean
}

// DefaultOptions returns the caps used by New.
func DefaultOptions() Options {
	return Options{MaxDepth: 2048, MaxPolygons: 4_000_000}
}

// Kernel is the BSP boolean engine. The zero value is not usable; call New.
type Kernel struct {
	opts Options
}

// New returns a kernel with default caps.
func New() *Kernel {
	return &Kernel{opts: DefaultOptions()}
}

// NewWithOptions returns a kernel with custom caps. Non-positive fields
// take their defaults.
func NewWithOptions(o Options) *Kernel {
	d := DefaultOptions()
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxPolygons <= 0 {
		o.MaxPolygons = d.MaxPolygons
	}
	return &Kernel{opts: o}
}

// Union returns a ∪ b.
func (k *Kernel) Union(a, b *kernel.Mesh) *kernel.Mesh {
	return k.run(kernel.OpUnion, a, b)
}

// Difference returns a − b.
func (k *Kernel) Difference(a, b *kernel.Mesh) *kernel.Mesh {
	return k.run(kernel.OpDifference, a, b)
}

// Intersection returns a ∩ b.
func (k *Kernel) Intersection(a, b *kernel.Mesh) *kernel.Mesh {
	return k.run(kernel.OpIntersection, a, b)
}

func (k *Kernel) run(op kernel.Op, a, b *kernel.Mesh) (out *kernel.Mesh) {
	switch {
	case a.IsEmpty() && b.IsEmpty():
		return &kernel.Mesh{}
	case b.IsEmpty():
		if op == kernel.OpIntersection {
			return &kernel.Mesh{}
		}
		return a.Clone()
	case a.IsEmpty():
		if op == kernel.OpUnion {
			return b.Clone()
		}
		return &kernel.Mesh{}
	}

	if disjoint(a.Bounds(), b.Bounds()) {
		switch op {
		case kernel.OpUnion:
			return kernel.Merge(a, b)
		case kernel.OpDifference:
			return a.Clone()
		default:
			return &kernel.Mesh{}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Logger().Warn("bsp: boolean failed, returning fallback",
				slog.String("op", op.String()), slog.Any("panic", r))
			out = fallback(op, a, b)
		}
	}()

	bud := &budget{maxDepth: k.opts.MaxDepth, maxPolygons: k.opts.MaxPolygons}
	na := newNode(toPolygons(a), bud)
	nb := newNode(toPolygons(b), bud)

	switch op {
	case kernel.OpUnion:
		na.clipTo(nb)
		nb.clipTo(na)
		nb.invert()
		nb.clipTo(na)
		nb.invert()
		na.build(nb.allPolygons(), 0, bud)
	case kernel.OpDifference:
		na.invert()
		na.clipTo(nb)
		nb.clipTo(na)
		nb.invert()
		nb.clipTo(na)
		nb.invert()
		na.build(nb.allPolygons(), 0, bud)
		na.invert()
	case kernel.OpIntersection:
		na.invert()
		nb.clipTo(na)
		nb.invert()
		na.clipTo(nb)
		nb.clipTo(na)
		na.build(nb.allPolygons(), 0, bud)
		na.invert()
	default:
		panic(fmt.Sprintf("bsp: unknown op %v", op))
	}

	if bud.exceeded {
		logging.Logger().Warn("bsp: work cap reached, result may contain artifacts",
			slog.String("op", op.String()),
			slog.Int("max_depth", k.opts.MaxDepth),
			slog.Int("max_polygons", k.opts.MaxPolygons))
	}
	return fromPolygons(na.allPolygons())
}

// fallback is the degraded result used when the tree operations fail.
func fallback(op kernel.Op, a, b *kernel.Mesh) *kernel.Mesh {
	switch op {
	case kernel.OpUnion:
		return kernel.Merge(a, b)
	case kernel.OpDifference:
		return a.Clone()
	default:
		return &kernel.Mesh{}
	}
}

// disjoint reports whether two boxes are separated by more than epsilon
// on some axis. Touching boxes are not disjoint: their shared faces must
// go through the tree so coincident faces cancel.
func disjoint(a, b r3.Box) bool {
	return a.Max.X < b.Min.X-epsilon || b.Max.X < a.Min.X-epsilon ||
		a.Max.Y < b.Min.Y-epsilon || b.Max.Y < a.Min.Y-epsilon ||
		a.Max.Z < b.Min.Z-epsilon || b.Max.Z < a.Min.Z-epsilon
}

func toPolygons(m *kernel.Mesh) []polygon {
	polys := make([]polygon, 0, m.TriangleCount())
	for i := 0; i < m.TriangleCount(); i++ {
		t := m.Triangle(i)
		p, ok := planeFrom(t[0], t[1], t[2])
		if !ok {
			continue
		}
		polys = append(polys, polygon{vertices: []r3.Vec{t[0], t[1], t[2]}, plane: p})
	}
	return polys
}

func fromPolygons(polys []polygon) *kernel.Mesh {
	b := kernel.NewBuilder(2 * len(polys))
	for _, p := range polys {
		b.AddFan(p.vertices)
	}
	return b.Mesh()
}
