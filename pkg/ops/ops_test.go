package ops

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
)

// --- shared helpers ---

func square(x0, y0, side float64) []r2.Vec {
	return []r2.Vec{{X: x0, Y: y0}, {X: x0 + side, Y: y0}, {X: x0 + side, Y: y0 + side}, {X: x0, Y: y0 + side}}
}

func frame(t *testing.T, kind feature.PlaneKind) sketch.Frame {
	t.Helper()
	f, err := sketch.ResolvePlane(feature.Plane{Kind: kind}, nil)
	if err != nil {
		t.Fatalf("ResolvePlane(%v): %v", kind, err)
	}
	return f
}

func cube(side float64) *kernel.Mesh {
	return kernel.Box(r3.Vec{}, r3.Vec{X: side, Y: side, Z: side})
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// assertClosed fails unless every welded directed edge of m has exactly
// one reversed partner.
func assertClosed(t *testing.T, m *kernel.Mesh) {
	t.Helper()
	_, idx := m.Weld(kernel.DefaultWeldTolerance)
	count := make(map[dirEdge]int)
	for i := 0; i+2 < len(idx); i += 3 {
		for k := 0; k < 3; k++ {
			count[dirEdge{idx[i+k], idx[i+(k+1)%3]}]++
		}
	}
	for e, n := range count {
		if n != 1 {
			t.Fatalf("edge %d-%d used %d times in one direction", e.a, e.b, n)
		}
		if count[dirEdge{e.b, e.a}] != 1 {
			t.Fatalf("edge %d-%d has no reversed partner", e.a, e.b)
		}
	}
}

func assertWithin(t *testing.T, m *kernel.Mesh, box r3.Box) {
	t.Helper()
	const tol = 1e-9
	b := m.Bounds()
	if b.Min.X < box.Min.X-tol || b.Min.Y < box.Min.Y-tol || b.Min.Z < box.Min.Z-tol ||
		b.Max.X > box.Max.X+tol || b.Max.Y > box.Max.Y+tol || b.Max.Z > box.Max.Z+tol {
		t.Errorf("Bounds() = %v, want within %v", b, box)
	}
}

func TestUnchanged(t *testing.T) {
	box := cube(1)
	tests := []struct {
		name     string
		m        *kernel.Mesh
		size     float64
		wantOK   bool
		wantTris int
	}{
		{"empty", &kernel.Mesh{}, 1, false, 0},
		{"nil", nil, 1, false, 0},
		{"zero size", box, 0, false, 12},
		{"negative size", box, -2, false, 12},
		{"nan size", box, math.NaN(), false, 12},
		{"positive", box, 1, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := unchanged(tt.m, tt.size)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok && out.TriangleCount() != tt.wantTris {
				t.Errorf("TriangleCount() = %d, want %d", out.TriangleCount(), tt.wantTris)
			}
		})
	}
}
