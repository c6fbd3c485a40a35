package ops

import (
	"math"
	"testing"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
)

func trianglesArea(t *testing.T, pts []r2.Vec, tris [][3]int) float64 {
	t.Helper()
	var sum float64
	for _, tri := range tris {
		a := r2.Cross(r2.Sub(pts[tri[1]], pts[tri[0]]), r2.Sub(pts[tri[2]], pts[tri[0]])) / 2
		if a <= 0 {
			t.Errorf("triangle %v has area %g, want counter-clockwise", tri, a)
		}
		sum += a
	}
	return sum
}

func TestTriangulate(t *testing.T) {
	lshape := []r2.Vec{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {X: 0, Y: 2}}
	tests := []struct {
		name     string
		outer    []r2.Vec
		holes    [][]r2.Vec
		wantTris int
		wantArea float64
	}{
		{"square", square(0, 0, 1), nil, 2, 1},
		{"clockwise square", lo.Reverse(square(0, 0, 2)), nil, 2, 4},
		{"concave", lshape, nil, 4, 3},
		{"square with hole", square(0, 0, 10), [][]r2.Vec{square(3, 3, 4)}, 8, 84},
		{"two holes", square(0, 0, 10), [][]r2.Vec{square(1, 1, 2), square(6, 6, 2)}, 14, 92},
		{"too few points", []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}}, nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tris := Triangulate(tt.outer, tt.holes...)
			if len(tris) != tt.wantTris {
				t.Fatalf("len(Triangulate()) = %d, want %d", len(tris), tt.wantTris)
			}
			all := append([]r2.Vec(nil), tt.outer...)
			for _, h := range tt.holes {
				all = append(all, h...)
			}
			if got := trianglesArea(t, all, tris); !near(got, tt.wantArea, 1e-9) {
				t.Errorf("area = %g, want %g", got, tt.wantArea)
			}
		})
	}
}

func TestTriangulateCircleHole(t *testing.T) {
	var hole []r2.Vec
	for i := 0; i < 32; i++ {
		a := float64(i) * 2 * math.Pi / 32
		hole = append(hole, r2.Vec{X: 5 + 2*math.Cos(a), Y: 5 + 2*math.Sin(a)})
	}
	outer := square(0, 0, 10)
	tris := Triangulate(outer, hole)
	all := append(append([]r2.Vec(nil), outer...), hole...)
	want := 100 - polygonArea(hole)
	if got := trianglesArea(t, all, tris); !near(got, want, 1e-9) {
		t.Errorf("area = %g, want %g", got, want)
	}
}

func polygonArea(pts []r2.Vec) float64 {
	var a float64
	for i := range pts {
		a += r2.Cross(pts[i], pts[(i+1)%len(pts)])
	}
	if a < 0 {
		a = -a
	}
	return a / 2
}
