package ops

import (
	"errors"
	"math"
	"testing"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
)

func TestExtrudeRect(t *testing.T) {
	p := sketch.Profile{Outer: square(0, 0, 10)}
	m, err := Extrude(p, frame(t, feature.PlaneXY), 20, SpanForward)
	if err != nil {
		t.Fatalf("Extrude: %v", err)
	}
	if got := m.TriangleCount(); got != 12 {
		t.Errorf("TriangleCount() = %d, want 12", got)
	}
	if got := m.Volume(); !near(got, 2000, 1e-6) {
		t.Errorf("Volume() = %g, want 2000", got)
	}
	b := m.Bounds()
	want := r3.Box{Max: r3.Vec{X: 10, Y: 10, Z: 20}}
	if r3.Norm(r3.Sub(b.Min, want.Min)) > 0.5 || r3.Norm(r3.Sub(b.Max, want.Max)) > 0.5 {
		t.Errorf("Bounds() = %v, want %v", b, want)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	assertClosed(t, m)
}

func TestExtrudeWithHole(t *testing.T) {
	p := sketch.Profile{Outer: square(0, 0, 10), Holes: [][]r2.Vec{lo.Reverse(square(3, 3, 4))}}
	m, err := Extrude(p, frame(t, feature.PlaneXY), 5, SpanForward)
	if err != nil {
		t.Fatalf("Extrude: %v", err)
	}
	if got := m.Volume(); !near(got, 84*5, 1e-6) {
		t.Errorf("Volume() = %g, want %g", got, 84.0*5)
	}
	assertClosed(t, m)
}

func TestExtrudeOrientationIndependent(t *testing.T) {
	// Clockwise outer and counter-clockwise hole are normalized.
	p := sketch.Profile{Outer: lo.Reverse(square(0, 0, 10)), Holes: [][]r2.Vec{square(3, 3, 4)}}
	m, err := Extrude(p, frame(t, feature.PlaneXY), 1, SpanForward)
	if err != nil {
		t.Fatalf("Extrude: %v", err)
	}
	if got := m.Volume(); !near(got, 84, 1e-6) {
		t.Errorf("Volume() = %g, want 84", got)
	}
}

func TestExtrudeSpan(t *testing.T) {
	tests := []struct {
		name       string
		span       Span
		minZ, maxZ float64
	}{
		{"forward", SpanForward, 0, 4},
		{"reverse", SpanReverse, -4, 0},
		{"symmetric", SpanSymmetric, -2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Extrude(sketch.Profile{Outer: square(0, 0, 1)}, frame(t, feature.PlaneXY), 4, tt.span)
			if err != nil {
				t.Fatalf("Extrude: %v", err)
			}
			b := m.Bounds()
			if !near(b.Min.Z, tt.minZ, 1e-9) || !near(b.Max.Z, tt.maxZ, 1e-9) {
				t.Errorf("z range = [%g, %g], want [%g, %g]", b.Min.Z, b.Max.Z, tt.minZ, tt.maxZ)
			}
			if got := m.Volume(); !near(got, 4, 1e-9) {
				t.Errorf("Volume() = %g, want 4", got)
			}
		})
	}
}

func TestExtrudeOnXZ(t *testing.T) {
	m, err := Extrude(sketch.Profile{Outer: square(0, 0, 2)}, frame(t, feature.PlaneXZ), 3, SpanForward)
	if err != nil {
		t.Fatalf("Extrude: %v", err)
	}
	b := m.Bounds()
	if !near(b.Min.Y, -3, 1e-9) || !near(b.Max.Y, 0, 1e-9) {
		t.Errorf("y range = [%g, %g], want [-3, 0]", b.Min.Y, b.Max.Y)
	}
	if !near(b.Max.Z, 2, 1e-9) {
		t.Errorf("max z = %g, want 2", b.Max.Z)
	}
	if got := m.Volume(); !near(got, 12, 1e-9) {
		t.Errorf("Volume() = %g, want 12", got)
	}
}

func TestExtrudeErrors(t *testing.T) {
	good := sketch.Profile{Outer: square(0, 0, 1)}
	tests := []struct {
		name  string
		p     sketch.Profile
		depth float64
		want  error
	}{
		{"zero depth", good, 0, sketch.ErrInvalidDimensions},
		{"negative depth", good, -1, sketch.ErrInvalidDimensions},
		{"nan depth", good, math.NaN(), sketch.ErrInvalidDimensions},
		{"infinite depth", good, math.Inf(1), sketch.ErrInvalidDimensions},
		{"two points", sketch.Profile{Outer: []r2.Vec{{}, {X: 1}}}, 1, sketch.ErrOpenProfile},
		{"empty", sketch.Profile{}, 1, sketch.ErrOpenProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extrude(tt.p, frame(t, feature.PlaneXY), tt.depth, SpanForward)
			if !errors.Is(err, tt.want) {
				t.Errorf("Extrude() error = %v, want %v", err, tt.want)
			}
		})
	}
}
