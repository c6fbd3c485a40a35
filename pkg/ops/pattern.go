package ops

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel/affine"
)

// AngleStep picks the angular spacing of a circular pattern.
type AngleStep int

const (
	// StepAuto divides a full turn by count and a partial arc by count-1,
	// so no two copies coincide and partial arcs end on their last angle.
	StepAuto AngleStep = iota
	// StepCount always divides by count.
	StepCount
	// StepGaps always divides by count-1.
	StepGaps
)

// LinearPattern returns count copies of m, copy k translated by
// k*spacing along direction. Copies are concatenated, not unioned. A
// negative spacing runs the copies against direction; a zero spacing or a
// zero direction returns m unchanged.
func LinearPattern(m *kernel.Mesh, count int, spacing float64, direction r3.Vec) *kernel.Mesh {
	if out, ok := unchanged(m, float64(count)); !ok {
		return out
	}
	if spacing == 0 || math.IsNaN(spacing) || r3.Norm(direction) < 1e-12 {
		return m.Clone()
	}
	step := r3.Scale(spacing, r3.Unit(direction))
	copies := make([]*kernel.Mesh, count)
	for k := range copies {
		copies[k] = affine.Translate(r3.Scale(float64(k), step)).Apply(m)
	}
	return kernel.Merge(copies...)
}

// CircularPattern returns count copies of m rotated about axis through the
// origin, spread over totalAngle degrees (zero means a full turn).
func CircularPattern(m *kernel.Mesh, count int, axis r3.Vec, totalAngle float64, step AngleStep) *kernel.Mesh {
	if out, ok := unchanged(m, float64(count)); !ok {
		return out
	}
	if r3.Norm(axis) < 1e-12 {
		return m.Clone()
	}
	delta := AngularStep(count, totalAngle, step)
	copies := make([]*kernel.Mesh, count)
	for k := range copies {
		copies[k] = affine.Rotate(axis, float64(k)*delta).Apply(m)
	}
	return kernel.Merge(copies...)
}

// AngularStep returns the angle between consecutive copies of a circular
// pattern, in degrees.
func AngularStep(count int, totalAngle float64, step AngleStep) float64 {
	if totalAngle == 0 {
		totalAngle = 360
	}
	if count < 2 {
		return 0
	}
	full := math.Abs(math.Abs(totalAngle)-360) < 1e-9
	switch {
	case step == StepCount, step == StepAuto && full:
		return totalAngle / float64(count)
	default:
		return totalAngle / float64(count-1)
	}
}

// MirrorPattern returns m together with its reflection across the plane
// through the origin with the given normal.
func MirrorPattern(m *kernel.Mesh, normal r3.Vec) *kernel.Mesh {
	if m.IsEmpty() {
		return &kernel.Mesh{}
	}
	t, err := affine.Mirror(normal)
	if err != nil {
		return m.Clone()
	}
	return kernel.Merge(m, t.Apply(m))
}
