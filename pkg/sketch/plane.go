package sketch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

// Frame places sketch coordinates in world space. U, V and Normal are unit
// vectors with U × V = Normal.
type Frame struct {
	Origin r3.Vec
	U, V   r3.Vec
	Normal r3.Vec
}

var (
	frameXY = Frame{U: r3.Vec{X: 1}, V: r3.Vec{Y: 1}, Normal: r3.Vec{Z: 1}}
	frameXZ = Frame{U: r3.Vec{X: 1}, V: r3.Vec{Z: 1}, Normal: r3.Vec{Y: -1}}
	frameYZ = Frame{U: r3.Vec{Y: 1}, V: r3.Vec{Z: 1}, Normal: r3.Vec{X: 1}}
)

// Point maps a sketch point to world space.
func (f Frame) Point(p r2.Vec) r3.Vec {
	return r3.Add(f.Origin, r3.Add(r3.Scale(p.X, f.U), r3.Scale(p.Y, f.V)))
}

// Lift maps a polygon to world space at height h along the normal.
func (f Frame) Lift(pts []r2.Vec, h float64) []r3.Vec {
	off := r3.Scale(h, f.Normal)
	out := make([]r3.Vec, len(pts))
	for i, p := range pts {
		out[i] = r3.Add(f.Point(p), off)
	}
	return out
}

// Shift returns the frame moved by d along its normal.
func (f Frame) Shift(d float64) Frame {
	f.Origin = r3.Add(f.Origin, r3.Scale(d, f.Normal))
	return f
}

// FrameOnFace builds a frame whose normal is n, centered at origin. The
// in-plane axes follow the world axes where possible so a face facing +Z
// gets the XY frame.
func FrameOnFace(origin, n r3.Vec) Frame {
	n = r3.Unit(n)
	var u r3.Vec
	if math.Abs(n.Z) > 0.9 {
		x := r3.Vec{X: 1}
		u = r3.Unit(r3.Sub(x, r3.Scale(r3.Dot(x, n), n)))
	} else {
		u = r3.Unit(r3.Cross(r3.Vec{Z: 1}, n))
	}
	return Frame{Origin: origin, U: u, V: r3.Cross(n, u), Normal: n}
}

// FaceLocator resolves a face reference to its centroid and unit normal.
type FaceLocator func(ref feature.FaceRef) (centroid, normal r3.Vec, err error)

// ResolvePlane returns the world frame of a sketch plane. Face planes need
// a locator; a nil locator or a failed lookup yields ErrUnresolvedPlane.
func ResolvePlane(p feature.Plane, locate FaceLocator) (Frame, error) {
	switch p.Kind {
	case feature.PlaneXY:
		return frameXY, nil
	case feature.PlaneXZ:
		return frameXZ, nil
	case feature.PlaneYZ:
		return frameYZ, nil
	case feature.PlaneOffset:
		if p.Base == feature.PlaneOffset || p.Base == feature.PlaneFace {
			return Frame{}, fmt.Errorf("%w: offset plane needs a world base, got %s", ErrUnresolvedPlane, p.Base)
		}
		base, err := ResolvePlane(feature.Plane{Kind: p.Base}, nil)
		if err != nil {
			return Frame{}, err
		}
		return base.Shift(p.Offset), nil
	case feature.PlaneFace:
		if p.Face == nil {
			return Frame{}, fmt.Errorf("%w: face plane without a face reference", ErrUnresolvedPlane)
		}
		if locate == nil {
			return Frame{}, fmt.Errorf("%w: no face locator", ErrUnresolvedPlane)
		}
		c, n, err := locate(*p.Face)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrUnresolvedPlane, err)
		}
		if r3.Norm(n) < 1e-12 {
			return Frame{}, fmt.Errorf("%w: face has no normal", ErrUnresolvedPlane)
		}
		return FrameOnFace(c, n).Shift(p.Offset), nil
	}
	return Frame{}, fmt.Errorf("%w: unknown plane %s", ErrUnresolvedPlane, p.Kind)
}
