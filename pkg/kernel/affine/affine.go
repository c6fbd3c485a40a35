// Package affine applies translate, rotate, scale and mirror maps to
// meshes using the github.com/deadsy/sdfx matrix types.
package affine

import (
	"errors"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

// ErrSingular is returned for maps that collapse space (zero scale, zero
// mirror normal).
var ErrSingular = errors.New("affine: singular transform")

const eps = 1e-12

// Transform pairs the position matrix with the matrix applied to normals
// (the inverse transpose of its linear part).
type Transform struct {
	pos sdf.M44
	nrm sdf.M44
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{pos: sdf.Identity3d(), nrm: sdf.Identity3d()}
}

// Translate moves by v.
func Translate(v r3.Vec) Transform {
	return Transform{pos: sdf.Translate3d(vec(v)), nrm: sdf.Identity3d()}
}

// Rotate turns by deg degrees about axis through the origin, right-handed.
// A zero axis yields the identity.
func Rotate(axis r3.Vec, deg float64) Transform {
	if r3.Norm(axis) < eps {
		return Identity()
	}
	m := sdf.Rotate3d(vec(r3.Unit(axis)), deg*math.Pi/180)
	return Transform{pos: m, nrm: m}
}

// Scale multiplies each axis by the matching component of s.
func Scale(s r3.Vec) (Transform, error) {
	if math.Abs(s.X) < eps || math.Abs(s.Y) < eps || math.Abs(s.Z) < eps {
		return Identity(), ErrSingular
	}
	return Transform{
		pos: sdf.Scale3d(vec(s)),
		nrm: sdf.Scale3d(v3.Vec{X: 1 / s.X, Y: 1 / s.Y, Z: 1 / s.Z}),
	}, nil
}

// Mirror reflects across the plane through the origin with the given
// normal.
func Mirror(normal r3.Vec) (Transform, error) {
	if r3.Norm(normal) < eps {
		return Identity(), ErrSingular
	}
	n := r3.Unit(normal)
	z := r3.Vec{Z: 1}
	// Rotate n onto +Z, mirror across XY, rotate back.
	var toZ, fromZ sdf.M44
	axis := r3.Cross(n, z)
	if r3.Norm(axis) < eps {
		toZ, fromZ = sdf.Identity3d(), sdf.Identity3d()
	} else {
		angle := math.Acos(math.Max(-1, math.Min(1, r3.Dot(n, z))))
		toZ = sdf.Rotate3d(vec(r3.Unit(axis)), angle)
		fromZ = sdf.Rotate3d(vec(r3.Unit(axis)), -angle)
	}
	m := fromZ.Mul(sdf.MirrorXY()).Mul(toZ)
	return Transform{pos: m, nrm: m}, nil
}

// Then returns the transform that applies t first and u second.
func (t Transform) Then(u Transform) Transform {
	return Transform{pos: u.pos.Mul(t.pos), nrm: u.nrm.Mul(t.nrm)}
}

// Point maps a position.
func (t Transform) Point(p r3.Vec) r3.Vec {
	return fromVec(t.pos.MulPosition(vec(p)))
}

// Normal maps a unit normal and renormalizes it.
func (t Transform) Normal(n r3.Vec) r3.Vec {
	m := fromVec(t.nrm.MulPosition(vec(n)))
	if r3.Norm(m) < eps {
		return m
	}
	return r3.Unit(m)
}

// Det returns the determinant of the linear part.
func (t Transform) Det() float64 {
	o := t.Point(r3.Vec{})
	ex := r3.Sub(t.Point(r3.Vec{X: 1}), o)
	ey := r3.Sub(t.Point(r3.Vec{Y: 1}), o)
	ez := r3.Sub(t.Point(r3.Vec{Z: 1}), o)
	return r3.Dot(r3.Cross(ex, ey), ez)
}

// Apply returns a transformed copy of m. Orientation-reversing maps swap
// each triangle's winding so faces keep pointing outward.
func (t Transform) Apply(m *kernel.Mesh) *kernel.Mesh {
	out := m.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = t.Point(v)
	}
	for i, n := range out.Normals {
		out.Normals[i] = t.Normal(n)
	}
	if t.Det() < 0 {
		for i := 0; i+2 < len(out.Indices); i += 3 {
			out.Indices[i+1], out.Indices[i+2] = out.Indices[i+2], out.Indices[i+1]
		}
	}
	return out
}

func vec(v r3.Vec) v3.Vec     { return v3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
func fromVec(v v3.Vec) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }
