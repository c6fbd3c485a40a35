package feature

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec2 is a 2D point in sketch-plane coordinates.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) R2() r2.Vec { return r2.Vec{X: v.X, Y: v.Y} }

// Vec3 is a 3D point or direction in world coordinates.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) R3() r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// V3 converts a gonum vector.
func V3(v r3.Vec) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// FaceRef identifies a face by geometry rather than triangle index so it
// can be re-resolved after re-tessellation.
type FaceRef struct {
	Feature  ID   `json:"feature"`
	Centroid Vec3 `json:"centroid"`
	Normal   Vec3 `json:"normal"`
}

// Plane describes where a sketch lives. Offset planes shift Base along its
// normal; face planes sit on a face of an earlier feature, shifted by
// Offset along the face normal.
type Plane struct {
	Kind   PlaneKind `json:"kind"`
	Base   PlaneKind `json:"base,omitempty"`
	Offset float64   `json:"offset,omitempty"`
	Face   *FaceRef  `json:"face,omitempty"`
}

// ---------------------------------------------------------------------------
// Elements
// ---------------------------------------------------------------------------

// Element is a sketch primitive. Params is the raw parameter vector the
// constraint solver works on:
//
//	rect:   x, y, width, height
//	circle: cx, cy, radius
//	line:   x1, y1, x2, y2
//	arc:    cx, cy, radius, start angle, end angle (degrees, CCW)
type Element struct {
	ID     ElementID   `json:"id"`
	Kind   ElementKind `json:"kind"`
	Params []float64   `json:"params"`
}

func Rect(id ElementID, x, y, w, h float64) Element {
	return Element{ID: id, Kind: ElementRect, Params: []float64{x, y, w, h}}
}

func Circle(id ElementID, cx, cy, r float64) Element {
	return Element{ID: id, Kind: ElementCircle, Params: []float64{cx, cy, r}}
}

func Line(id ElementID, x1, y1, x2, y2 float64) Element {
	return Element{ID: id, Kind: ElementLine, Params: []float64{x1, y1, x2, y2}}
}

func Arc(id ElementID, cx, cy, r, startDeg, endDeg float64) Element {
	return Element{ID: id, Kind: ElementArc, Params: []float64{cx, cy, r, startDeg, endDeg}}
}

// Valid reports whether Params has the length the kind requires.
func (e Element) Valid() bool {
	return len(e.Params) == e.Kind.ParamCount()
}

// Point returns the named characteristic point of the element.
func (e Element) Point(role PointRole) (Vec2, bool) {
	if !e.Valid() {
		return Vec2{}, false
	}
	return ElementPoint(e.Kind, e.Params, role)
}

// ElementPoint evaluates a characteristic point from a raw parameter slice.
// Rectangles number their corners CCW from (x, y); start and end alias
// corner0 and corner2.
func ElementPoint(kind ElementKind, p []float64, role PointRole) (Vec2, bool) {
	switch kind {
	case ElementRect:
		x, y, w, h := p[0], p[1], p[2], p[3]
		switch role {
		case RoleCorner0, RoleStart:
			return Vec2{x, y}, true
		case RoleCorner1:
			return Vec2{x + w, y}, true
		case RoleCorner2, RoleEnd:
			return Vec2{x + w, y + h}, true
		case RoleCorner3:
			return Vec2{x, y + h}, true
		case RoleCenter:
			return Vec2{x + w/2, y + h/2}, true
		}
	case ElementCircle:
		if role == RoleCenter {
			return Vec2{p[0], p[1]}, true
		}
	case ElementLine:
		switch role {
		case RoleStart:
			return Vec2{p[0], p[1]}, true
		case RoleEnd:
			return Vec2{p[2], p[3]}, true
		case RoleCenter:
			return Vec2{(p[0] + p[2]) / 2, (p[1] + p[3]) / 2}, true
		}
	case ElementArc:
		switch role {
		case RoleCenter:
			return Vec2{p[0], p[1]}, true
		case RoleStart:
			a := p[3] * math.Pi / 180
			return Vec2{p[0] + p[2]*math.Cos(a), p[1] + p[2]*math.Sin(a)}, true
		case RoleEnd:
			a := p[4] * math.Pi / 180
			return Vec2{p[0] + p[2]*math.Cos(a), p[1] + p[2]*math.Sin(a)}, true
		}
	}
	return Vec2{}, false
}

// ---------------------------------------------------------------------------
// Constraints
// ---------------------------------------------------------------------------

// PointRef names a characteristic point of an element.
type PointRef struct {
	Element ElementID `json:"element"`
	Role    PointRole `json:"role"`
}

// Constraint relates sketch elements or their points. Which of Elements
// and Points a kind reads:
//
//	coincident      Points[0], Points[1]
//	horizontal      Elements[0] (a line) or Points[0], Points[1]
//	vertical        Elements[0] (a line) or Points[0], Points[1]
//	parallel        Elements[0], Elements[1] (lines)
//	perpendicular   Elements[0], Elements[1] (lines)
//	equal           Elements[0], Elements[1] of the same kind
//	concentric      Elements[0], Elements[1] (circles, arcs)
//	fixed-point     Points[0] held at Target
//	distance        Points[0], Points[1], or Elements[0] (a line length)
//	radius          Elements[0] (circle, arc)
type Constraint struct {
	Kind     ConstraintKind `json:"kind"`
	Elements []ElementID    `json:"elements,omitempty"`
	Points   []PointRef     `json:"points,omitempty"`
	Value    float64        `json:"value,omitempty"`
	Target   *Vec2          `json:"target,omitempty"`
}

// ElementRefs returns every element the constraint mentions.
func (c Constraint) ElementRefs() []ElementID {
	refs := slices.Clone(c.Elements)
	for _, p := range c.Points {
		refs = append(refs, p.Element)
	}
	return refs
}

func cloneElements(els []Element) []Element {
	if els == nil {
		return nil
	}
	out := make([]Element, len(els))
	for i, e := range els {
		out[i] = Element{ID: e.ID, Kind: e.Kind, Params: slices.Clone(e.Params)}
	}
	return out
}

func cloneConstraints(cs []Constraint) []Constraint {
	if cs == nil {
		return nil
	}
	out := make([]Constraint, len(cs))
	for i, c := range cs {
		out[i] = c
		out[i].Elements = slices.Clone(c.Elements)
		out[i].Points = slices.Clone(c.Points)
		if c.Target != nil {
			t := *c.Target
			out[i].Target = &t
		}
	}
	return out
}
