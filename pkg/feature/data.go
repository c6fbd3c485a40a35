package feature

import (
	"encoding/json"
	"slices"
)

// Data is the variant-specific payload of a Feature. The set of variants is
// closed; the evaluator switches over it exhaustively.
type Data interface {
	Kind() Kind
	// References returns the ids of earlier features this payload reads.
	References() []ID
	clone() Data
	featureData() // marker method restricting implementations to this package
}

// ---------------------------------------------------------------------------
// Sketch
// ---------------------------------------------------------------------------

// SketchData is a planar 2D sketch. It produces a profile, never 3D
// geometry.
type SketchData struct {
	Plane       Plane        `json:"plane"`
	Elements    []Element    `json:"elements,omitempty"`
	Constraints []Constraint `json:"constraints,omitempty"`
}

func (SketchData) featureData() {}
func (SketchData) Kind() Kind   { return KindSketch }

func (d SketchData) References() []ID {
	if d.Plane.Kind == PlaneFace && d.Plane.Face != nil && !d.Plane.Face.Feature.IsZero() {
		return []ID{d.Plane.Face.Feature}
	}
	return nil
}

func (d SketchData) clone() Data {
	out := d
	if d.Plane.Face != nil {
		f := *d.Plane.Face
		out.Plane.Face = &f
	}
	out.Elements = cloneElements(d.Elements)
	out.Constraints = cloneConstraints(d.Constraints)
	return out
}

// Element returns the element with the given id.
func (d SketchData) Element(id ElementID) (Element, bool) {
	for _, e := range d.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}

// ---------------------------------------------------------------------------
// Extrude
// ---------------------------------------------------------------------------

// ExtrudeData pushes a sketch profile along its plane normal.
type ExtrudeData struct {
	Sketch    ID        `json:"sketch"`
	Depth     float64   `json:"depth"`
	Operation Operation `json:"operation"`
	Symmetric bool      `json:"symmetric,omitempty"` // centered on the sketch plane
	Reverse   bool      `json:"reverse,omitempty"`   // extrude along -normal
}

func (ExtrudeData) featureData()       {}
func (ExtrudeData) Kind() Kind         { return KindExtrude }
func (d ExtrudeData) References() []ID { return refs(d.Sketch) }
func (d ExtrudeData) clone() Data      { return d }

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

// BooleanData combines two or more earlier bodies left to right.
type BooleanData struct {
	Op      BooleanOp `json:"op"`
	Targets []ID      `json:"targets"`
}

func (BooleanData) featureData()       {}
func (BooleanData) Kind() Kind         { return KindBoolean }
func (d BooleanData) References() []ID { return refs(d.Targets...) }

func (d BooleanData) clone() Data {
	d.Targets = slices.Clone(d.Targets)
	return d
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData applies a rigid or affine map to one body or assembly.
// Vector is the offset (translate), the rotation axis (rotate), the
// per-axis factors (scale) or the mirror plane normal (mirror). Angle is
// in degrees.
type TransformData struct {
	Target ID            `json:"target"`
	Type   TransformType `json:"type"`
	Vector Vec3          `json:"vector"`
	Angle  float64       `json:"angle,omitempty"`
}

func (TransformData) featureData()       {}
func (TransformData) Kind() Kind         { return KindTransform }
func (d TransformData) References() []ID { return refs(d.Target) }
func (d TransformData) clone() Data      { return d }

// ---------------------------------------------------------------------------
// Fillet / Chamfer / Shell
// ---------------------------------------------------------------------------

// FilletData rounds every sharp edge of the target. A zero Target means the
// accumulated solid.
type FilletData struct {
	Target   ID      `json:"target,omitempty"`
	Radius   float64 `json:"radius"`
	Segments int     `json:"segments,omitempty"` // zero uses the evaluator default
}

func (FilletData) featureData()       {}
func (FilletData) Kind() Kind         { return KindFillet }
func (d FilletData) References() []ID { return refs(d.Target) }
func (d FilletData) clone() Data      { return d }

// ChamferData bevels every sharp edge of the target.
type ChamferData struct {
	Target   ID      `json:"target,omitempty"`
	Distance float64 `json:"distance"`
}

func (ChamferData) featureData()       {}
func (ChamferData) Kind() Kind         { return KindChamfer }
func (d ChamferData) References() []ID { return refs(d.Target) }
func (d ChamferData) clone() Data      { return d }

// ShellData hollows the target, leaving walls of the given thickness and
// removing the faces matched by OpenFaces.
type ShellData struct {
	Target    ID        `json:"target,omitempty"`
	Thickness float64   `json:"thickness"`
	OpenFaces []FaceRef `json:"open_faces,omitempty"`
}

func (ShellData) featureData()       {}
func (ShellData) Kind() Kind         { return KindShell }
func (d ShellData) References() []ID { return refs(d.Target) }

func (d ShellData) clone() Data {
	d.OpenFaces = slices.Clone(d.OpenFaces)
	return d
}

// ---------------------------------------------------------------------------
// Pattern
// ---------------------------------------------------------------------------

// PatternData replicates the target.
//
//	linear:   Count copies, k*Spacing along Direction
//	circular: Count copies about Axis through the origin over TotalAngle
//	mirror:   the original plus a reflection across the plane with Normal
type PatternData struct {
	Target         ID             `json:"target,omitempty"`
	Type           PatternType    `json:"type"`
	Count          int            `json:"count,omitempty"`
	Spacing        float64        `json:"spacing,omitempty"`
	Direction      Vec3           `json:"direction"`
	Axis           Vec3           `json:"axis"`
	TotalAngle     float64        `json:"total_angle,omitempty"` // degrees
	AngularSpacing AngularSpacing `json:"angular_spacing"`
	Normal         Vec3           `json:"normal"`
}

func (PatternData) featureData()       {}
func (PatternData) Kind() Kind         { return KindPattern }
func (d PatternData) References() []ID { return refs(d.Target) }
func (d PatternData) clone() Data      { return d }

// ---------------------------------------------------------------------------
// Sweep / Loft
// ---------------------------------------------------------------------------

// SweepData drags a profile along a polyline path. Twist is in degrees at
// the end of the path; ScaleEnd is the profile scale there (zero means 1).
type SweepData struct {
	Profile   ID        `json:"profile"`
	Path      []Vec3    `json:"path"`
	Twist     float64   `json:"twist,omitempty"`
	ScaleEnd  float64   `json:"scale_end,omitempty"`
	Operation Operation `json:"operation"`
}

func (SweepData) featureData()       {}
func (SweepData) Kind() Kind         { return KindSweep }
func (d SweepData) References() []ID { return refs(d.Profile) }

func (d SweepData) clone() Data {
	d.Path = slices.Clone(d.Path)
	return d
}

// LoftData blends between profiles stacked at Heights.
type LoftData struct {
	Profiles  []ID      `json:"profiles"`
	Heights   []float64 `json:"heights"`
	Slices    int       `json:"slices,omitempty"` // per profile pair; zero uses the default
	Operation Operation `json:"operation"`
}

func (LoftData) featureData()       {}
func (LoftData) Kind() Kind         { return KindLoft }
func (d LoftData) References() []ID { return refs(d.Profiles...) }

func (d LoftData) clone() Data {
	d.Profiles = slices.Clone(d.Profiles)
	d.Heights = slices.Clone(d.Heights)
	return d
}

// ---------------------------------------------------------------------------
// Assembly
// ---------------------------------------------------------------------------

// AssemblyData groups bodies for display and transform-as-one. It never
// produces geometry.
type AssemblyData struct {
	Members []ID `json:"members"`
}

func (AssemblyData) featureData()       {}
func (AssemblyData) Kind() Kind         { return KindAssembly }
func (d AssemblyData) References() []ID { return refs(d.Members...) }

func (d AssemblyData) clone() Data {
	d.Members = slices.Clone(d.Members)
	return d
}

// ---------------------------------------------------------------------------
// Unknown
// ---------------------------------------------------------------------------

// UnknownData holds a feature whose type this version does not recognize.
// Its params are kept verbatim so the document re-encodes unchanged.
type UnknownData struct {
	Type string          `json:"-"`
	Raw  json.RawMessage `json:"-"`
}

func (UnknownData) featureData()     {}
func (UnknownData) Kind() Kind       { return KindUnknown }
func (UnknownData) References() []ID { return nil }

func (d UnknownData) clone() Data {
	d.Raw = slices.Clone(d.Raw)
	return d
}

// refs drops zero ids.
func refs(ids ...ID) []ID {
	var out []ID
	for _, id := range ids {
		if !id.IsZero() {
			out = append(out, id)
		}
	}
	return out
}
