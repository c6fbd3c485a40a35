package feature

import (
	"fmt"

	"github.com/samber/lo"
)

// Enumerations are stored as ints and serialized by name. Each enum keeps
// its names in a slice indexed by value.

func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return "unknown"
	}
	return names[v]
}

func parseEnum(names []string, what, s string) (int, error) {
	i := lo.IndexOf(names, s)
	if i < 0 {
		return 0, fmt.Errorf("feature: unknown %s %q", what, s)
	}
	return i, nil
}

func marshalEnum(names []string, what string, v int) ([]byte, error) {
	if v < 0 || v >= len(names) {
		return nil, fmt.Errorf("feature: invalid %s %d", what, v)
	}
	return []byte(names[v]), nil
}

// ---------------------------------------------------------------------------
// Kind
// ---------------------------------------------------------------------------

// Kind enumerates the feature variants.
type Kind int

const (
	KindSketch Kind = iota
	KindExtrude
	KindBoolean
	KindTransform
	KindFillet
	KindChamfer
	KindShell
	KindPattern
	KindSweep
	KindLoft
	KindAssembly
	KindUnknown
)

var kindNames = []string{
	"sketch", "extrude", "boolean", "transform", "fillet", "chamfer",
	"shell", "pattern", "sweep", "loft", "assembly", "unknown",
}

func (k Kind) String() string { return enumName(kindNames, int(k)) }

// ParseKind converts a document type name to a Kind. Unrecognized names
// return KindUnknown and an error.
func ParseKind(s string) (Kind, error) {
	i, err := parseEnum(kindNames[:KindUnknown], "feature type", s)
	if err != nil {
		return KindUnknown, err
	}
	return Kind(i), nil
}

// ---------------------------------------------------------------------------
// Operation
// ---------------------------------------------------------------------------

// Operation says whether a body-producing feature adds to or subtracts
// from the accumulator.
type Operation int

const (
	OpAdd Operation = iota
	OpSubtract
)

var operationNames = []string{"add", "subtract"}

func (o Operation) String() string { return enumName(operationNames, int(o)) }

func (o Operation) MarshalText() ([]byte, error) {
	return marshalEnum(operationNames, "operation", int(o))
}

func (o *Operation) UnmarshalText(b []byte) error {
	v, err := parseEnum(operationNames, "operation", string(b))
	*o = Operation(v)
	return err
}

// ---------------------------------------------------------------------------
// BooleanOp
// ---------------------------------------------------------------------------

// BooleanOp is the operator of a Boolean feature.
type BooleanOp int

const (
	BoolUnion BooleanOp = iota
	BoolDifference
	BoolIntersection
)

var booleanOpNames = []string{"union", "difference", "intersection"}

func (o BooleanOp) String() string { return enumName(booleanOpNames, int(o)) }

func (o BooleanOp) MarshalText() ([]byte, error) {
	return marshalEnum(booleanOpNames, "boolean op", int(o))
}

func (o *BooleanOp) UnmarshalText(b []byte) error {
	v, err := parseEnum(booleanOpNames, "boolean op", string(b))
	*o = BooleanOp(v)
	return err
}

// ---------------------------------------------------------------------------
// TransformType
// ---------------------------------------------------------------------------

// TransformType selects the affine map of a Transform feature.
type TransformType int

const (
	TransformTranslate TransformType = iota
	TransformRotate
	TransformScale
	TransformMirror
)

var transformTypeNames = []string{"translate", "rotate", "scale", "mirror"}

func (t TransformType) String() string { return enumName(transformTypeNames, int(t)) }

func (t TransformType) MarshalText() ([]byte, error) {
	return marshalEnum(transformTypeNames, "transform type", int(t))
}

func (t *TransformType) UnmarshalText(b []byte) error {
	v, err := parseEnum(transformTypeNames, "transform type", string(b))
	*t = TransformType(v)
	return err
}

// ---------------------------------------------------------------------------
// PatternType / AngularSpacing
// ---------------------------------------------------------------------------

// PatternType selects how a Pattern feature replicates its target.
type PatternType int

const (
	PatternLinear PatternType = iota
	PatternCircular
	PatternMirror
)

var patternTypeNames = []string{"linear", "circular", "mirror"}

func (p PatternType) String() string { return enumName(patternTypeNames, int(p)) }

func (p PatternType) MarshalText() ([]byte, error) {
	return marshalEnum(patternTypeNames, "pattern type", int(p))
}

func (p *PatternType) UnmarshalText(b []byte) error {
	v, err := parseEnum(patternTypeNames, "pattern type", string(b))
	*p = PatternType(v)
	return err
}

// AngularSpacing is the equal-spacing policy of a circular pattern.
//
//	auto:  a full turn divides by N, a partial sweep by N-1
//	count: always TotalAngle/N
//	gaps:  always TotalAngle/(N-1), so the last copy lands on TotalAngle
type AngularSpacing int

const (
	SpacingAuto AngularSpacing = iota
	SpacingCount
	SpacingGaps
)

var angularSpacingNames = []string{"auto", "count", "gaps"}

func (s AngularSpacing) String() string { return enumName(angularSpacingNames, int(s)) }

func (s AngularSpacing) MarshalText() ([]byte, error) {
	return marshalEnum(angularSpacingNames, "angular spacing", int(s))
}

func (s *AngularSpacing) UnmarshalText(b []byte) error {
	v, err := parseEnum(angularSpacingNames, "angular spacing", string(b))
	*s = AngularSpacing(v)
	return err
}

// ---------------------------------------------------------------------------
// PlaneKind
// ---------------------------------------------------------------------------

// PlaneKind selects a sketch plane.
type PlaneKind int

const (
	PlaneXY PlaneKind = iota
	PlaneXZ
	PlaneYZ
	PlaneOffset
	PlaneFace
)

var planeKindNames = []string{"xy", "xz", "yz", "offset", "face"}

func (p PlaneKind) String() string { return enumName(planeKindNames, int(p)) }

func (p PlaneKind) MarshalText() ([]byte, error) {
	return marshalEnum(planeKindNames, "plane", int(p))
}

func (p *PlaneKind) UnmarshalText(b []byte) error {
	v, err := parseEnum(planeKindNames, "plane", string(b))
	*p = PlaneKind(v)
	return err
}

// ---------------------------------------------------------------------------
// ElementKind
// ---------------------------------------------------------------------------

// ElementKind enumerates sketch elements.
type ElementKind int

const (
	ElementRect ElementKind = iota
	ElementCircle
	ElementLine
	ElementArc
)

var elementKindNames = []string{"rect", "circle", "line", "arc"}

var elementParamCounts = []int{4, 3, 4, 5}

func (k ElementKind) String() string { return enumName(elementKindNames, int(k)) }

// ParamCount returns the number of raw numeric parameters of the kind.
func (k ElementKind) ParamCount() int {
	if k < 0 || int(k) >= len(elementParamCounts) {
		return 0
	}
	return elementParamCounts[k]
}

func (k ElementKind) MarshalText() ([]byte, error) {
	return marshalEnum(elementKindNames, "element kind", int(k))
}

func (k *ElementKind) UnmarshalText(b []byte) error {
	v, err := parseEnum(elementKindNames, "element kind", string(b))
	*k = ElementKind(v)
	return err
}

// ---------------------------------------------------------------------------
// ConstraintKind
// ---------------------------------------------------------------------------

// ConstraintKind enumerates sketch constraints.
type ConstraintKind int

const (
	ConstraintCoincident ConstraintKind = iota
	ConstraintHorizontal
	ConstraintVertical
	ConstraintParallel
	ConstraintPerpendicular
	ConstraintEqual
	ConstraintConcentric
	ConstraintFixedPoint
	ConstraintDistance
	ConstraintRadius
)

var constraintKindNames = []string{
	"coincident", "horizontal", "vertical", "parallel", "perpendicular",
	"equal", "concentric", "fixed-point", "distance", "radius",
}

func (k ConstraintKind) String() string { return enumName(constraintKindNames, int(k)) }

// Dimensional reports whether the constraint carries a numeric Value.
func (k ConstraintKind) Dimensional() bool {
	return k == ConstraintDistance || k == ConstraintRadius
}

func (k ConstraintKind) MarshalText() ([]byte, error) {
	return marshalEnum(constraintKindNames, "constraint kind", int(k))
}

func (k *ConstraintKind) UnmarshalText(b []byte) error {
	v, err := parseEnum(constraintKindNames, "constraint kind", string(b))
	*k = ConstraintKind(v)
	return err
}

// ---------------------------------------------------------------------------
// PointRole
// ---------------------------------------------------------------------------

// PointRole names a characteristic point of a sketch element.
type PointRole int

const (
	RoleStart PointRole = iota
	RoleEnd
	RoleCenter
	RoleCorner0
	RoleCorner1
	RoleCorner2
	RoleCorner3
)

var pointRoleNames = []string{"start", "end", "center", "corner0", "corner1", "corner2", "corner3"}

func (r PointRole) String() string { return enumName(pointRoleNames, int(r)) }

func (r PointRole) MarshalText() ([]byte, error) {
	return marshalEnum(pointRoleNames, "point role", int(r))
}

func (r *PointRole) UnmarshalText(b []byte) error {
	v, err := parseEnum(pointRoleNames, "point role", string(b))
	*r = PointRole(v)
	return err
}
