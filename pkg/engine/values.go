package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

// ---------------------------------------------------------------------------
// Script values
// ---------------------------------------------------------------------------

// sexpFeature is returned by every feature builtin and names the feature
// in later calls.
type sexpFeature struct {
	id   feature.ID
	kind feature.Kind
}

func (f *sexpFeature) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", f.kind, f.id)
}
func (f *sexpFeature) Type() *zygo.RegisteredType { return nil }

type sexpElement struct {
	el feature.Element
}

func (e *sexpElement) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q %v)", e.el.Kind, e.el.ID, e.el.Params)
}
func (e *sexpElement) Type() *zygo.RegisteredType { return nil }

type sexpConstraint struct {
	c feature.Constraint
}

func (c *sexpConstraint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %v)", c.c.Kind, c.c.ElementRefs())
}
func (c *sexpConstraint) Type() *zygo.RegisteredType { return nil }

type sexpPoint struct {
	ref feature.PointRef
}

func (p *sexpPoint) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(point %q :%s)", p.ref.Element, p.ref.Role)
}
func (p *sexpPoint) Type() *zygo.RegisteredType { return nil }

type sexpPlane struct {
	plane feature.Plane
}

func (p *sexpPlane) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(plane :%s)", p.plane.Kind)
}
func (p *sexpPlane) Type() *zygo.RegisteredType { return nil }

type sexpFace struct {
	ref feature.FaceRef
}

func (f *sexpFace) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(face %q)", f.ref.Feature)
}
func (f *sexpFace) Type() *zygo.RegisteredType { return nil }

type sexpVec2 struct {
	vec feature.Vec2
}

func (v *sexpVec2) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec2 %g %g)", v.vec.X, v.vec.Y)
}
func (v *sexpVec2) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec feature.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs splits a call's arguments into keyword and positional parts.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs pairs each keyword with the argument after it. A trailing
// keyword gets SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	pa := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			pa.positional = append(pa.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			pa.kw[name] = args[i+1]
			i++
		} else {
			pa.kw[name] = zygo.SexpNull
		}
	}
	return pa
}

// num reads keyword name as a number, leaving dst alone when absent.
func (pa kwArgs) num(name string, dst *float64) error {
	v, ok := pa.kw[name]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = f
	return nil
}

func (pa kwArgs) count(name string, dst *int) error {
	v, ok := pa.kw[name]
	if !ok {
		return nil
	}
	n, err := toInt(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func (pa kwArgs) flag(name string, dst *bool) error {
	v, ok := pa.kw[name]
	if !ok {
		return nil
	}
	b, err := toBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

func (pa kwArgs) vec(name string, dst *feature.Vec3) error {
	v, ok := pa.kw[name]
	if !ok {
		return nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = vec
	return nil
}

// target reads :target. Absent means the accumulated solid.
func (pa kwArgs) target(dst *feature.ID) error {
	v, ok := pa.kw["target"]
	if !ok {
		return nil
	}
	id, err := toFeatureRef(v)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	*dst = id
	return nil
}

// operation reads :op (:add or :subtract).
func (pa kwArgs) operation(dst *feature.Operation) error {
	v, ok := pa.kw["op"]
	if !ok {
		return nil
	}
	name, err := toKeywordString(v)
	if err != nil {
		return fmt.Errorf("op: %w", err)
	}
	if err := dst.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("op: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == float64(int(v.Val)) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		// A bare trailing keyword is a flag.
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString accepts a preprocessed keyword (:xy) or a plain string.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toFeatureRef accepts a feature value or its id as a string.
func toFeatureRef(s zygo.Sexp) (feature.ID, error) {
	switch v := s.(type) {
	case *sexpFeature:
		return v.id, nil
	case *zygo.SexpStr:
		if _, kw := isKW(v); !kw {
			return feature.ID(v.S), nil
		}
	}
	return "", fmt.Errorf("expected feature, got %T (%s)", s, s.SexpString(nil))
}

func toFeatureRefs(args []zygo.Sexp) ([]feature.ID, error) {
	ids := make([]feature.ID, 0, len(args))
	for i, a := range args {
		id, err := toFeatureRef(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// toElementID accepts an element value or its id as a string.
func toElementID(s zygo.Sexp) (feature.ElementID, error) {
	switch v := s.(type) {
	case *sexpElement:
		return v.el.ID, nil
	case *zygo.SexpStr:
		return feature.ElementID(strings.TrimPrefix(v.S, kwPrefix)), nil
	}
	return "", fmt.Errorf("expected sketch element, got %T (%s)", s, s.SexpString(nil))
}

func toVec2(s zygo.Sexp) (feature.Vec2, error) {
	if v, ok := s.(*sexpVec2); ok {
		return v.vec, nil
	}
	return feature.Vec2{}, fmt.Errorf("expected vec2, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (feature.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return feature.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toFace(s zygo.Sexp) (feature.FaceRef, error) {
	if f, ok := s.(*sexpFace); ok {
		return f.ref, nil
	}
	return feature.FaceRef{}, fmt.Errorf("expected face, got %T (%s)", s, s.SexpString(nil))
}

// toPlane accepts :xy, :xz, :yz or a value from offset-plane / face-plane.
func toPlane(s zygo.Sexp) (feature.Plane, error) {
	if p, ok := s.(*sexpPlane); ok {
		return p.plane, nil
	}
	name, err := toKeywordString(s)
	if err != nil {
		return feature.Plane{}, err
	}
	var kind feature.PlaneKind
	if err := kind.UnmarshalText([]byte(name)); err != nil {
		return feature.Plane{}, err
	}
	if kind == feature.PlaneOffset || kind == feature.PlaneFace {
		return feature.Plane{}, fmt.Errorf("use offset-plane or face-plane for %s planes", kind)
	}
	return feature.Plane{Kind: kind}, nil
}

// sexpListToSlice converts a list or array to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// flatten expands nested lists and arrays into one argument slice.
func flatten(args []zygo.Sexp) []zygo.Sexp {
	var out []zygo.Sexp
	for _, a := range args {
		switch a.(type) {
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(a)
			if err == nil {
				out = append(out, flatten(items)...)
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func toFloats(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, it := range items {
		if out[i], err = toFloat64(it); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	return out, nil
}
