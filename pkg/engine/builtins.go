package engine

import (
	"fmt"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

// builder accumulates the feature tree a script declares. Ids default to
// "<kind>-<n>" in declaration order, so running the same script twice
// yields the same ids.
type builder struct {
	tree     feature.Tree
	features map[feature.Kind]int
	elements map[feature.ElementKind]int
}

func newBuilder() *builder {
	return &builder{
		features: make(map[feature.Kind]int),
		elements: make(map[feature.ElementKind]int),
	}
}

// add appends a feature carrying data, honoring :id and :name.
func (b *builder) add(pa kwArgs, data feature.Data) (zygo.Sexp, error) {
	kind := data.Kind()
	b.features[kind]++
	id := feature.ID(fmt.Sprintf("%s-%d", kind, b.features[kind]))
	if v, ok := pa.kw["id"]; ok {
		s, err := toString(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("id: %w", err)
		}
		id = feature.ID(s)
	}
	name := string(id)
	if v, ok := pa.kw["name"]; ok {
		s, err := toString(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("name: %w", err)
		}
		name = s
	}
	t, err := b.tree.Append(feature.Feature{ID: id, Name: name, Data: data})
	if err != nil {
		return zygo.SexpNull, err
	}
	b.tree = t
	return &sexpFeature{id: id, kind: kind}, nil
}

// element builds a sketch element from n positional numbers.
func (b *builder) element(kind feature.ElementKind, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	n := kind.ParamCount()
	if len(pa.positional) != n {
		return zygo.SexpNull, fmt.Errorf("requires %d numbers, got %d", n, len(pa.positional))
	}
	params := make([]float64, n)
	for i, a := range pa.positional {
		f, err := toFloat64(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("argument %d: %w", i+1, err)
		}
		params[i] = f
	}
	b.elements[kind]++
	id := feature.ElementID(fmt.Sprintf("%s-%d", kind, b.elements[kind]))
	if v, ok := pa.kw["id"]; ok {
		s, err := toString(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("id: %w", err)
		}
		id = feature.ElementID(s)
	}
	return &sexpElement{el: feature.Element{ID: id, Kind: kind, Params: params}}, nil
}

// constraint collects a constraint from its arguments by type: elements
// and element ids, points, a vec2 target and a number value.
func constraint(kind feature.ConstraintKind, args []zygo.Sexp) (zygo.Sexp, error) {
	c := feature.Constraint{Kind: kind}
	hasValue := false
	for i, a := range args {
		switch v := a.(type) {
		case *sexpPoint:
			c.Points = append(c.Points, v.ref)
		case *sexpVec2:
			target := v.vec
			c.Target = &target
		case *zygo.SexpInt, *zygo.SexpFloat:
			f, _ := toFloat64(v)
			c.Value = f
			hasValue = true
		default:
			id, err := toElementID(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("argument %d: %w", i+1, err)
			}
			c.Elements = append(c.Elements, id)
		}
	}
	if kind.Dimensional() && !hasValue {
		return zygo.SexpNull, fmt.Errorf("requires a value")
	}
	if kind == feature.ConstraintFixedPoint && c.Target == nil {
		return zygo.SexpNull, fmt.Errorf("requires a vec2 target")
	}
	return &sexpConstraint{c: c}, nil
}

var constraintBuiltins = map[string]feature.ConstraintKind{
	"coincident":    feature.ConstraintCoincident,
	"horizontal":    feature.ConstraintHorizontal,
	"vertical":      feature.ConstraintVertical,
	"parallel":      feature.ConstraintParallel,
	"perpendicular": feature.ConstraintPerpendicular,
	"equal":         feature.ConstraintEqual,
	"concentric":    feature.ConstraintConcentric,
	"fixed":         feature.ConstraintFixedPoint,
	"distance":      feature.ConstraintDistance,
	"radius":        feature.ConstraintRadius,
}

var elementBuiltins = map[string]feature.ElementKind{
	"rect":   feature.ElementRect,
	"circle": feature.ElementCircle,
	"line":   feature.ElementLine,
	"arc":    feature.ElementArc,
}

var booleanBuiltins = map[string]feature.BooleanOp{
	"union":        feature.BoolUnion,
	"difference":   feature.BoolDifference,
	"intersection": feature.BoolIntersection,
}

var transformBuiltins = map[string]feature.TransformType{
	"translate": feature.TransformTranslate,
	"rotate":    feature.TransformRotate,
	"scale":     feature.TransformScale,
	"mirror":    feature.TransformMirror,
}

// builtin adapts a handler to zygomys and prefixes its errors with the
// script-facing name. Names are registered in snake_case; preprocessSource
// rewrites the kebab-case spelling scripts use.
func builtin(name string, fn func(args []zygo.Sexp) (zygo.Sexp, error)) (string, func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error)) {
	return snake(name), func(_ *zygo.Zlisp, _ string, args []zygo.Sexp) (zygo.Sexp, error) {
		out, err := fn(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
		}
		return out, nil
	}
}

func snake(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}

// registerBuiltins installs the modeling builtins. Each feature builtin
// appends to b and returns a feature value later calls can reference.
// Source must go through preprocessSource first.
func registerBuiltins(env *zygo.Zlisp, b *builder) {
	add := func(name string, fn func(args []zygo.Sexp) (zygo.Sexp, error)) {
		env.AddFunction(builtin(name, fn))
	}

	// (vec2 x y), (vec3 x y z)
	add("vec2", func(args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := numbers(args, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec2{vec: feature.Vec2{X: v[0], Y: v[1]}}, nil
	})
	add("vec3", func(args []zygo.Sexp) (zygo.Sexp, error) {
		v, err := numbers(args, 3)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: feature.Vec3{X: v[0], Y: v[1], Z: v[2]}}, nil
	})

	// (rect x y w h :id "r") (circle cx cy r) (line x1 y1 x2 y2)
	// (arc cx cy r start end)
	for name, kind := range elementBuiltins {
		add(name, func(args []zygo.Sexp) (zygo.Sexp, error) {
			return b.element(kind, args)
		})
	}

	// (point el :start)
	add("point", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("requires an element and a role, got %d arguments", len(args))
		}
		id, err := toElementID(args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		name, err := toKeywordString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("role: %w", err)
		}
		var role feature.PointRole
		if err := role.UnmarshalText([]byte(name)); err != nil {
			return zygo.SexpNull, fmt.Errorf("role: %w", err)
		}
		return &sexpPoint{ref: feature.PointRef{Element: id, Role: role}}, nil
	})

	// (horizontal line) (distance (point a :start) (point b :end) 10) ...
	for name, kind := range constraintBuiltins {
		add(name, func(args []zygo.Sexp) (zygo.Sexp, error) {
			return constraint(kind, args)
		})
	}

	// (offset-plane :xy 5)
	add("offset-plane", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("requires a base plane and an offset")
		}
		base, err := toPlane(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("base: %w", err)
		}
		d, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("offset: %w", err)
		}
		return &sexpPlane{plane: feature.Plane{Kind: feature.PlaneOffset, Base: base.Kind, Offset: d}}, nil
	})

	// (face body (vec3 cx cy cz) (vec3 nx ny nz))
	add("face", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("requires a feature, a centroid and a normal")
		}
		id, err := toFeatureRef(args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		c, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("centroid: %w", err)
		}
		n, err := toVec3(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("normal: %w", err)
		}
		return &sexpFace{ref: feature.FaceRef{Feature: id, Centroid: c, Normal: n}}, nil
	})

	// (face-plane (face ...) :offset 2)
	add("face-plane", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("requires one face")
		}
		ref, err := toFace(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		p := feature.Plane{Kind: feature.PlaneFace, Face: &ref}
		if err := pa.num("offset", &p.Offset); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpPlane{plane: p}, nil
	})

	// (sketch :plane :xy (rect 0 0 10 10) (horizontal ...) ...)
	add("sketch", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		d := feature.SketchData{Plane: feature.Plane{Kind: feature.PlaneXY}}
		if v, ok := pa.kw["plane"]; ok {
			p, err := toPlane(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("plane: %w", err)
			}
			d.Plane = p
		}
		for i, a := range flatten(pa.positional) {
			switch v := a.(type) {
			case *sexpElement:
				d.Elements = append(d.Elements, v.el)
			case *sexpConstraint:
				d.Constraints = append(d.Constraints, v.c)
			default:
				return zygo.SexpNull, fmt.Errorf("argument %d: expected element or constraint, got %T (%s)", i+1, a, a.SexpString(nil))
			}
		}
		return b.add(pa, d)
	})

	// (extrude s :depth 10 :op :subtract :symmetric true)
	add("extrude", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("requires one sketch")
		}
		id, err := toFeatureRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		d := feature.ExtrudeData{Sketch: id}
		if err := firstErr(
			pa.num("depth", &d.Depth),
			pa.operation(&d.Operation),
			pa.flag("symmetric", &d.Symmetric),
			pa.flag("reverse", &d.Reverse),
		); err != nil {
			return zygo.SexpNull, err
		}
		return b.add(pa, d)
	})

	// (union a b ...) (difference a b ...) (intersection a b ...)
	for name, op := range booleanBuiltins {
		add(name, func(args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			ids, err := toFeatureRefs(flatten(pa.positional))
			if err != nil {
				return zygo.SexpNull, err
			}
			return b.add(pa, feature.BooleanData{Op: op, Targets: ids})
		})
	}

	// (translate (vec3 1 0 0) :target body) (rotate (vec3 0 0 1) 90)
	// (scale (vec3 2 2 2)) (mirror (vec3 1 0 0))
	for name, typ := range transformBuiltins {
		add(name, func(args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			want := 1
			if typ == feature.TransformRotate {
				want = 2
			}
			if len(pa.positional) != want {
				return zygo.SexpNull, fmt.Errorf("requires %d positional arguments, got %d", want, len(pa.positional))
			}
			v, err := toVec3(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, err
			}
			d := feature.TransformData{Type: typ, Vector: v}
			if typ == feature.TransformRotate {
				if d.Angle, err = toFloat64(pa.positional[1]); err != nil {
					return zygo.SexpNull, fmt.Errorf("angle: %w", err)
				}
			}
			if err := pa.target(&d.Target); err != nil {
				return zygo.SexpNull, err
			}
			return b.add(pa, d)
		})
	}

	// (fillet :radius 1 :segments 4 :target body)
	add("fillet", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d feature.FilletData
		if err := firstErr(pa.num("radius", &d.Radius), pa.count("segments", &d.Segments), pa.target(&d.Target)); err != nil {
			return zygo.SexpNull, err
		}
		return b.add(pa, d)
	})

	// (chamfer :distance 1 :target body)
	add("chamfer", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d feature.ChamferData
		if err := firstErr(pa.num("distance", &d.Distance), pa.target(&d.Target)); err != nil {
			return zygo.SexpNull, err
		}
		return b.add(pa, d)
	})

	// (shell :thickness 1 :open (list (face ...)) :target body)
	add("shell", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var d feature.ShellData
		if err := firstErr(pa.num("thickness", &d.Thickness), pa.target(&d.Target)); err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["open"]; ok {
			for i, a := range flatten([]zygo.Sexp{v}) {
				ref, err := toFace(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("open %d: %w", i+1, err)
				}
				d.OpenFaces = append(d.OpenFaces, ref)
			}
		}
		return b.add(pa, d)
	})

	// (linear-pattern :count 3 :spacing 20 :direction (vec3 1 0 0))
	add("linear-pattern", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		d := feature.PatternData{Type: feature.PatternLinear}
		if err := firstErr(
			pa.count("count", &d.Count),
			pa.num("spacing", &d.Spacing),
			pa.vec("direction", &d.Direction),
			pa.target(&d.Target),
		); err != nil {
			return zygo.SexpNull, err
		}
		return b.add(pa, d)
	})

	// (circular-pattern :count 6 :axis (vec3 0 0 1) :angle 360 :spacing :gaps)
	add("circular-pattern", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		d := feature.PatternData{Type: feature.PatternCircular, Axis: feature.Vec3{Z: 1}}
		if err := firstErr(
			pa.count("count", &d.Count),
			pa.vec("axis", &d.Axis),
			pa.num("angle", &d.TotalAngle),
			pa.target(&d.Target),
		); err != nil {
			return zygo.SexpNull, err
		}
		if v, ok := pa.kw["spacing"]; ok {
			name, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("spacing: %w", err)
			}
			if err := d.AngularSpacing.UnmarshalText([]byte(name)); err != nil {
				return zygo.SexpNull, fmt.Errorf("spacing: %w", err)
			}
		}
		return b.add(pa, d)
	})

	// (mirror-pattern :normal (vec3 1 0 0))
	add("mirror-pattern", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		d := feature.PatternData{Type: feature.PatternMirror}
		if err := firstErr(pa.vec("normal", &d.Normal), pa.target(&d.Target)); err != nil {
			return zygo.SexpNull, err
		}
		return b.add(pa, d)
	})

	// (sweep s :path (list (vec3 0 0 0) (vec3 0 0 10)) :twist 90 :scale-end 0.5)
	add("sweep", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("requires one sketch")
		}
		id, err := toFeatureRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		d := feature.SweepData{Profile: id}
		if v, ok := pa.kw["path"]; ok {
			for i, a := range flatten([]zygo.Sexp{v}) {
				p, err := toVec3(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("path %d: %w", i+1, err)
				}
				d.Path = append(d.Path, p)
			}
		}
		if err := firstErr(
			pa.num("twist", &d.Twist),
			pa.num("scale-end", &d.ScaleEnd),
			pa.operation(&d.Operation),
		); err != nil {
			return zygo.SexpNull, err
		}
		return b.add(pa, d)
	})

	// (loft s1 s2 :heights (list 0 10) :slices 8)
	add("loft", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		ids, err := toFeatureRefs(flatten(pa.positional))
		if err != nil {
			return zygo.SexpNull, err
		}
		d := feature.LoftData{Profiles: ids}
		if v, ok := pa.kw["heights"]; ok {
			if d.Heights, err = toFloats(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("heights: %w", err)
			}
		}
		if err := firstErr(pa.count("slices", &d.Slices), pa.operation(&d.Operation)); err != nil {
			return zygo.SexpNull, err
		}
		return b.add(pa, d)
	})

	// (assembly "name" a b ...). A leading string is the display name.
	add("assembly", func(args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		members := flatten(pa.positional)
		if len(members) > 0 {
			if _, ok := members[0].(*zygo.SexpStr); ok {
				if _, named := pa.kw["name"]; !named {
					pa.kw["name"] = members[0]
				}
				members = members[1:]
			}
		}
		ids, err := toFeatureRefs(members)
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add(pa, feature.AssemblyData{Members: ids})
	})

	// (suppress f)
	add("suppress", func(args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("requires one feature")
		}
		id, err := toFeatureRef(args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		t, err := b.tree.SetSuppressed(id, true)
		if err != nil {
			return zygo.SexpNull, err
		}
		b.tree = t
		return args[0], nil
	})
}

// numbers reads exactly n numeric arguments.
func numbers(args []zygo.Sexp, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("requires exactly %d numbers, got %d", n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
