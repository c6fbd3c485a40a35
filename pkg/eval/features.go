package eval

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel/affine"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/ops"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/topo"
)

func (e *evaluator) sketch(f feature.Feature, d feature.SketchData) error {
	var locate sketch.FaceLocator
	if d.Plane.Kind == feature.PlaneFace && d.Plane.Face != nil {
		m, err := e.body(d.Plane.Face.Feature)
		if err != nil {
			return err
		}
		locate = func(ref feature.FaceRef) (r3.Vec, r3.Vec, error) {
			face, err := topo.Resolve(m, ref)
			if err != nil {
				return r3.Vec{}, r3.Vec{}, err
			}
			return face.Centroid, face.Normal, nil
		}
	}
	frame, err := sketch.ResolvePlane(d.Plane, locate)
	if err != nil {
		return err
	}

	elements := d.Elements
	if len(d.Constraints) > 0 {
		sol := sketch.Solve(d.Elements, d.Constraints, e.opts.Solver)
		e.res.Solutions[f.ID] = sol
		if len(sol.Unresolved) > 0 {
			e.warn(f, FeatureError{
				Kind:    UnresolvedConstraint,
				Message: fmt.Sprintf("constraints %v reference unknown elements or points", sol.Unresolved),
			})
		}
		if !sol.Converged {
			e.warn(f, FeatureError{
				Kind:    SolverNotConverged,
				Message: fmt.Sprintf("solver stopped after %d iterations with residual %.3g", sol.Iterations, sol.Residual),
			})
		}
		elements = sol.Elements
	}
	p, err := sketch.Extract(elements, e.opts.CircleSegments)
	if err != nil {
		return err
	}
	e.res.Profiles[f.ID] = PlacedProfile{Profile: p, Frame: frame}
	return nil
}

func (e *evaluator) extrude(f feature.Feature, d feature.ExtrudeData) error {
	p, err := e.profile(d.Sketch)
	if err != nil {
		return err
	}
	span := ops.SpanForward
	switch {
	case d.Symmetric:
		span = ops.SpanSymmetric
	case d.Reverse:
		span = ops.SpanReverse
	}
	m, err := ops.Extrude(p.Profile, p.Frame, d.Depth, span)
	if err != nil {
		return err
	}
	e.res.Meshes[f.ID] = m
	e.contribute(f.ID, d.Operation, m)
	return nil
}

func (e *evaluator) boolean(f feature.Feature, d feature.BooleanData) error {
	if len(d.Targets) < 2 {
		return FeatureError{Kind: TooFewOperands, Message: fmt.Sprintf("boolean needs at least 2 targets, got %d", len(d.Targets))}
	}
	meshes := make([]*kernel.Mesh, len(d.Targets))
	for i, id := range d.Targets {
		m, err := e.body(id)
		if err != nil {
			return err
		}
		meshes[i] = m
	}
	var op kernel.Op
	switch d.Op {
	case feature.BoolUnion:
		op = kernel.OpUnion
	case feature.BoolDifference:
		op = kernel.OpDifference
	case feature.BoolIntersection:
		op = kernel.OpIntersection
	default:
		return FeatureError{Kind: Unsupported, Message: fmt.Sprintf("unknown boolean operator %s", d.Op)}
	}
	out := kernel.Perform(e.k, op, meshes)
	e.res.Meshes[f.ID] = out

	// The first target that fed the accumulator takes the result; the
	// other targets' slots are consumed by it.
	first := -1
	var drop []int
	for _, id := range d.Targets {
		i := e.slotOf(id)
		switch {
		case i < 0:
		case first < 0:
			first = i
		case i != first:
			drop = append(drop, i)
		}
	}
	if first < 0 {
		e.contribute(f.ID, feature.OpAdd, out)
		return nil
	}
	// The result is a positive body whatever the taken slot held before.
	e.slots[first].op = feature.OpAdd
	e.slots[first].mesh = out
	e.slots[first].ids = append(e.slots[first].ids, f.ID)
	kept := e.slots[:0]
	for i, s := range e.slots {
		if !slices.Contains(drop, i) {
			kept = append(kept, s)
		}
	}
	e.slots = kept
	e.rebuild()
	return nil
}

func (e *evaluator) transform(f feature.Feature, d feature.TransformData) error {
	t, err := transformOf(d)
	if err != nil {
		return err
	}
	if d.Target.IsZero() {
		e.collapse(f.ID, t.Apply(e.accumulated()))
		return nil
	}
	if members, ok := e.res.Assemblies[d.Target]; ok && !e.failed[d.Target] {
		// Resolve every member before touching any of them.
		bodies := make([]*kernel.Mesh, len(members))
		for i, id := range members {
			m, err := e.body(id)
			if err != nil {
				return err
			}
			bodies[i] = m
		}
		moved := make([]*kernel.Mesh, len(members))
		for i, id := range members {
			moved[i] = t.Apply(bodies[i])
			e.replace(id, id, moved[i])
		}
		e.res.Meshes[f.ID] = kernel.Merge(moved...)
		return nil
	}
	m, err := e.body(d.Target)
	if err != nil {
		return err
	}
	e.replace(d.Target, f.ID, t.Apply(m))
	return nil
}

// transformOf builds the affine map of a Transform feature.
func transformOf(d feature.TransformData) (affine.Transform, error) {
	v := d.Vector.R3()
	switch d.Type {
	case feature.TransformTranslate:
		return affine.Translate(v), nil
	case feature.TransformRotate:
		if r3.Norm(v) == 0 && d.Angle != 0 {
			return affine.Transform{}, fmt.Errorf("%w: rotation axis is zero", affine.ErrSingular)
		}
		return affine.Rotate(v, d.Angle), nil
	case feature.TransformScale:
		return affine.Scale(v)
	case feature.TransformMirror:
		return affine.Mirror(v)
	}
	return affine.Transform{}, FeatureError{Kind: Unsupported, Message: fmt.Sprintf("unknown transform type %s", d.Type)}
}

// modify applies fn to target, or to the accumulator when target is zero,
// and stores the result on behalf of f.
func (e *evaluator) modify(f feature.Feature, target feature.ID, fn func(*kernel.Mesh) (*kernel.Mesh, error)) error {
	if target.IsZero() {
		out, err := fn(e.accumulated())
		if err != nil {
			return err
		}
		e.collapse(f.ID, out)
		return nil
	}
	m, err := e.body(target)
	if err != nil {
		return err
	}
	out, err := fn(m)
	if err != nil {
		return err
	}
	e.replace(target, f.ID, out)
	return nil
}

func (e *evaluator) fillet(f feature.Feature, d feature.FilletData) error {
	segments := d.Segments
	if segments < 1 {
		segments = e.opts.FilletSegments
	}
	return e.modify(f, d.Target, func(m *kernel.Mesh) (*kernel.Mesh, error) {
		out, err := ops.Fillet(m, d.Radius, segments, e.opts.SharpAngle)
		e.unchanged(f, err)
		return out, nil
	})
}

func (e *evaluator) chamfer(f feature.Feature, d feature.ChamferData) error {
	return e.modify(f, d.Target, func(m *kernel.Mesh) (*kernel.Mesh, error) {
		out, err := ops.Chamfer(m, d.Distance, e.opts.SharpAngle)
		e.unchanged(f, err)
		return out, nil
	})
}

// unchanged records a modifier that could not process its input and passed
// it through.
func (e *evaluator) unchanged(f feature.Feature, err error) {
	if err == nil {
		return
	}
	e.warn(f, FeatureError{Kind: kindOf(err), Message: fmt.Sprintf("%s left the body unchanged: %v", f.Kind(), err), Err: err})
}

func (e *evaluator) shell(f feature.Feature, d feature.ShellData) error {
	return e.modify(f, d.Target, func(m *kernel.Mesh) (*kernel.Mesh, error) {
		open, errs := topo.Triangles(m, d.OpenFaces)
		for _, err := range errs {
			e.warn(f, FeatureError{Kind: MissingReference, Message: fmt.Sprintf("open face not found: %v", err), Err: err})
		}
		return ops.Shell(m, d.Thickness, open), nil
	})
}

func (e *evaluator) pattern(f feature.Feature, d feature.PatternData) error {
	return e.modify(f, d.Target, func(m *kernel.Mesh) (*kernel.Mesh, error) {
		switch d.Type {
		case feature.PatternLinear:
			if d.Count > 1 && d.Spacing != 0 {
				e.zeroVector(f, "direction", d.Direction.R3())
			}
			return ops.LinearPattern(m, d.Count, d.Spacing, d.Direction.R3()), nil
		case feature.PatternCircular:
			if d.Count > 1 {
				e.zeroVector(f, "axis", d.Axis.R3())
			}
			return ops.CircularPattern(m, d.Count, d.Axis.R3(), d.TotalAngle, angleStep(d.AngularSpacing)), nil
		case feature.PatternMirror:
			e.zeroVector(f, "normal", d.Normal.R3())
			return ops.MirrorPattern(m, d.Normal.R3()), nil
		}
		return nil, FeatureError{Kind: Unsupported, Message: fmt.Sprintf("unknown pattern type %s", d.Type)}
	})
}

// zeroVector warns that a pattern vector is zero and the pattern yields
// only the original body.
func (e *evaluator) zeroVector(f feature.Feature, name string, v r3.Vec) {
	if r3.Norm(v) >= 1e-12 {
		return
	}
	e.warn(f, FeatureError{Kind: InvalidDimensions, Message: fmt.Sprintf("pattern %s is zero; body left unchanged", name)})
}

func angleStep(s feature.AngularSpacing) ops.AngleStep {
	switch s {
	case feature.SpacingCount:
		return ops.StepCount
	case feature.SpacingGaps:
		return ops.StepGaps
	}
	return ops.StepAuto
}

func (e *evaluator) sweep(f feature.Feature, d feature.SweepData) error {
	p, err := e.profile(d.Profile)
	if err != nil {
		return err
	}
	path := make([]r3.Vec, len(d.Path))
	for i, v := range d.Path {
		path[i] = v.R3()
	}
	m, err := ops.Sweep(p.Profile, path, d.Twist, d.ScaleEnd)
	if err != nil {
		return err
	}
	e.res.Meshes[f.ID] = m
	e.contribute(f.ID, d.Operation, m)
	return nil
}

func (e *evaluator) loft(f feature.Feature, d feature.LoftData) error {
	outlines := make([][]r2.Vec, len(d.Profiles))
	var frame sketch.Frame
	for i, id := range d.Profiles {
		p, err := e.profile(id)
		if err != nil {
			return err
		}
		if i == 0 {
			frame = p.Frame
		}
		if len(p.Profile.Holes) > 0 {
			e.warn(f, FeatureError{Kind: Unsupported, Ref: id, Message: fmt.Sprintf("holes of sketch %s are ignored by loft", id.Short())})
		}
		outlines[i] = p.Profile.Outer
	}
	m, err := ops.Loft(frame, outlines, d.Heights, d.Slices)
	if err != nil {
		return err
	}
	e.res.Meshes[f.ID] = m
	e.contribute(f.ID, d.Operation, m)
	return nil
}

func (e *evaluator) assembly(f feature.Feature, d feature.AssemblyData) error {
	for _, id := range d.Members {
		if _, err := e.body(id); err != nil {
			return err
		}
	}
	e.res.Assemblies[f.ID] = append([]feature.ID(nil), d.Members...)
	return nil
}
