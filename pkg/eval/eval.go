// Package eval walks a feature history and produces the accumulated solid.
//
// Features are evaluated in list order. Each body-producing feature is
// cached under its id and contributes a slot to the accumulator: additive
// slots are unioned in, subtractive slots are differenced out. Modifiers
// and booleans that act on a body replace its slot, after which the
// accumulator is folded again from the slots. A failing feature records a
// FeatureError and contributes nothing; features that reference it fail
// with MissingReference. Evaluation always completes.
package eval

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/logging"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel/bsp"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/ops"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
)

// Options tunes evaluation.
type Options struct {
	Kernel         kernel.Kernel // nil uses the BSP kernel
	CircleSegments int
	FilletSegments int
	SharpAngle     float64 // degrees between face normals for fillet/chamfer
	Solver         sketch.SolverOptions
}

// DefaultOptions returns the options Evaluate uses.
func DefaultOptions() Options {
	return Options{
		CircleSegments: sketch.DefaultSegments,
		FilletSegments: ops.DefaultFilletSegments,
		SharpAngle:     ops.DefaultSharpAngle,
		Solver:         sketch.DefaultSolverOptions(),
	}
}

// PlacedProfile is the output of a sketch feature: its closed profile and
// the world frame of its plane.
type PlacedProfile struct {
	Profile sketch.Profile
	Frame   sketch.Frame
}

// Result is the full output of an evaluation.
type Result struct {
	Mesh     *kernel.Mesh // the accumulated solid, never nil
	Errors   []FeatureError
	Warnings []FeatureError

	Meshes     map[feature.ID]*kernel.Mesh // latest mesh per body feature
	Profiles   map[feature.ID]PlacedProfile
	Solutions  map[feature.ID]sketch.Solution
	Assemblies map[feature.ID][]feature.ID
}

// Evaluate runs t with the default options and returns the accumulated
// mesh and the per-feature errors.
func Evaluate(t feature.Tree) (*kernel.Mesh, []FeatureError) {
	r := Run(t, DefaultOptions())
	return r.Mesh, r.Errors
}

// slot is one contribution to the accumulator. ids lists the features
// whose cached mesh is this body: its producer and any modifiers applied
// to it since.
type slot struct {
	ids  []feature.ID
	op   feature.Operation
	mesh *kernel.Mesh
}

type evaluator struct {
	opts  Options
	k     kernel.Kernel
	tree  feature.Tree
	index map[feature.ID]int // first position of each id
	res   *Result

	failed map[feature.ID]bool
	slots  []slot
	acc    *kernel.Mesh
}

// Run evaluates t and returns everything it produced. t is not modified.
func Run(t feature.Tree, opts Options) *Result {
	e := newEvaluator(t, opts)
	blocked := e.validate()
	for i, f := range t.Features {
		if f.Suppressed || blocked[i] {
			continue
		}
		e.step(i, f)
	}
	e.res.Mesh = e.accumulated()
	return e.res
}

func newEvaluator(t feature.Tree, opts Options) *evaluator {
	if opts.Kernel == nil {
		opts.Kernel = bsp.New()
	}
	if opts.CircleSegments < 3 {
		opts.CircleSegments = sketch.DefaultSegments
	}
	if opts.FilletSegments < 1 {
		opts.FilletSegments = ops.DefaultFilletSegments
	}
	e := &evaluator{
		opts:   opts,
		k:      opts.Kernel,
		tree:   t,
		index:  make(map[feature.ID]int, t.Len()),
		failed: make(map[feature.ID]bool),
		res: &Result{
			Meshes:     make(map[feature.ID]*kernel.Mesh),
			Profiles:   make(map[feature.ID]PlacedProfile),
			Solutions:  make(map[feature.ID]sketch.Solution),
			Assemblies: make(map[feature.ID][]feature.ID),
		},
	}
	for i, f := range t.Features {
		if _, ok := e.index[f.ID]; !ok && !f.ID.IsZero() {
			e.index[f.ID] = i
		}
	}
	return e
}

// validate reports blocking structural findings and returns the positions
// that must not be evaluated.
func (e *evaluator) validate() map[int]bool {
	blocked := make(map[int]bool)
	for _, v := range feature.Validate(e.tree) {
		if v.Severity != feature.SeverityError {
			continue
		}
		blocked[v.Index] = true
		if v.Code == feature.CodeCycle {
			e.failed[v.Feature] = true
		}
		e.res.Errors = append(e.res.Errors, FeatureError{
			Feature: v.Feature,
			Index:   v.Index,
			Kind:    codeKind(v.Code),
			Ref:     v.Ref,
			Message: v.Message,
			Err:     v,
		})
	}
	return blocked
}

// step evaluates one feature, recording any error against it.
func (e *evaluator) step(i int, f feature.Feature) {
	start := time.Now()
	err := e.safely(f)
	log := logging.Logger()
	if err == nil {
		log.Debug("feature evaluated", "id", f.ID.Short(), "kind", f.Kind(), "elapsed", time.Since(start))
		return
	}
	e.failed[f.ID] = true
	fe := FeatureError{Feature: f.ID, Index: i, Kind: kindOf(err), Message: err.Error(), Err: err}
	var inner FeatureError
	if errors.As(err, &inner) {
		fe.Ref, fe.Message, fe.Err = inner.Ref, inner.Message, inner.Err
	}
	log.Debug("feature failed", "id", f.ID.Short(), "kind", f.Kind(), "err", fe.Message)
	e.res.Errors = append(e.res.Errors, fe)
}

// safely runs the feature handler, converting a panic into an error.
func (e *evaluator) safely(f feature.Feature) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = FeatureError{Kind: Unsupported, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()
	return e.dispatch(f)
}

func (e *evaluator) dispatch(f feature.Feature) error {
	switch d := f.Data.(type) {
	case feature.SketchData:
		return e.sketch(f, d)
	case feature.ExtrudeData:
		return e.extrude(f, d)
	case feature.BooleanData:
		return e.boolean(f, d)
	case feature.TransformData:
		return e.transform(f, d)
	case feature.FilletData:
		return e.fillet(f, d)
	case feature.ChamferData:
		return e.chamfer(f, d)
	case feature.ShellData:
		return e.shell(f, d)
	case feature.PatternData:
		return e.pattern(f, d)
	case feature.SweepData:
		return e.sweep(f, d)
	case feature.LoftData:
		return e.loft(f, d)
	case feature.AssemblyData:
		return e.assembly(f, d)
	case feature.UnknownData:
		e.warn(f, FeatureError{Kind: Unsupported, Message: fmt.Sprintf("unknown feature type %q skipped", d.Type)})
		return nil
	case nil:
		e.warn(f, FeatureError{Kind: Unsupported, Message: "feature has no parameters"})
		return nil
	}
	return FeatureError{Kind: Unsupported, Message: fmt.Sprintf("unsupported feature data %T", f.Data)}
}

// warn records a non-blocking finding against f.
func (e *evaluator) warn(f feature.Feature, w FeatureError) {
	w.Feature = f.ID
	w.Index = e.position(f.ID)
	logging.Logger().Warn("feature warning", "id", f.ID.Short(), "kind", w.Kind, "msg", w.Message)
	e.res.Warnings = append(e.res.Warnings, w)
}

func (e *evaluator) position(id feature.ID) int {
	if i, ok := e.index[id]; ok {
		return i
	}
	return -1
}

// unavailable explains why ref has no result yet.
func (e *evaluator) unavailable(ref feature.ID, what string) FeatureError {
	i, ok := e.index[ref]
	switch {
	case ref.IsZero():
		return missing(ref, "no %s given", what)
	case !ok:
		return missing(ref, "%s %s does not exist", what, ref.Short())
	case e.failed[ref]:
		return missing(ref, "%s %s failed", what, ref.Short())
	case e.tree.Features[i].Suppressed:
		return missing(ref, "%s %s is suppressed", what, ref.Short())
	default:
		if f, ok := e.tree.Lookup(ref); ok && e.evaluated(ref) {
			return missing(ref, "%s %s is a %s", what, ref.Short(), f.Kind())
		}
		return missing(ref, "%s %s is not evaluated before this feature", what, ref.Short())
	}
}

func (e *evaluator) evaluated(id feature.ID) bool {
	if _, ok := e.res.Meshes[id]; ok {
		return true
	}
	if _, ok := e.res.Profiles[id]; ok {
		return true
	}
	_, ok := e.res.Assemblies[id]
	return ok
}

// body returns the cached mesh of ref.
func (e *evaluator) body(ref feature.ID) (*kernel.Mesh, error) {
	if m, ok := e.res.Meshes[ref]; ok && !e.failed[ref] {
		return m, nil
	}
	return nil, e.unavailable(ref, "body")
}

// profile returns the placed profile of sketch ref.
func (e *evaluator) profile(ref feature.ID) (PlacedProfile, error) {
	if p, ok := e.res.Profiles[ref]; ok && !e.failed[ref] {
		return p, nil
	}
	return PlacedProfile{}, e.unavailable(ref, "sketch")
}

// ---------------------------------------------------------------------------
// Accumulator
// ---------------------------------------------------------------------------

func (e *evaluator) accumulated() *kernel.Mesh {
	if e.acc == nil {
		return &kernel.Mesh{}
	}
	return e.acc
}

// combine folds one slot into acc.
func (e *evaluator) combine(acc *kernel.Mesh, s slot) *kernel.Mesh {
	if s.op == feature.OpSubtract {
		if acc == nil {
			return nil
		}
		return kernel.Perform(e.k, kernel.OpDifference, []*kernel.Mesh{acc, s.mesh})
	}
	if acc == nil {
		return s.mesh.Clone()
	}
	return kernel.Perform(e.k, kernel.OpUnion, []*kernel.Mesh{acc, s.mesh})
}

// contribute adds a new body to the accumulator.
func (e *evaluator) contribute(id feature.ID, op feature.Operation, m *kernel.Mesh) {
	s := slot{ids: []feature.ID{id}, op: op, mesh: m}
	e.slots = append(e.slots, s)
	e.acc = e.combine(e.acc, s)
}

func (e *evaluator) rebuild() {
	e.acc = nil
	for _, s := range e.slots {
		e.acc = e.combine(e.acc, s)
	}
}

// slotOf returns the slot whose body is id's cached mesh, or -1.
func (e *evaluator) slotOf(id feature.ID) int {
	return slices.IndexFunc(e.slots, func(s slot) bool { return slices.Contains(s.ids, id) })
}

// replace stores m as the new body of target on behalf of feature by and
// refolds the accumulator if target fed it.
func (e *evaluator) replace(target, by feature.ID, m *kernel.Mesh) {
	e.res.Meshes[target] = m
	e.res.Meshes[by] = m
	if i := e.slotOf(target); i >= 0 {
		e.slots[i].mesh = m
		if !slices.Contains(e.slots[i].ids, by) {
			e.slots[i].ids = append(e.slots[i].ids, by)
		}
		e.rebuild()
	}
}

// collapse makes m the whole accumulator, owned by feature by.
func (e *evaluator) collapse(by feature.ID, m *kernel.Mesh) {
	e.slots = []slot{{ids: []feature.ID{by}, op: feature.OpAdd, mesh: m}}
	e.acc = m
	e.res.Meshes[by] = m
}
