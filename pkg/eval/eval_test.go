package eval

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/ops"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
)

// --- helpers ---

func makeSketch(id feature.ID, plane feature.Plane, elements ...feature.Element) feature.Feature {
	return feature.Feature{ID: id, Name: string(id), Data: feature.SketchData{Plane: plane, Elements: elements}}
}

func rectSketch(id feature.ID, x, y, w, h float64) feature.Feature {
	return makeSketch(id, feature.Plane{Kind: feature.PlaneXY}, feature.Rect("r", x, y, w, h))
}

func makeExtrude(id, sketchID feature.ID, depth float64, op feature.Operation) feature.Feature {
	return feature.Feature{ID: id, Name: string(id), Data: feature.ExtrudeData{Sketch: sketchID, Depth: depth, Operation: op}}
}

// boxTree is a 10x10x10 box at the origin built as sketch "s1" and
// extrude "e1".
func boxTree(extra ...feature.Feature) feature.Tree {
	fs := []feature.Feature{
		rectSketch("s1", 0, 0, 10, 10),
		makeExtrude("e1", "s1", 10, feature.OpAdd),
	}
	return feature.NewTree(append(fs, extra...)...)
}

// offsetBox adds sketch sid and extrude eid producing [5,15]^3.
func offsetBox(sid, eid feature.ID, op feature.Operation) []feature.Feature {
	return []feature.Feature{
		makeSketch(sid, feature.Plane{Kind: feature.PlaneOffset, Base: feature.PlaneXY, Offset: 5}, feature.Rect("r", 5, 5, 10, 10)),
		makeExtrude(eid, sid, 10, op),
	}
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func errorKinds(errs []FeatureError) []ErrorKind {
	out := make([]ErrorKind, len(errs))
	for i, e := range errs {
		out[i] = e.Kind
	}
	return out
}

func assertVolume(t *testing.T, m *kernel.Mesh, want, tol float64) {
	t.Helper()
	if got := m.Volume(); !near(got, want, tol) {
		t.Errorf("Volume() = %g, want %g", got, want)
	}
}

func assertNoErrors(t *testing.T, r *Result) {
	t.Helper()
	for _, e := range r.Errors {
		t.Errorf("unexpected error: %v", e)
	}
}

// --- basic evaluation ---

func TestEvaluateEmpty(t *testing.T) {
	m, errs := Evaluate(feature.Tree{})
	if m == nil || !m.IsEmpty() {
		t.Errorf("Evaluate(empty) mesh = %v, want empty", m)
	}
	if len(errs) != 0 {
		t.Errorf("Evaluate(empty) errors = %v, want none", errs)
	}
}

func TestExtrudeBox(t *testing.T) {
	r := Run(feature.NewTree(rectSketch("s1", 0, 0, 10, 10), makeExtrude("e1", "s1", 20, feature.OpAdd)), DefaultOptions())
	assertNoErrors(t, r)
	assertVolume(t, r.Mesh, 2000, 1e-6)
	b := r.Mesh.Bounds()
	if !near(b.Max.X, 10, 0.5) || !near(b.Max.Y, 10, 0.5) || !near(b.Max.Z, 20, 0.5) {
		t.Errorf("Bounds() = %v, want 10x10x20", b)
	}
	if _, ok := r.Profiles["s1"]; !ok {
		t.Error("sketch profile not recorded")
	}
	if _, ok := r.Meshes["s1"]; ok {
		t.Error("sketch produced a mesh")
	}
	if r.Meshes["e1"].TriangleCount() != 12 {
		t.Errorf("extrude TriangleCount() = %d, want 12", r.Meshes["e1"].TriangleCount())
	}
}

func TestExtrudeOptions(t *testing.T) {
	tests := []struct {
		name       string
		symmetric  bool
		reverse    bool
		minZ, maxZ float64
	}{
		{"forward", false, false, 0, 4},
		{"reverse", false, true, -4, 0},
		{"symmetric", true, false, -2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := feature.NewTree(
				rectSketch("s1", 0, 0, 1, 1),
				feature.Feature{ID: "e1", Data: feature.ExtrudeData{Sketch: "s1", Depth: 4, Symmetric: tt.symmetric, Reverse: tt.reverse}},
			)
			r := Run(tree, DefaultOptions())
			assertNoErrors(t, r)
			b := r.Mesh.Bounds()
			if !near(b.Min.Z, tt.minZ, 1e-9) || !near(b.Max.Z, tt.maxZ, 1e-9) {
				t.Errorf("z range = [%g, %g], want [%g, %g]", b.Min.Z, b.Max.Z, tt.minZ, tt.maxZ)
			}
		})
	}
}

func TestSubtractiveExtrude(t *testing.T) {
	tree := boxTree(
		makeSketch("s2", feature.Plane{Kind: feature.PlaneOffset, Base: feature.PlaneXY, Offset: -5}, feature.Circle("c", 5, 5, 2)),
		makeExtrude("e2", "s2", 20, feature.OpSubtract),
	)
	r := Run(tree, DefaultOptions())
	assertNoErrors(t, r)
	hole := r.Profiles["s2"].Profile.Area() * 10
	assertVolume(t, r.Mesh, 1000-hole, 1e-6)
}

func TestSubtractFromEmptyAccumulator(t *testing.T) {
	tree := feature.NewTree(rectSketch("s1", 0, 0, 1, 1), makeExtrude("e1", "s1", 1, feature.OpSubtract))
	r := Run(tree, DefaultOptions())
	assertNoErrors(t, r)
	if !r.Mesh.IsEmpty() {
		t.Errorf("TriangleCount() = %d, want empty accumulator", r.Mesh.TriangleCount())
	}
	if r.Meshes["e1"].IsEmpty() {
		t.Error("subtractive body should still be cached")
	}
}

// --- failure policy ---

func TestFeatureErrors(t *testing.T) {
	tests := []struct {
		name     string
		features []feature.Feature
		want     []ErrorKind
		volume   float64
	}{
		{
			name:     "missing sketch",
			features: []feature.Feature{makeExtrude("e2", "nope", 5, feature.OpAdd)},
			want:     []ErrorKind{MissingReference},
			volume:   1000,
		},
		{
			name: "failure propagates",
			features: []feature.Feature{
				makeSketch("s2", feature.Plane{Kind: feature.PlaneXY}),
				makeExtrude("e2", "s2", 5, feature.OpAdd),
			},
			want:   []ErrorKind{EmptySketch, MissingReference},
			volume: 1000,
		},
		{
			name: "zero depth",
			features: []feature.Feature{
				rectSketch("s2", 20, 0, 1, 1),
				makeExtrude("e2", "s2", 0, feature.OpAdd),
			},
			want:   []ErrorKind{InvalidDimensions},
			volume: 1000,
		},
		{
			name: "open profile",
			features: []feature.Feature{
				makeSketch("s2", feature.Plane{Kind: feature.PlaneXY}, feature.Line("l", 0, 0, 1, 0)),
			},
			want:   []ErrorKind{OpenProfile},
			volume: 1000,
		},
		{
			name: "extrude of a body",
			features: []feature.Feature{
				makeExtrude("e2", "e1", 5, feature.OpAdd),
			},
			want:   []ErrorKind{MissingReference},
			volume: 1000,
		},
		{
			name: "forward reference",
			features: []feature.Feature{
				makeExtrude("e2", "s3", 5, feature.OpAdd),
				rectSketch("s3", 20, 0, 1, 1),
			},
			want:   []ErrorKind{MissingReference},
			volume: 1000,
		},
		{
			name: "unresolved face plane",
			features: []feature.Feature{
				makeSketch("s2", feature.Plane{Kind: feature.PlaneFace, Face: &feature.FaceRef{Feature: "e1", Normal: feature.Vec3{X: 1, Y: 1, Z: 1}}}, feature.Rect("r", 0, 0, 1, 1)),
			},
			want:   []ErrorKind{UnresolvedSketchPlane},
			volume: 1000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(boxTree(tt.features...), DefaultOptions())
			got := errorKinds(r.Errors)
			if len(got) != len(tt.want) {
				t.Fatalf("errors = %v, want kinds %v", r.Errors, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("error %d kind = %s, want %s", i, got[i], tt.want[i])
				}
			}
			assertVolume(t, r.Mesh, tt.volume, 1e-6)
		})
	}
}

func TestErrorWrapsSentinel(t *testing.T) {
	r := Run(boxTree(makeSketch("s2", feature.Plane{Kind: feature.PlaneXY})), DefaultOptions())
	if len(r.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", r.Errors)
	}
	if !errors.Is(r.Errors[0], sketch.ErrEmptySketch) {
		t.Errorf("error %v does not wrap ErrEmptySketch", r.Errors[0])
	}
	if r.Errors[0].Feature != "s2" || r.Errors[0].Index != 2 {
		t.Errorf("error attached to %s at %d, want s2 at 2", r.Errors[0].Feature, r.Errors[0].Index)
	}
}

func TestSuppressed(t *testing.T) {
	t.Run("suppressed extrude adds nothing", func(t *testing.T) {
		tree := boxTree()
		tree, _ = tree.SetSuppressed("e1", true)
		r := Run(tree, DefaultOptions())
		assertNoErrors(t, r)
		if !r.Mesh.IsEmpty() {
			t.Errorf("TriangleCount() = %d, want 0", r.Mesh.TriangleCount())
		}
	})
	t.Run("reference to suppressed sketch", func(t *testing.T) {
		tree := boxTree()
		tree, _ = tree.SetSuppressed("s1", true)
		r := Run(tree, DefaultOptions())
		if kinds := errorKinds(r.Errors); len(kinds) != 1 || kinds[0] != MissingReference {
			t.Errorf("errors = %v, want one missing reference", r.Errors)
		}
	})
}

func TestStructuralErrors(t *testing.T) {
	t.Run("duplicate id", func(t *testing.T) {
		tree := boxTree(rectSketch("s1", 20, 0, 1, 1))
		r := Run(tree, DefaultOptions())
		if kinds := errorKinds(r.Errors); len(kinds) != 1 || kinds[0] != DuplicateID {
			t.Fatalf("errors = %v, want one duplicate id", r.Errors)
		}
		assertVolume(t, r.Mesh, 1000, 1e-6)
	})
	t.Run("cycle", func(t *testing.T) {
		tree := boxTree(
			feature.Feature{ID: "f1", Data: feature.FilletData{Target: "f2", Radius: 1}},
			feature.Feature{ID: "f2", Data: feature.FilletData{Target: "f1", Radius: 1}},
		)
		r := Run(tree, DefaultOptions())
		if kinds := errorKinds(r.Errors); len(kinds) != 2 || kinds[0] != CyclicReference || kinds[1] != CyclicReference {
			t.Fatalf("errors = %v, want two cyclic references", r.Errors)
		}
		assertVolume(t, r.Mesh, 1000, 1e-6)
	})
}

func TestUnknownFeatureWarns(t *testing.T) {
	tree := boxTree(feature.Feature{ID: "u1", Data: feature.UnknownData{Type: "thread", Raw: []byte(`{}`)}})
	r := Run(tree, DefaultOptions())
	assertNoErrors(t, r)
	if len(r.Warnings) != 1 || r.Warnings[0].Kind != Unsupported || r.Warnings[0].Feature != "u1" {
		t.Errorf("warnings = %v, want one unsupported warning on u1", r.Warnings)
	}
	assertVolume(t, r.Mesh, 1000, 1e-6)
}

// --- sketches ---

func TestSketchSolverWarnings(t *testing.T) {
	s := feature.Feature{ID: "s2", Data: feature.SketchData{
		Plane:    feature.Plane{Kind: feature.PlaneXY},
		Elements: []feature.Element{feature.Rect("r", 20, 0, 2, 2)},
		Constraints: []feature.Constraint{
			{Kind: feature.ConstraintHorizontal, Elements: []feature.ElementID{"ghost"}},
		},
	}}
	r := Run(boxTree(s), DefaultOptions())
	assertNoErrors(t, r)
	if len(r.Warnings) != 1 || r.Warnings[0].Kind != UnresolvedConstraint {
		t.Fatalf("warnings = %v, want one unresolved constraint", r.Warnings)
	}
	sol, ok := r.Solutions["s2"]
	if !ok || !sol.Converged {
		t.Errorf("solution = %+v, want converged", sol)
	}
	if _, ok := r.Profiles["s2"]; !ok {
		t.Error("profile missing after solver warning")
	}
}

func TestSketchSolvedDimensions(t *testing.T) {
	s := feature.Feature{ID: "s1", Data: feature.SketchData{
		Plane:    feature.Plane{Kind: feature.PlaneXY},
		Elements: []feature.Element{feature.Circle("c", 0, 0, 1)},
		Constraints: []feature.Constraint{
			{Kind: feature.ConstraintRadius, Elements: []feature.ElementID{"c"}, Value: 3},
		},
	}}
	r := Run(feature.NewTree(s), DefaultOptions())
	assertNoErrors(t, r)
	b := r.Profiles["s1"].Profile.Bounds()
	if !near(b.Max.X, 3, 1e-6) {
		t.Errorf("profile max x = %g, want 3", b.Max.X)
	}
}

func TestSketchOnFace(t *testing.T) {
	face := &feature.FaceRef{Feature: "e1", Centroid: feature.Vec3{X: 5, Y: 5, Z: 10}, Normal: feature.Vec3{Z: 1}}
	tree := boxTree(makeSketch("s2", feature.Plane{Kind: feature.PlaneFace, Face: face}, feature.Rect("r", -1, -1, 2, 2)))
	r := Run(tree, DefaultOptions())
	assertNoErrors(t, r)
	f := r.Profiles["s2"].Frame
	if !near(f.Origin.X, 5, 1e-9) || !near(f.Origin.Y, 5, 1e-9) || !near(f.Origin.Z, 10, 1e-9) {
		t.Errorf("frame origin = %v, want (5, 5, 10)", f.Origin)
	}
	if !near(f.Normal.Z, 1, 1e-9) {
		t.Errorf("frame normal = %v, want +Z", f.Normal)
	}
}

// --- booleans ---

func TestAdditiveBodiesUnion(t *testing.T) {
	r := Run(boxTree(offsetBox("s2", "e2", feature.OpAdd)...), DefaultOptions())
	assertNoErrors(t, r)
	assertVolume(t, r.Mesh, 1875, 1e-6)
}

func TestBoolean(t *testing.T) {
	tests := []struct {
		name string
		op   feature.BooleanOp
		want float64
	}{
		{"union", feature.BoolUnion, 1875},
		{"difference", feature.BoolDifference, 875},
		{"intersection", feature.BoolIntersection, 125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := append(offsetBox("s2", "e2", feature.OpAdd),
				feature.Feature{ID: "b1", Data: feature.BooleanData{Op: tt.op, Targets: []feature.ID{"e1", "e2"}}})
			r := Run(boxTree(fs...), DefaultOptions())
			assertNoErrors(t, r)
			assertVolume(t, r.Meshes["b1"], tt.want, 1e-6)
			assertVolume(t, r.Mesh, tt.want, 1e-6)
		})
	}
}

func TestBooleanTakesPositiveSlot(t *testing.T) {
	tests := []struct {
		name    string
		targets []feature.ID
	}{
		{"additive first", []feature.ID{"e1", "e2"}},
		{"subtractive first", []feature.ID{"e2", "e1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := append(offsetBox("s2", "e2", feature.OpSubtract),
				feature.Feature{ID: "b1", Data: feature.BooleanData{Op: feature.BoolUnion, Targets: tt.targets}})
			r := Run(boxTree(fs...), DefaultOptions())
			assertNoErrors(t, r)
			assertVolume(t, r.Meshes["b1"], 1875, 1e-6)
			assertVolume(t, r.Mesh, 1875, 1e-6)
		})
	}
}

func TestBooleanErrors(t *testing.T) {
	tests := []struct {
		name    string
		targets []feature.ID
		want    ErrorKind
	}{
		{"no targets", nil, TooFewOperands},
		{"one target", []feature.ID{"e1"}, TooFewOperands},
		{"unresolved target", []feature.ID{"e1", "ghost"}, MissingReference},
		{"sketch target", []feature.ID{"e1", "s1"}, MissingReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(boxTree(feature.Feature{ID: "b1", Data: feature.BooleanData{Targets: tt.targets}}), DefaultOptions())
			if kinds := errorKinds(r.Errors); len(kinds) != 1 || kinds[0] != tt.want {
				t.Fatalf("errors = %v, want %s", r.Errors, tt.want)
			}
			assertVolume(t, r.Mesh, 1000, 1e-6)
		})
	}
}

// --- transforms ---

func TestTransform(t *testing.T) {
	tests := []struct {
		name    string
		data    feature.TransformData
		wantMin [3]float64
	}{
		{"translate", feature.TransformData{Target: "e1", Type: feature.TransformTranslate, Vector: feature.Vec3{X: 5, Y: -5}}, [3]float64{5, -5, 0}},
		{"rotate", feature.TransformData{Target: "e1", Type: feature.TransformRotate, Vector: feature.Vec3{Z: 1}, Angle: 90}, [3]float64{-10, 0, 0}},
		{"mirror", feature.TransformData{Target: "e1", Type: feature.TransformMirror, Vector: feature.Vec3{X: 1}}, [3]float64{-10, 0, 0}},
		{"accumulator", feature.TransformData{Type: feature.TransformTranslate, Vector: feature.Vec3{Z: 3}}, [3]float64{0, 0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(boxTree(feature.Feature{ID: "t1", Data: tt.data}), DefaultOptions())
			assertNoErrors(t, r)
			assertVolume(t, r.Mesh, 1000, 1e-6)
			b := r.Mesh.Bounds()
			if !near(b.Min.X, tt.wantMin[0], 1e-9) || !near(b.Min.Y, tt.wantMin[1], 1e-9) || !near(b.Min.Z, tt.wantMin[2], 1e-9) {
				t.Errorf("min = %v, want %v", b.Min, tt.wantMin)
			}
			if r.Meshes["t1"] == nil {
				t.Error("transform result not cached")
			}
		})
	}
}

func TestTransformErrors(t *testing.T) {
	tests := []struct {
		name string
		data feature.TransformData
		want ErrorKind
	}{
		{"zero scale", feature.TransformData{Target: "e1", Type: feature.TransformScale, Vector: feature.Vec3{X: 1, Y: 0, Z: 1}}, InvalidDimensions},
		{"zero mirror normal", feature.TransformData{Target: "e1", Type: feature.TransformMirror}, InvalidDimensions},
		{"zero rotation axis", feature.TransformData{Target: "e1", Type: feature.TransformRotate, Angle: 45}, InvalidDimensions},
		{"missing target", feature.TransformData{Target: "ghost", Type: feature.TransformTranslate}, MissingReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(boxTree(feature.Feature{ID: "t1", Data: tt.data}), DefaultOptions())
			if kinds := errorKinds(r.Errors); len(kinds) != 1 || kinds[0] != tt.want {
				t.Fatalf("errors = %v, want %s", r.Errors, tt.want)
			}
		})
	}
}

func TestTransformAssembly(t *testing.T) {
	fs := []feature.Feature{
		rectSketch("s2", 20, 0, 5, 5),
		makeExtrude("e2", "s2", 5, feature.OpAdd),
		{ID: "a1", Data: feature.AssemblyData{Members: []feature.ID{"e1", "e2"}}},
		{ID: "t1", Data: feature.TransformData{Target: "a1", Type: feature.TransformTranslate, Vector: feature.Vec3{X: 100}}},
	}
	r := Run(boxTree(fs...), DefaultOptions())
	assertNoErrors(t, r)
	if got := r.Assemblies["a1"]; len(got) != 2 {
		t.Errorf("assembly members = %v, want 2", got)
	}
	if got := r.Mesh.Bounds().Min.X; !near(got, 100, 1e-9) {
		t.Errorf("min x = %g, want 100", got)
	}
	if got := r.Meshes["e2"].Bounds().Min.X; !near(got, 120, 1e-9) {
		t.Errorf("member e2 min x = %g, want 120", got)
	}
	assertVolume(t, r.Mesh, 1000+125, 1e-6)
}

func TestAssemblyMissingMember(t *testing.T) {
	r := Run(boxTree(feature.Feature{ID: "a1", Data: feature.AssemblyData{Members: []feature.ID{"e1", "ghost"}}}), DefaultOptions())
	if kinds := errorKinds(r.Errors); len(kinds) != 1 || kinds[0] != MissingReference {
		t.Fatalf("errors = %v, want one missing reference", r.Errors)
	}
	assertVolume(t, r.Mesh, 1000, 1e-6)
}

// --- modifiers ---

func TestModifiersOnAccumulator(t *testing.T) {
	tests := []struct {
		name     string
		data     feature.Data
		min, max float64
	}{
		{"chamfer", feature.ChamferData{Distance: 1}, 930, 960},
		{"fillet", feature.FilletData{Radius: 1}, 930, 999},
		{"shell", feature.ShellData{Thickness: 1}, 488 - 1e-6, 488 + 1e-6},
		{"chamfer zero distance", feature.ChamferData{}, 1000 - 1e-6, 1000 + 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(boxTree(feature.Feature{ID: "m1", Data: tt.data}), DefaultOptions())
			assertNoErrors(t, r)
			if v := r.Mesh.Volume(); v < tt.min || v > tt.max {
				t.Errorf("Volume() = %g, want in [%g, %g]", v, tt.min, tt.max)
			}
			if r.Meshes["m1"] != r.Mesh {
				t.Error("modifier result is not the accumulator")
			}
		})
	}
}

// pocketTree is boxTree with a 4x4 pocket cut 4 deep into its top face.
func pocketTree(extra ...feature.Feature) feature.Tree {
	fs := []feature.Feature{
		makeSketch("s2", feature.Plane{Kind: feature.PlaneOffset, Base: feature.PlaneXY, Offset: 6}, feature.Rect("r", 3, 3, 4, 4)),
		makeExtrude("e2", "s2", 10, feature.OpSubtract),
	}
	return boxTree(append(fs, extra...)...)
}

func TestModifiersOnBooleanResult(t *testing.T) {
	plain := Run(pocketTree(), DefaultOptions())
	assertNoErrors(t, plain)
	assertVolume(t, plain.Mesh, 936, 1e-6)
	before := plain.Mesh.TriangleCount()

	tests := []struct {
		name     string
		data     feature.Data
		min, max float64
	}{
		{"fillet", feature.FilletData{Radius: 0.5}, 920, 936},
		{"chamfer", feature.ChamferData{Distance: 0.5}, 910, 936},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(pocketTree(feature.Feature{ID: "m1", Data: tt.data}), DefaultOptions())
			assertNoErrors(t, r)
			if len(r.Warnings) != 0 {
				t.Errorf("warnings = %v, want none", r.Warnings)
			}
			if got := r.Mesh.TriangleCount(); got == before {
				t.Errorf("TriangleCount() = %d, unchanged by %s", got, tt.name)
			}
			if v := r.Mesh.Volume(); v <= tt.min || v >= tt.max {
				t.Errorf("Volume() = %g, want in (%g, %g)", v, tt.min, tt.max)
			}
		})
	}
}

func TestModifierUnchangedWarns(t *testing.T) {
	tests := []struct {
		name string
		data feature.Data
	}{
		{"chamfer collapses faces", feature.ChamferData{Distance: 6}},
		{"fillet collapses faces", feature.FilletData{Radius: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(boxTree(feature.Feature{ID: "m1", Data: tt.data}), DefaultOptions())
			assertNoErrors(t, r)
			if len(r.Warnings) != 1 || r.Warnings[0].Kind != Unsupported || r.Warnings[0].Feature != "m1" {
				t.Fatalf("warnings = %v, want one unsupported warning on m1", r.Warnings)
			}
			if !errors.Is(r.Warnings[0], ops.ErrUnsupportedTopology) {
				t.Errorf("warning %v does not wrap ErrUnsupportedTopology", r.Warnings[0])
			}
			assertVolume(t, r.Mesh, 1000, 1e-6)
		})
	}
}

func TestModifierReplacesTarget(t *testing.T) {
	fs := append(offsetBox("s2", "e2", feature.OpAdd),
		feature.Feature{ID: "p1", Data: feature.PatternData{Target: "e1", Type: feature.PatternLinear, Count: 2, Spacing: 40, Direction: feature.Vec3{X: -1}}})
	r := Run(boxTree(fs...), DefaultOptions())
	assertNoErrors(t, r)
	if got := r.Meshes["e1"].TriangleCount(); got != 24 {
		t.Errorf("e1 TriangleCount() = %d, want 24 after pattern", got)
	}
	if r.Meshes["p1"] != r.Meshes["e1"] {
		t.Error("pattern result not cached under both ids")
	}
	assertVolume(t, r.Mesh, 1875+1000, 1e-6)
}

func TestShellOpenFace(t *testing.T) {
	top := feature.FaceRef{Feature: "e1", Centroid: feature.Vec3{X: 5, Y: 5, Z: 10}, Normal: feature.Vec3{Z: 1}}
	r := Run(boxTree(feature.Feature{ID: "sh", Data: feature.ShellData{Target: "e1", Thickness: 1, OpenFaces: []feature.FaceRef{top}}}), DefaultOptions())
	assertNoErrors(t, r)
	assertVolume(t, r.Mesh, 1000-8*8*9, 1e-6)

	bad := feature.FaceRef{Feature: "e1", Normal: feature.Vec3{X: 1, Y: 1, Z: 1}}
	r = Run(boxTree(feature.Feature{ID: "sh", Data: feature.ShellData{Target: "e1", Thickness: 1, OpenFaces: []feature.FaceRef{bad}}}), DefaultOptions())
	assertNoErrors(t, r)
	if len(r.Warnings) != 1 || r.Warnings[0].Kind != MissingReference {
		t.Errorf("warnings = %v, want one missing open face", r.Warnings)
	}
	assertVolume(t, r.Mesh, 488, 1e-6)
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		name string
		data feature.PatternData
		want float64
	}{
		{"linear", feature.PatternData{Type: feature.PatternLinear, Count: 3, Spacing: 20, Direction: feature.Vec3{X: 1}}, 3000},
		{"circular", feature.PatternData{Type: feature.PatternCircular, Count: 4, Axis: feature.Vec3{Z: 1}}, 1000},
		{"mirror", feature.PatternData{Type: feature.PatternMirror, Normal: feature.Vec3{X: 1}}, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(boxTree(feature.Feature{ID: "p1", Data: tt.data}), DefaultOptions())
			assertNoErrors(t, r)
			n := r.Mesh.TriangleCount()
			if tt.data.Type == feature.PatternCircular && n != 48 {
				t.Errorf("TriangleCount() = %d, want 48", n)
			}
			if tt.data.Type != feature.PatternCircular {
				assertVolume(t, r.Mesh, tt.want, 1e-6)
			}
		})
	}
}

func TestPatternZeroVectorWarns(t *testing.T) {
	tests := []struct {
		name string
		data feature.PatternData
		warn bool
	}{
		{"linear zero direction", feature.PatternData{Type: feature.PatternLinear, Count: 3, Spacing: 20}, true},
		{"circular zero axis", feature.PatternData{Type: feature.PatternCircular, Count: 4}, true},
		{"mirror zero normal", feature.PatternData{Type: feature.PatternMirror}, true},
		{"linear single copy", feature.PatternData{Type: feature.PatternLinear, Count: 1, Spacing: 20}, false},
		{"linear zero spacing", feature.PatternData{Type: feature.PatternLinear, Count: 3, Direction: feature.Vec3{X: 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Run(boxTree(feature.Feature{ID: "p1", Data: tt.data}), DefaultOptions())
			assertNoErrors(t, r)
			if tt.warn && (len(r.Warnings) != 1 || r.Warnings[0].Kind != InvalidDimensions) {
				t.Errorf("warnings = %v, want one invalid-dimensions warning", r.Warnings)
			}
			if !tt.warn && len(r.Warnings) != 0 {
				t.Errorf("warnings = %v, want none", r.Warnings)
			}
			assertVolume(t, r.Mesh, 1000, 1e-6)
		})
	}
}

func TestLinearPatternNegativeSpacing(t *testing.T) {
	r := Run(boxTree(feature.Feature{ID: "p1", Data: feature.PatternData{
		Type: feature.PatternLinear, Count: 3, Spacing: -20, Direction: feature.Vec3{X: 1},
	}}), DefaultOptions())
	assertNoErrors(t, r)
	assertVolume(t, r.Mesh, 3000, 1e-6)
	if got := r.Mesh.Bounds().Min.X; !near(got, -40, 1e-9) {
		t.Errorf("min x = %g, want -40", got)
	}
}

// --- sweep and loft ---

func TestSweep(t *testing.T) {
	tree := feature.NewTree(
		rectSketch("s1", -1, -1, 2, 2),
		feature.Feature{ID: "w1", Data: feature.SweepData{Profile: "s1", Path: []feature.Vec3{{}, {Z: 10}}}},
	)
	r := Run(tree, DefaultOptions())
	assertNoErrors(t, r)
	assertVolume(t, r.Mesh, 40, 1e-6)

	tree = feature.NewTree(
		rectSketch("s1", -1, -1, 2, 2),
		feature.Feature{ID: "w1", Data: feature.SweepData{Profile: "s1", Path: []feature.Vec3{{}}}},
	)
	r = Run(tree, DefaultOptions())
	if kinds := errorKinds(r.Errors); len(kinds) != 1 || kinds[0] != InvalidDimensions {
		t.Errorf("errors = %v, want invalid dimensions for a one-point path", r.Errors)
	}
}

func TestLoft(t *testing.T) {
	tests := []struct {
		name     string
		second   feature.Feature
		heights  []float64
		wantErr  bool
		wantKind ErrorKind
		volume   float64
	}{
		{"prism", rectSketch("s2", -1, -1, 2, 2), []float64{0, 5}, false, 0, 20},
		{"point count mismatch", makeSketch("s2", feature.Plane{Kind: feature.PlaneXY}, feature.Circle("c", 0, 0, 1)), []float64{0, 5}, true, DimensionMismatch, 0},
		{"heights mismatch", rectSketch("s2", -1, -1, 2, 2), []float64{0}, true, DimensionMismatch, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := feature.NewTree(
				rectSketch("s1", -1, -1, 2, 2),
				tt.second,
				feature.Feature{ID: "l1", Data: feature.LoftData{Profiles: []feature.ID{"s1", "s2"}, Heights: tt.heights}},
			)
			r := Run(tree, DefaultOptions())
			if tt.wantErr {
				if kinds := errorKinds(r.Errors); len(kinds) != 1 || kinds[0] != tt.wantKind {
					t.Fatalf("errors = %v, want %s", r.Errors, tt.wantKind)
				}
				return
			}
			assertNoErrors(t, r)
			assertVolume(t, r.Mesh, tt.volume, 1e-6)
		})
	}
}

func TestLoftTooFewProfiles(t *testing.T) {
	tree := feature.NewTree(
		rectSketch("s1", -1, -1, 2, 2),
		feature.Feature{ID: "l1", Data: feature.LoftData{Profiles: []feature.ID{"s1"}, Heights: []float64{0}}},
	)
	r := Run(tree, DefaultOptions())
	if kinds := errorKinds(r.Errors); len(kinds) != 1 || kinds[0] != TooFewOperands {
		t.Fatalf("errors = %v, want too few operands", r.Errors)
	}
}

// --- purity ---

func TestRunDoesNotMutateTree(t *testing.T) {
	tree := boxTree(feature.Feature{ID: "c1", Data: feature.ChamferData{Distance: 1}})
	before, err := feature.Encode(tree)
	if err != nil {
		t.Fatal(err)
	}
	Run(tree, DefaultOptions())
	after, err := feature.Encode(tree)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("Run modified the tree")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	tests := []struct {
		name string
		tree feature.Tree
		want float64
	}{
		{"difference", boxTree(offsetBox("s2", "e2", feature.OpSubtract)...), 875},
		{"filleted pocket", pocketTree(feature.Feature{ID: "f1", Data: feature.FilletData{Radius: 0.5}}), 0},
		{"chamfered pocket", pocketTree(feature.Feature{ID: "c1", Data: feature.ChamferData{Distance: 0.5}}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Run(tt.tree, DefaultOptions()).Mesh
			for range 3 {
				b := Run(tt.tree, DefaultOptions()).Mesh
				if !reflect.DeepEqual(a.Vertices, b.Vertices) || !reflect.DeepEqual(a.Indices, b.Indices) {
					t.Fatalf("two runs differ: %d/%g vs %d/%g", a.TriangleCount(), a.Volume(), b.TriangleCount(), b.Volume())
				}
			}
			if tt.want > 0 {
				assertVolume(t, a, tt.want, 1e-6)
			}
		})
	}
}
