package feature

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// fullTree carries one feature of every variant with non-default payloads.
func fullTree() Tree {
	return Tree{Features: []Feature{
		{ID: "s1", Name: "Base", Data: SketchData{
			Plane: Plane{Kind: PlaneOffset, Base: PlaneXZ, Offset: 2.5},
			Elements: []Element{
				Rect("r", 0, 0, 10, 10),
				Circle("c", 5, 5, 2),
				Line("l", 0, 0, 3, 4),
				Arc("a", 1, 1, 3, 0, 90),
			},
			Constraints: []Constraint{
				{Kind: ConstraintHorizontal, Elements: []ElementID{"l"}},
				{Kind: ConstraintCoincident, Points: []PointRef{{"l", RoleStart}, {"r", RoleCorner0}}},
				{Kind: ConstraintDistance, Points: []PointRef{{"l", RoleStart}, {"l", RoleEnd}}, Value: 5},
				{Kind: ConstraintFixedPoint, Points: []PointRef{{"c", RoleCenter}}, Target: &Vec2{5, 5}},
			},
		}},
		{ID: "e1", Name: "Boss", Data: ExtrudeData{Sketch: "s1", Depth: 20, Symmetric: true}},
		{ID: "s2", Suppressed: true, Data: SketchData{
			Plane: Plane{Kind: PlaneFace, Face: &FaceRef{Feature: "e1", Centroid: Vec3{5, 5, 20}, Normal: Vec3{0, 0, 1}}},
		}},
		{ID: "e2", Data: ExtrudeData{Sketch: "s2", Depth: 3, Operation: OpSubtract, Reverse: true}},
		{ID: "b1", Data: BooleanData{Op: BoolIntersection, Targets: []ID{"e1", "e2"}}},
		{ID: "t1", Data: TransformData{Target: "b1", Type: TransformRotate, Vector: Vec3{0, 0, 1}, Angle: 45}},
		{ID: "f1", Data: FilletData{Target: "t1", Radius: 1.5, Segments: 6}},
		{ID: "c1", Data: ChamferData{Distance: 0.5}},
		{ID: "sh", Data: ShellData{Thickness: 1, OpenFaces: []FaceRef{{Feature: "e1", Centroid: Vec3{5, 5, 20}, Normal: Vec3{0, 0, 1}}}}},
		{ID: "p1", Data: PatternData{Type: PatternCircular, Count: 6, Axis: Vec3{0, 0, 1}, TotalAngle: 180, AngularSpacing: SpacingGaps}},
		{ID: "sw", Data: SweepData{Profile: "s1", Path: []Vec3{{0, 0, 0}, {0, 0, 10}, {5, 0, 15}}, Twist: 90, ScaleEnd: 0.5}},
		{ID: "lo", Data: LoftData{Profiles: []ID{"s1", "s2"}, Heights: []float64{0, 10}, Slices: 8, Operation: OpSubtract}},
		{ID: "as", Name: "Group", Data: AssemblyData{Members: []ID{"e1", "sw"}}},
	}}
}

func TestRoundTripEveryVariant(t *testing.T) {
	tree := fullTree()
	seen := make(map[Kind]bool)
	for _, f := range tree.Features {
		seen[f.Kind()] = true
	}
	for k := KindSketch; k < KindUnknown; k++ {
		if !seen[k] {
			t.Fatalf("fullTree lacks a %s feature", k)
		}
	}

	b, err := Encode(tree)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, tree) {
		for i := range tree.Features {
			if !reflect.DeepEqual(got.Features[i], tree.Features[i]) {
				t.Errorf("feature #%d:\n got  %+v\n want %+v", i, got.Features[i], tree.Features[i])
			}
		}
	}
}

func TestEncodeDocumentShape(t *testing.T) {
	b, err := Encode(NewTree(makeSketch("s"), makeExtrude("e", "s", 20)))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["version"] != float64(1) {
		t.Errorf("version = %v", doc["version"])
	}
	features := doc["features"].([]any)
	second := features[1].(map[string]any)
	if second["type"] != "extrude" || second["id"] != "e" {
		t.Errorf("feature = %v", second)
	}
	params := second["params"].(map[string]any)
	if params["operation"] != "add" || params["depth"] != float64(20) {
		t.Errorf("params = %v", params)
	}
}

func TestUnknownVariantPreserved(t *testing.T) {
	src := `{"version":1,"features":[` +
		`{"id":"x","type":"revolve","name":"Future","params":{"axis":[0,0,1],"angle":270}},` +
		`{"id":"s","type":"sketch","params":{"plane":{"kind":"yz"}}}]}`
	tree, err := Decode([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	u, ok := tree.Features[0].Data.(UnknownData)
	if !ok {
		t.Fatalf("Data = %T, want UnknownData", tree.Features[0].Data)
	}
	if u.Type != "revolve" || tree.Features[0].Kind() != KindUnknown {
		t.Errorf("unknown = %+v", u)
	}

	out, err := Encode(tree)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"type":"revolve"`) ||
		!strings.Contains(string(out), `"params":{"axis":[0,0,1],"angle":270}`) {
		t.Errorf("re-encoded = %s", out)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not json", `nope`},
		{"missing version", `{"features":[]}`},
		{"bad enum", `{"version":1,"features":[{"id":"e","type":"extrude","params":{"operation":"explode"}}]}`},
		{"bad params", `{"version":1,"features":[{"id":"e","type":"extrude","params":{"depth":"deep"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.src)); err == nil {
				t.Error("Decode() = nil error")
			}
		})
	}
	if _, err := Decode([]byte(`{"version":0,"features":[]}`)); !errors.Is(err, ErrVersion) {
		t.Errorf("version 0 err = %v, want ErrVersion", err)
	}
}

func TestTreeJSONMarshaler(t *testing.T) {
	tree := fullTree()
	b, err := json.Marshal(tree)
	if err != nil {
		t.Fatal(err)
	}
	var got Tree
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, tree) {
		t.Error("json.Marshal/Unmarshal of Tree did not round-trip")
	}
}

// ---------------------------------------------------------------------------
// Embedded history
// ---------------------------------------------------------------------------

func TestEmbedExtractHistory(t *testing.T) {
	tree := fullTree()
	tree.Features[0].Name = "<tricky> & name"
	block, err := EmbedHistory(tree)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Count(block, []byte(HistoryOpen)) != 1 || bytes.Count(block, []byte(HistoryClose)) != 1 {
		t.Fatalf("delimiters leaked into the payload: %s", block)
	}

	var file bytes.Buffer
	file.WriteString("solid part\nv 0 0 0\n# ")
	file.Write(block)
	file.WriteString("\nf 1 2 3\n")

	got, err := ExtractHistory(file.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, tree) {
		t.Error("extracted history differs from the embedded tree")
	}
}

func TestExtractHistoryAbsentOrMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"absent", "v 0 0 0\nf 1 2 3\n"},
		{"unterminated", "# " + HistoryOpen + `{"version":1,"features":[]}`},
		{"malformed", "# " + HistoryOpen + `{"version":` + HistoryClose},
		{"bad version", "# " + HistoryOpen + `{"features":[]}` + HistoryClose},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExtractHistory([]byte(tt.data)); !errors.Is(err, ErrNoHistory) {
				t.Errorf("err = %v, want ErrNoHistory", err)
			}
		})
	}
}
