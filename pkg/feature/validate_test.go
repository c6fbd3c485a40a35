package feature

import "testing"

func findCode(errs []ValidationError, code Code) []ValidationError {
	var out []ValidationError
	for _, e := range errs {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out
}

func TestValidateCleanTree(t *testing.T) {
	tree := NewTree(makeSketch("s"), makeExtrude("e", "s", 5))
	if errs := Validate(tree); len(errs) != 0 {
		t.Errorf("Validate() = %v, want none", errs)
	}
}

func TestValidateDuplicateID(t *testing.T) {
	tree := Tree{Features: []Feature{makeSketch("s"), makeSketch("s")}}
	errs := findCode(Validate(tree), CodeDuplicateID)
	if len(errs) != 1 {
		t.Fatalf("duplicate findings = %d, want 1", len(errs))
	}
	if errs[0].Index != 1 || errs[0].Severity != SeverityError {
		t.Errorf("finding = %+v", errs[0])
	}
}

func TestValidateSelfReference(t *testing.T) {
	tree := NewTree(Feature{ID: "b", Data: BooleanData{Targets: []ID{"b", "b"}}})
	errs := findCode(Validate(tree), CodeCycle)
	if len(errs) != 1 || errs[0].Feature != "b" {
		t.Errorf("cycle findings = %v", errs)
	}
}

func TestValidateCycle(t *testing.T) {
	// a -> b (forward) and b -> a closes the loop.
	tree := NewTree(
		Feature{ID: "a", Data: TransformData{Target: "b"}},
		Feature{ID: "b", Data: TransformData{Target: "a"}},
		makeSketch("c"),
	)
	errs := Validate(tree)
	cycles := findCode(errs, CodeCycle)
	if len(cycles) != 2 {
		t.Fatalf("cycle findings = %d, want 2: %v", len(cycles), errs)
	}
	if len(findCode(errs, CodeForwardReference)) != 1 {
		t.Errorf("forward findings missing: %v", errs)
	}
}

func TestValidateForwardAndMissingAreWarnings(t *testing.T) {
	tree := NewTree(
		makeExtrude("e", "s", 5), // forward, no cycle
		makeSketch("s"),
		Feature{ID: "f", Data: FilletData{Target: "ghost", Radius: 1}},
	)
	errs := Validate(tree)
	for _, e := range errs {
		if e.Severity != SeverityWarning {
			t.Errorf("unexpected blocking finding %v", e)
		}
	}
	if len(findCode(errs, CodeForwardReference)) != 1 {
		t.Errorf("forward findings = %v", errs)
	}
	missing := findCode(errs, CodeMissingReference)
	if len(missing) != 1 || missing[0].Ref != "ghost" {
		t.Errorf("missing findings = %v", missing)
	}
}

func TestValidateEmptyID(t *testing.T) {
	tree := Tree{Features: []Feature{{Data: AssemblyData{}}}}
	if len(findCode(Validate(tree), CodeEmptyID)) != 1 {
		t.Error("empty id not reported")
	}
}
