package feature

import "fmt"

// Severity indicates whether a finding blocks evaluation of the feature.
type Severity int

const (
	SeverityError   Severity = iota // the feature is not evaluated
	SeverityWarning                 // the evaluator reports it on its own terms
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Code classifies a structural finding.
type Code int

const (
	CodeEmptyID Code = iota
	CodeDuplicateID
	CodeCycle
	CodeForwardReference
	CodeMissingReference
)

func (c Code) String() string {
	switch c {
	case CodeEmptyID:
		return "empty-id"
	case CodeDuplicateID:
		return "duplicate-id"
	case CodeCycle:
		return "cycle"
	case CodeForwardReference:
		return "forward-reference"
	case CodeMissingReference:
		return "missing-reference"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// ValidationError describes one structural finding.
type ValidationError struct {
	Feature  ID // zero for tree-level findings
	Index    int
	Code     Code
	Ref      ID // the offending reference, when there is one
	Message  string
	Severity Severity
}

func (e ValidationError) Error() string {
	if e.Feature.IsZero() {
		return fmt.Sprintf("[%s] #%d: %s", e.Severity, e.Index, e.Message)
	}
	return fmt.Sprintf("[%s] feature %s: %s", e.Severity, e.Feature.Short(), e.Message)
}

// Validate checks the structural contract of the tree without evaluating
// it: ids are present and unique, and the reference graph is acyclic. A
// reference to a later feature is a warning unless it closes a cycle;
// references to ids that do not exist are warnings. Validate never mutates
// the tree.
func Validate(t Tree) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateIDs(t)...)
	errs = append(errs, validateReferences(t)...)
	errs = append(errs, validateAcyclic(t)...)
	return errs
}

func validateIDs(t Tree) []ValidationError {
	var errs []ValidationError
	seen := make(map[ID]int)
	for i, f := range t.Features {
		if f.ID.IsZero() {
			errs = append(errs, ValidationError{
				Index: i, Code: CodeEmptyID,
				Message:  "feature has no id",
				Severity: SeverityError,
			})
			continue
		}
		if first, ok := seen[f.ID]; ok {
			errs = append(errs, ValidationError{
				Feature: f.ID, Index: i, Code: CodeDuplicateID,
				Message:  fmt.Sprintf("id already used by feature #%d", first),
				Severity: SeverityError,
			})
			continue
		}
		seen[f.ID] = i
	}
	return errs
}

func validateReferences(t Tree) []ValidationError {
	var errs []ValidationError
	index := firstIndex(t)
	for i, f := range t.Features {
		for _, ref := range f.References() {
			j, ok := index[ref]
			switch {
			case !ok:
				errs = append(errs, ValidationError{
					Feature: f.ID, Index: i, Code: CodeMissingReference, Ref: ref,
					Message:  fmt.Sprintf("reference %s does not exist", ref.Short()),
					Severity: SeverityWarning,
				})
			case j > i:
				errs = append(errs, ValidationError{
					Feature: f.ID, Index: i, Code: CodeForwardReference, Ref: ref,
					Message:  fmt.Sprintf("reference %s points to a later feature", ref.Short()),
					Severity: SeverityWarning,
				})
			}
		}
	}
	return errs
}

// validateAcyclic checks for cycles using DFS with 3-color marking over
// reference edges. White (0) = unvisited, gray (1) = on the current path,
// black (2) = fully explored. Every feature on a detected cycle is
// reported once, including self references.
func validateAcyclic(t Tree) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	index := firstIndex(t)
	color := make(map[ID]int)
	onCycle := make(map[ID]bool)
	var path []ID

	var visit func(id ID)
	visit = func(id ID) {
		color[id] = gray
		path = append(path, id)
		for _, ref := range t.Features[index[id]].References() {
			if _, ok := index[ref]; !ok {
				continue
			}
			switch color[ref] {
			case white:
				visit(ref)
			case gray:
				for k := len(path) - 1; k >= 0; k-- {
					onCycle[path[k]] = true
					if path[k] == ref {
						break
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
	}

	for _, f := range t.Features {
		if _, ok := index[f.ID]; ok && color[f.ID] == white {
			visit(f.ID)
		}
	}

	var errs []ValidationError
	for i, f := range t.Features {
		if onCycle[f.ID] && index[f.ID] == i {
			errs = append(errs, ValidationError{
				Feature: f.ID, Index: i, Code: CodeCycle,
				Message:  fmt.Sprintf("feature %s is part of a reference cycle", f.ID.Short()),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// firstIndex maps each id to its first position.
func firstIndex(t Tree) map[ID]int {
	index := make(map[ID]int, len(t.Features))
	for i, f := range t.Features {
		if f.ID.IsZero() {
			continue
		}
		if _, ok := index[f.ID]; !ok {
			index[f.ID] = i
		}
	}
	return index
}
