package eval

import (
	"errors"
	"fmt"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel/affine"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/ops"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
)

// ErrorKind classifies a per-feature evaluation error.
type ErrorKind int

const (
	MissingReference ErrorKind = iota
	TooFewOperands
	OpenProfile
	EmptySketch
	InvalidDimensions
	UnresolvedSketchPlane
	CyclicReference
	DuplicateID
	DimensionMismatch
	Unsupported
	// Warning-only kinds.
	SolverNotConverged
	UnresolvedConstraint
)

var errorKindNames = []string{
	"missing-reference", "too-few-operands", "open-profile", "empty-sketch",
	"invalid-dimensions", "unresolved-sketch-plane", "cyclic-reference",
	"duplicate-id", "dimension-mismatch", "unsupported",
	"solver-not-converged", "unresolved-constraint",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(errorKindNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return errorKindNames[k]
}

// FeatureError is an error or warning attached to one feature. Evaluation
// continues past it.
type FeatureError struct {
	Feature feature.ID
	Index   int // position in the tree
	Kind    ErrorKind
	Ref     feature.ID // the offending reference, when there is one
	Message string
	Err     error
}

func (e FeatureError) Error() string {
	if e.Feature.IsZero() {
		return fmt.Sprintf("#%d: %s: %s", e.Index, e.Kind, e.Message)
	}
	return fmt.Sprintf("feature %s: %s: %s", e.Feature.Short(), e.Kind, e.Message)
}

func (e FeatureError) Unwrap() error { return e.Err }

// kindOf maps package sentinel errors to an ErrorKind.
func kindOf(err error) ErrorKind {
	var fe FeatureError
	switch {
	case errors.As(err, &fe):
		return fe.Kind
	case errors.Is(err, sketch.ErrEmptySketch):
		return EmptySketch
	case errors.Is(err, sketch.ErrOpenProfile):
		return OpenProfile
	case errors.Is(err, sketch.ErrInvalidDimensions),
		errors.Is(err, ops.ErrShortPath),
		errors.Is(err, affine.ErrSingular):
		return InvalidDimensions
	case errors.Is(err, sketch.ErrUnresolvedPlane):
		return UnresolvedSketchPlane
	case errors.Is(err, ops.ErrDimensionMismatch):
		return DimensionMismatch
	case errors.Is(err, ops.ErrTooFewProfiles):
		return TooFewOperands
	case errors.Is(err, ops.ErrUnsupportedTopology):
		return Unsupported
	}
	return Unsupported
}

// codeKind maps a blocking structural finding to an ErrorKind.
func codeKind(c feature.Code) ErrorKind {
	switch c {
	case feature.CodeDuplicateID:
		return DuplicateID
	case feature.CodeCycle:
		return CyclicReference
	case feature.CodeMissingReference, feature.CodeForwardReference:
		return MissingReference
	}
	return Unsupported
}

// missing builds a MissingReference error for ref.
func missing(ref feature.ID, format string, args ...any) FeatureError {
	return FeatureError{Kind: MissingReference, Ref: ref, Message: fmt.Sprintf(format, args...)}
}
