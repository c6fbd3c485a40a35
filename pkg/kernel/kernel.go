// Package kernel defines the triangle mesh value type and the abstract
// boolean kernel interface. Implementations (bsp, manifold) provide the
// pairwise booleans; Perform layers the n-ary semantics and the
// empty-operand rules on top so every backend behaves identically at the
// edges.
package kernel

import (
	"fmt"
	"strings"
)

// Op is a boolean operator.
type Op int

const (
	OpUnion Op = iota
	OpDifference
	OpIntersection
)

func (o Op) String() string {
	switch o {
	case OpUnion:
		return "union"
	case OpDifference:
		return "difference"
	case OpIntersection:
		return "intersection"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// ParseOp converts a name produced by Op.String back to an Op.
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(s) {
	case "union":
		return OpUnion, nil
	case "difference":
		return OpDifference, nil
	case "intersection":
		return OpIntersection, nil
	}
	return 0, fmt.Errorf("kernel: unknown boolean operator %q", s)
}

// Kernel is the abstract boolean kernel. Implementations may assume both
// operands are non-empty; Perform filters the empty cases.
type Kernel interface {
	Union(a, b *Mesh) *Mesh
	Difference(a, b *Mesh) *Mesh
	Intersection(a, b *Mesh) *Mesh
}

// Perform applies op across meshes left to right.
//
//   - no meshes: empty
//   - one mesh: a copy of it
//   - union: empty operands are the identity
//   - difference: an empty first operand is absorbing, empty subtrahends are skipped
//   - intersection: any empty operand is absorbing
func Perform(k Kernel, op Op, meshes []*Mesh) *Mesh {
	switch len(meshes) {
	case 0:
		return &Mesh{}
	case 1:
		return meshes[0].Clone()
	}

	switch op {
	case OpUnion:
		var acc *Mesh
		for _, m := range meshes {
			if m.IsEmpty() {
				continue
			}
			if acc == nil {
				acc = m.Clone()
				continue
			}
			acc = k.Union(acc, m)
		}
		if acc == nil {
			return &Mesh{}
		}
		return acc

	case OpDifference:
		if meshes[0].IsEmpty() {
			return &Mesh{}
		}
		acc := meshes[0].Clone()
		for _, m := range meshes[1:] {
			if m.IsEmpty() {
				continue
			}
			acc = k.Difference(acc, m)
			if acc.IsEmpty() {
				return &Mesh{}
			}
		}
		return acc

	case OpIntersection:
		for _, m := range meshes {
			if m.IsEmpty() {
				return &Mesh{}
			}
		}
		acc := meshes[0].Clone()
		for _, m := range meshes[1:] {
			acc = k.Intersection(acc, m)
			if acc.IsEmpty() {
				return &Mesh{}
			}
		}
		return acc
	}

	return &Mesh{}
}
