package sketch

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

// SolverOptions bounds the Gauss-Newton iteration.
type SolverOptions struct {
	MaxIterations int
	Tolerance     float64 // on the residual 2-norm
}

// DefaultSolverOptions returns the options used when none are given.
func DefaultSolverOptions() SolverOptions {
	return SolverOptions{MaxIterations: 100, Tolerance: 1e-10}
}

// rankTolerance is the relative singular value cutoff used for rank.
const rankTolerance = 1e-9

// Solution is the outcome of Solve. It is always populated; a solve that
// does not converge returns the best parameters found.
type Solution struct {
	Elements   []feature.Element
	DOF        int
	Converged  bool
	Residual   float64
	Iterations int
	// Unresolved lists the indices of constraints that reference unknown
	// elements or points, or mismatched element kinds. They contribute no
	// equations.
	Unresolved []int
}

// residual evaluates one constraint's equations into out.
type residual struct {
	n  int
	fn func(x []float64, out []float64)
}

// system is the flattened parameter vector and the equations over it.
type system struct {
	offsets map[feature.ElementID]int
	kinds   map[feature.ElementID]feature.ElementKind
	eqs     []residual
	rows    int
}

// Solve adjusts element parameters until the constraints hold. Unknowns
// are every element's raw parameters. Each step is the minimum-norm least
// squares solution of J·δ = −r, halved until the residual improves. It
// never panics.
func Solve(elements []feature.Element, constraints []feature.Constraint, opts SolverOptions) Solution {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultSolverOptions().MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultSolverOptions().Tolerance
	}

	var x []float64
	sys := &system{
		offsets: make(map[feature.ElementID]int, len(elements)),
		kinds:   make(map[feature.ElementID]feature.ElementKind, len(elements)),
	}
	for _, e := range elements {
		if !e.Valid() {
			continue
		}
		sys.offsets[e.ID] = len(x)
		sys.kinds[e.ID] = e.Kind
		x = append(x, e.Params...)
	}

	sol := Solution{}
	for i, c := range constraints {
		eq, ok := sys.equation(c)
		if !ok {
			sol.Unresolved = append(sol.Unresolved, i)
			continue
		}
		sys.eqs = append(sys.eqs, eq)
		sys.rows += eq.n
	}

	n := len(x)
	if sys.rows == 0 || n == 0 {
		sol.Elements = unflatten(elements, sys, x)
		sol.DOF = n
		sol.Converged = true
		return sol
	}

	r := sys.eval(x)
	norm := mat.Norm(mat.NewVecDense(len(r), r), 2)
	for sol.Iterations < opts.MaxIterations && norm > opts.Tolerance {
		sol.Iterations++
		J := sys.jacobian(x)
		var svd mat.SVD
		if !svd.Factorize(J, mat.SVDThin) {
			break
		}
		rank := svd.Rank(rankTolerance)
		if rank < 1 {
			break
		}
		neg := make([]float64, len(r))
		for i, v := range r {
			neg[i] = -v
		}
		var delta mat.VecDense
		svd.SolveVecTo(&delta, mat.NewVecDense(len(neg), neg), rank)

		improved := false
		for step := 1.0; step > 1e-6; step /= 2 {
			trial := make([]float64, n)
			for i := range x {
				trial[i] = x[i] + step*delta.AtVec(i)
			}
			tr := sys.eval(trial)
			tn := mat.Norm(mat.NewVecDense(len(tr), tr), 2)
			if tn < norm && !math.IsNaN(tn) {
				x, r, norm = trial, tr, tn
				improved = true
				break
			}
		}
		if !improved {
			break
		}
	}

	sol.Elements = unflatten(elements, sys, x)
	sol.Residual = norm
	sol.Converged = norm <= opts.Tolerance
	sol.DOF = n - sys.rank(x)
	return sol
}

func (s *system) eval(x []float64) []float64 {
	out := make([]float64, s.rows)
	row := 0
	for _, eq := range s.eqs {
		eq.fn(x, out[row:row+eq.n])
		row += eq.n
	}
	return out
}

// jacobian is the central-difference Jacobian at x.
func (s *system) jacobian(x []float64) *mat.Dense {
	n := len(x)
	J := mat.NewDense(s.rows, n, nil)
	xp := append([]float64(nil), x...)
	for j := 0; j < n; j++ {
		h := 1e-7 * math.Max(1, math.Abs(x[j]))
		xp[j] = x[j] + h
		fp := s.eval(xp)
		xp[j] = x[j] - h
		fm := s.eval(xp)
		xp[j] = x[j]
		for i := 0; i < s.rows; i++ {
			J.Set(i, j, (fp[i]-fm[i])/(2*h))
		}
	}
	return J
}

// rank returns the number of independent equations at x.
func (s *system) rank(x []float64) int {
	var svd mat.SVD
	if !svd.Factorize(s.jacobian(x), mat.SVDThin) {
		return 0
	}
	return svd.Rank(rankTolerance)
}

func unflatten(elements []feature.Element, s *system, x []float64) []feature.Element {
	out := make([]feature.Element, len(elements))
	for i, e := range elements {
		out[i] = feature.Element{ID: e.ID, Kind: e.Kind, Params: append([]float64(nil), e.Params...)}
		if off, ok := s.offsets[e.ID]; ok && e.Valid() {
			copy(out[i].Params, x[off:off+e.Kind.ParamCount()])
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Equations
// ---------------------------------------------------------------------------

// point returns an accessor for a referenced point.
func (s *system) point(ref feature.PointRef) (func(x []float64) r2.Vec, bool) {
	off, ok := s.offsets[ref.Element]
	if !ok {
		return nil, false
	}
	kind := s.kinds[ref.Element]
	n := kind.ParamCount()
	probe := make([]float64, n)
	if _, ok := feature.ElementPoint(kind, probe, ref.Role); !ok {
		return nil, false
	}
	return func(x []float64) r2.Vec {
		p, _ := feature.ElementPoint(kind, x[off:off+n], ref.Role)
		return p.R2()
	}, true
}

// element returns the parameter offset of an element of one of kinds.
func (s *system) element(id feature.ElementID, kinds ...feature.ElementKind) (int, feature.ElementKind, bool) {
	off, ok := s.offsets[id]
	if !ok {
		return 0, 0, false
	}
	k := s.kinds[id]
	for _, want := range kinds {
		if k == want {
			return off, k, true
		}
	}
	return 0, 0, false
}

func (s *system) twoPoints(c feature.Constraint) (func([]float64) r2.Vec, func([]float64) r2.Vec, bool) {
	if len(c.Points) < 2 {
		return nil, nil, false
	}
	p0, ok0 := s.point(c.Points[0])
	p1, ok1 := s.point(c.Points[1])
	return p0, p1, ok0 && ok1
}

// lineDir returns the direction vector of a line element.
func lineDir(x []float64, off int) r2.Vec {
	return r2.Vec{X: x[off+2] - x[off], Y: x[off+3] - x[off+1]}
}

func unitOrSelf(v r2.Vec) r2.Vec {
	if n := r2.Norm(v); n > 1e-12 {
		return r2.Scale(1/n, v)
	}
	return v
}

func (s *system) equation(c feature.Constraint) (residual, bool) {
	switch c.Kind {
	case feature.ConstraintCoincident:
		p0, p1, ok := s.twoPoints(c)
		if !ok {
			return residual{}, false
		}
		return residual{n: 2, fn: func(x, out []float64) {
			d := r2.Sub(p0(x), p1(x))
			out[0], out[1] = d.X, d.Y
		}}, true

	case feature.ConstraintHorizontal, feature.ConstraintVertical:
		horizontal := c.Kind == feature.ConstraintHorizontal
		pick := func(v r2.Vec) float64 {
			if horizontal {
				return v.Y
			}
			return v.X
		}
		if len(c.Elements) > 0 {
			off, _, ok := s.element(c.Elements[0], feature.ElementLine)
			if !ok {
				return residual{}, false
			}
			return residual{n: 1, fn: func(x, out []float64) {
				out[0] = pick(lineDir(x, off))
			}}, true
		}
		p0, p1, ok := s.twoPoints(c)
		if !ok {
			return residual{}, false
		}
		return residual{n: 1, fn: func(x, out []float64) {
			out[0] = pick(p0(x)) - pick(p1(x))
		}}, true

	case feature.ConstraintParallel, feature.ConstraintPerpendicular:
		if len(c.Elements) < 2 {
			return residual{}, false
		}
		a, _, okA := s.element(c.Elements[0], feature.ElementLine)
		b, _, okB := s.element(c.Elements[1], feature.ElementLine)
		if !okA || !okB {
			return residual{}, false
		}
		parallel := c.Kind == feature.ConstraintParallel
		return residual{n: 1, fn: func(x, out []float64) {
			da, db := unitOrSelf(lineDir(x, a)), unitOrSelf(lineDir(x, b))
			if parallel {
				out[0] = r2.Cross(da, db)
			} else {
				out[0] = r2.Dot(da, db)
			}
		}}, true

	case feature.ConstraintEqual:
		return s.equal(c)

	case feature.ConstraintConcentric:
		if len(c.Elements) < 2 {
			return residual{}, false
		}
		a, _, okA := s.element(c.Elements[0], feature.ElementCircle, feature.ElementArc)
		b, _, okB := s.element(c.Elements[1], feature.ElementCircle, feature.ElementArc)
		if !okA || !okB {
			return residual{}, false
		}
		return residual{n: 2, fn: func(x, out []float64) {
			out[0], out[1] = x[a]-x[b], x[a+1]-x[b+1]
		}}, true

	case feature.ConstraintFixedPoint:
		if len(c.Points) < 1 || c.Target == nil {
			return residual{}, false
		}
		p, ok := s.point(c.Points[0])
		if !ok {
			return residual{}, false
		}
		target := c.Target.R2()
		return residual{n: 2, fn: func(x, out []float64) {
			d := r2.Sub(p(x), target)
			out[0], out[1] = d.X, d.Y
		}}, true

	case feature.ConstraintDistance:
		value := c.Value
		if len(c.Points) >= 2 {
			p0, p1, ok := s.twoPoints(c)
			if !ok {
				return residual{}, false
			}
			return residual{n: 1, fn: func(x, out []float64) {
				out[0] = r2.Norm(r2.Sub(p0(x), p1(x))) - value
			}}, true
		}
		if len(c.Elements) > 0 {
			off, _, ok := s.element(c.Elements[0], feature.ElementLine)
			if !ok {
				return residual{}, false
			}
			return residual{n: 1, fn: func(x, out []float64) {
				out[0] = r2.Norm(lineDir(x, off)) - value
			}}, true
		}
		return residual{}, false

	case feature.ConstraintRadius:
		if len(c.Elements) < 1 {
			return residual{}, false
		}
		off, _, ok := s.element(c.Elements[0], feature.ElementCircle, feature.ElementArc)
		if !ok {
			return residual{}, false
		}
		value := c.Value
		return residual{n: 1, fn: func(x, out []float64) {
			out[0] = x[off+2] - value
		}}, true
	}
	return residual{}, false
}

func (s *system) equal(c feature.Constraint) (residual, bool) {
	if len(c.Elements) < 2 {
		return residual{}, false
	}
	a, ka, okA := s.element(c.Elements[0], feature.ElementLine, feature.ElementCircle, feature.ElementArc, feature.ElementRect)
	b, kb, okB := s.element(c.Elements[1], feature.ElementLine, feature.ElementCircle, feature.ElementArc, feature.ElementRect)
	if !okA || !okB {
		return residual{}, false
	}
	round := func(k feature.ElementKind) bool { return k == feature.ElementCircle || k == feature.ElementArc }
	switch {
	case ka == feature.ElementLine && kb == feature.ElementLine:
		return residual{n: 1, fn: func(x, out []float64) {
			out[0] = r2.Norm(lineDir(x, a)) - r2.Norm(lineDir(x, b))
		}}, true
	case round(ka) && round(kb):
		return residual{n: 1, fn: func(x, out []float64) {
			out[0] = x[a+2] - x[b+2]
		}}, true
	case ka == feature.ElementRect && kb == feature.ElementRect:
		return residual{n: 2, fn: func(x, out []float64) {
			out[0], out[1] = x[a+2]-x[b+2], x[a+3]-x[b+3]
		}}, true
	}
	return residual{}, false
}
