package ops

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

// Shell hollows m into walls of the given thickness. The inner surface is
// m offset inward with reversed winding. Triangles listed in open are
// removed from both surfaces and the resulting rims are joined by walls.
func Shell(m *kernel.Mesh, thickness float64, open []int) *kernel.Mesh {
	if out, ok := unchanged(m, thickness); !ok {
		return out
	}
	pos, remap := m.WeldMap(kernel.DefaultWeldTolerance)
	isOpen := make(map[int]bool, len(open))
	for _, t := range open {
		isOpen[t] = true
	}

	type tri [3]uint32
	var kept []tri
	removed := make(map[dirEdge]bool)
	planes := make([][]r3.Vec, len(pos)) // distinct face normals per vertex
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Corners(i)
		t := tri{remap[a], remap[b], remap[c]}
		if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
			continue
		}
		n := r3.Triangle{pos[t[0]], pos[t[1]], pos[t[2]]}.Normal()
		if r3.Norm(n) < 1e-12 {
			continue
		}
		if isOpen[i] {
			for k := 0; k < 3; k++ {
				removed[dirEdge{t[k], t[(k+1)%3]}] = true
			}
			continue
		}
		kept = append(kept, t)
		n = r3.Unit(n)
		for _, v := range t {
			planes[v] = addPlane(planes[v], n)
		}
	}

	inner := make([]r3.Vec, len(pos))
	for v, ns := range planes {
		if len(ns) > 0 {
			inner[v] = r3.Add(pos[v], offset(ns, thickness))
		}
	}

	b := kernel.NewBuilder(2*len(kept) + 6)
	for _, t := range kept {
		b.AddTriangle(pos[t[0]], pos[t[1]], pos[t[2]])
		b.AddTriangle(inner[t[0]], inner[t[2]], inner[t[1]])
		for k := 0; k < 3; k++ {
			u, v := t[k], t[(k+1)%3]
			if removed[dirEdge{v, u}] {
				b.AddQuad(pos[v], pos[u], inner[u], inner[v])
			}
		}
	}
	return b.Mesh()
}

// addPlane appends n unless an almost parallel normal is already present.
func addPlane(ns []r3.Vec, n r3.Vec) []r3.Vec {
	for _, have := range ns {
		if r3.Dot(have, n) > 1-1e-6 {
			return ns
		}
	}
	return append(ns, n)
}

// offset returns the displacement that moves a vertex by t into every
// plane through it: the minimum-norm least-squares solution of n_i·x = -t.
func offset(ns []r3.Vec, t float64) r3.Vec {
	if len(ns) == 1 {
		return r3.Scale(-t, ns[0])
	}
	a := mat.NewDense(len(ns), 3, nil)
	rhs := mat.NewVecDense(len(ns), nil)
	for i, n := range ns {
		a.SetRow(i, []float64{n.X, n.Y, n.Z})
		rhs.SetVec(i, -t)
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return r3.Scale(-t, ns[0])
	}
	rank := svd.Rank(1e-6)
	if rank < 1 {
		return r3.Scale(-t, ns[0])
	}
	var x mat.VecDense
	svd.SolveVecTo(&x, rhs, rank)
	return r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
}
