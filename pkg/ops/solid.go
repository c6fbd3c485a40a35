package ops

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/topo"
)

type dirEdge struct{ a, b uint32 }

// planarFace is one planar region of a welded mesh with its boundary
// loops. Loops follow the triangle winding: counter-clockwise about the
// normal for outer boundaries, clockwise for holes.
type planarFace struct {
	normal r3.Vec
	loops  [][]uint32
	next   map[uint32]uint32 // boundary successor of each loop vertex
}

// solid is the planar-face view of a mesh used by the edge modifiers.
type solid struct {
	pos   []r3.Vec
	faces []planarFace
	owner map[dirEdge]int // directed boundary edge to the face that owns it
	// around lists the faces touching each vertex.
	around map[uint32][]int
}

// newSolid welds m, splits its T-junctions and chains the boundary of each
// planar face. Errors wrap ErrUnsupportedTopology.
func newSolid(m *kernel.Mesh) (*solid, error) {
	pos, idx := m.Weld(kernel.DefaultWeldTolerance)
	pos, idx = topo.SplitTJunctions(pos, idx, kernel.DefaultWeldTolerance)
	s := &solid{pos: pos, owner: make(map[dirEdge]int), around: make(map[uint32][]int)}
	for _, group := range topo.Segment(pos, idx) {
		f, err := s.faceFrom(idx, group)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedTopology, err)
		}
		fi := len(s.faces)
		s.faces = append(s.faces, f)
		for _, l := range f.loops {
			for i, v := range l {
				e := dirEdge{v, l[(i+1)%len(l)]}
				if _, dup := s.owner[e]; dup {
					return nil, fmt.Errorf("%w: edge %d-%d is used twice in the same direction", ErrUnsupportedTopology, e.a, e.b)
				}
				s.owner[e] = fi
				s.around[v] = append(s.around[v], fi)
			}
		}
	}
	return s, nil
}

// faceFrom chains the boundary edges of a triangle group into loops.
func (s *solid) faceFrom(idx []uint32, group []int) (planarFace, error) {
	count := make(map[dirEdge]int)
	var nsum r3.Vec
	for _, t := range group {
		c := idx[3*t : 3*t+3]
		nsum = r3.Add(nsum, r3.Triangle{s.pos[c[0]], s.pos[c[1]], s.pos[c[2]]}.Normal())
		for k := 0; k < 3; k++ {
			count[dirEdge{c[k], c[(k+1)%3]}]++
		}
	}
	f := planarFace{normal: r3.Unit(nsum), next: make(map[uint32]uint32)}
	for e, n := range count {
		if count[dirEdge{e.b, e.a}] > 0 {
			continue
		}
		if n > 1 {
			return planarFace{}, fmt.Errorf("face boundary edge %d-%d repeats", e.a, e.b)
		}
		if _, ok := f.next[e.a]; ok {
			return planarFace{}, fmt.Errorf("face boundary branches at vertex %d", e.a)
		}
		f.next[e.a] = e.b
	}

	seen := make(map[uint32]bool, len(f.next))
	// Deterministic loop order: walk starting vertices in triangle order.
	for _, t := range group {
		for _, start := range idx[3*t : 3*t+3] {
			if _, ok := f.next[start]; !ok || seen[start] {
				continue
			}
			var loop []uint32
			for v := start; !seen[v]; {
				seen[v] = true
				loop = append(loop, v)
				nv, ok := f.next[v]
				if !ok {
					return planarFace{}, fmt.Errorf("face boundary is open at vertex %d", v)
				}
				v = nv
			}
			if loop[0] != start || f.next[loop[len(loop)-1]] != start {
				return planarFace{}, fmt.Errorf("face boundary does not close at vertex %d", start)
			}
			f.loops = append(f.loops, loop)
		}
	}
	return f, nil
}

// edges returns the directed boundary edges ordered by vertex.
func (s *solid) edges() []dirEdge {
	return slices.SortedFunc(maps.Keys(s.owner), func(x, y dirEdge) int {
		return cmp.Or(cmp.Compare(x.a, y.a), cmp.Compare(x.b, y.b))
	})
}

// vertices returns the boundary vertices in ascending order.
func (s *solid) vertices() []uint32 {
	return slices.Sorted(maps.Keys(s.around))
}

// neighbor returns the face across the boundary edge a→b.
func (s *solid) neighbor(a, b uint32) (int, bool) {
	g, ok := s.owner[dirEdge{b, a}]
	return g, ok
}

// Edge is a sharp edge found by SharpEdges.
type Edge struct {
	A, B   r3.Vec
	Angle  float64 // between the adjacent face normals, degrees
	Convex bool
}

// SharpEdges lists the edges of m where the adjacent planar faces meet at
// more than angle degrees. Open boundary edges are never sharp.
func SharpEdges(m *kernel.Mesh, angle float64) ([]Edge, error) {
	if m.IsEmpty() {
		return nil, nil
	}
	if !(angle > 0) {
		angle = DefaultSharpAngle
	}
	s, err := newSolid(m)
	if err != nil {
		return nil, err
	}
	var out []Edge
	for _, e := range s.edges() {
		fi := s.owner[e]
		if e.a > e.b {
			continue // report each edge once
		}
		gi, ok := s.neighbor(e.a, e.b)
		if !ok {
			continue
		}
		theta := normalAngle(s.faces[fi].normal, s.faces[gi].normal)
		if theta*180/math.Pi <= angle {
			continue
		}
		out = append(out, Edge{
			A:      s.pos[e.a],
			B:      s.pos[e.b],
			Angle:  theta * 180 / math.Pi,
			Convex: s.convex(fi, gi, e),
		})
	}
	return out, nil
}

func normalAngle(a, b r3.Vec) float64 {
	return math.Acos(math.Max(-1, math.Min(1, r3.Dot(a, b))))
}

// convex reports whether the edge e of face fi, shared with face gi, is a
// convex edge of the solid.
func (s *solid) convex(fi, gi int, e dirEdge) bool {
	f := s.faces[fi]
	inward := r3.Cross(f.normal, r3.Sub(s.pos[e.b], s.pos[e.a]))
	return r3.Dot(inward, s.faces[gi].normal) < 0
}
