// Package topo identifies faces of a triangle mesh by geometry rather than
// by triangle index. A face is a connected set of coplanar triangles; a
// reference to it stores the owning feature, the face centroid and its
// normal, and is re-resolved after re-tessellation by nearest match.
package topo

import (
	"errors"
	"fmt"

	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

var (
	ErrNoFace      = errors.New("topo: no matching face")
	ErrBadTriangle = errors.New("topo: triangle index out of range")
)

const (
	// normalTolerance is the cosine above which adjacent triangles count as
	// coplanar.
	normalTolerance = 1 - 1e-6
	// MatchCosine is the minimum agreement between a reference normal and a
	// candidate face normal.
	MatchCosine = 0.9
	// minArea is the area below which a triangle is ignored.
	minArea = 1e-15
)

// Face is a maximal connected set of coplanar triangles.
type Face struct {
	Triangles []int
	Centroid  r3.Vec // area weighted
	Normal    r3.Vec // unit
	Area      float64
}

// Faces segments m into planar faces. Triangles are joined when they share
// an edge after welding and their normals agree. Degenerate triangles
// belong to no face.
func Faces(m *kernel.Mesh) []Face {
	if m.IsEmpty() {
		return nil
	}
	positions, remap := m.WeldMap(kernel.DefaultWeldTolerance)
	idx := make([]uint32, len(m.Indices))
	for i, v := range m.Indices {
		idx[i] = remap[v]
	}

	groups := Segment(positions, idx)
	faces := make([]Face, len(groups))
	for i, g := range groups {
		faces[i].Triangles = g
		summarize(m, &faces[i])
	}
	return faces
}

// Segment groups the triangles of an indexed mesh into maximal connected
// sets of coplanar triangles. Triangle numbering follows indices; collapsed
// or zero-area triangles belong to no group.
func Segment(positions []r3.Vec, indices []uint32) [][]int {
	n := len(indices) / 3
	normals := make([]r3.Vec, n)
	live := make([]bool, n)
	for i := 0; i < n; i++ {
		a, b, c := indices[3*i], indices[3*i+1], indices[3*i+2]
		if a == b || b == c || a == c {
			continue
		}
		nn := r3.Triangle{positions[a], positions[b], positions[c]}.Normal()
		if r3.Norm(nn) > 2*minArea {
			normals[i] = r3.Unit(nn)
			live[i] = true
		}
	}

	type edge struct{ a, b uint32 }
	key := func(a, b uint32) edge {
		if a > b {
			a, b = b, a
		}
		return edge{a, b}
	}
	adjacent := make(map[edge][]int, 3*n/2)
	for i := 0; i < n; i++ {
		if !live[i] {
			continue
		}
		c := indices[3*i : 3*i+3]
		for k := 0; k < 3; k++ {
			e := key(c[k], c[(k+1)%3])
			adjacent[e] = append(adjacent[e], i)
		}
	}

	group := make([]int, n)
	for i := range group {
		group[i] = -1
	}
	var groups [][]int
	for seed := 0; seed < n; seed++ {
		if group[seed] >= 0 || !live[seed] {
			continue
		}
		id := len(groups)
		var members []int
		queue := []int{seed}
		group[seed] = id
		for len(queue) > 0 {
			t := queue[0]
			queue = queue[1:]
			members = append(members, t)
			c := indices[3*t : 3*t+3]
			for k := 0; k < 3; k++ {
				for _, u := range adjacent[key(c[k], c[(k+1)%3])] {
					if group[u] >= 0 || r3.Dot(normals[u], normals[seed]) < normalTolerance {
						continue
					}
					group[u] = id
					queue = append(queue, u)
				}
			}
		}
		groups = append(groups, members)
	}
	return groups
}

func summarize(m *kernel.Mesh, f *Face) {
	var c, nsum r3.Vec
	for _, t := range f.Triangles {
		tri := m.Triangle(t)
		nn := tri.Normal() // twice the area
		w := r3.Norm(nn) / 2
		c = r3.Add(c, r3.Scale(w, tri.Centroid()))
		nsum = r3.Add(nsum, nn)
		f.Area += w
	}
	if f.Area > 0 {
		f.Centroid = r3.Scale(1/f.Area, c)
	}
	if r3.Norm(nsum) > 0 {
		f.Normal = r3.Unit(nsum)
	}
}

// FaceOf returns the face containing triangle tri.
func FaceOf(faces []Face, tri int) (Face, bool) {
	for _, f := range faces {
		for _, t := range f.Triangles {
			if t == tri {
				return f, true
			}
		}
	}
	return Face{}, false
}

// Capture records a reference to the face of m containing triangle tri,
// owned by the feature that produced m.
func Capture(m *kernel.Mesh, tri int, owner feature.ID) (feature.FaceRef, error) {
	if tri < 0 || tri >= m.TriangleCount() {
		return feature.FaceRef{}, fmt.Errorf("%w: %d of %d", ErrBadTriangle, tri, m.TriangleCount())
	}
	f, ok := FaceOf(Faces(m), tri)
	if !ok {
		return feature.FaceRef{}, fmt.Errorf("%w: triangle %d is degenerate", ErrNoFace, tri)
	}
	return Ref(owner, f), nil
}

// Ref builds a reference to f.
func Ref(owner feature.ID, f Face) feature.FaceRef {
	return feature.FaceRef{Feature: owner, Centroid: feature.V3(f.Centroid), Normal: feature.V3(f.Normal)}
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// entry adapts a face to rtreego.Spatial, keyed by its centroid.
type entry struct {
	face *Face
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

func point(v r3.Vec) rtreego.Point { return rtreego.Point{v.X, v.Y, v.Z} }

// Index answers nearest-face queries over one mesh.
type Index struct {
	faces []Face
	tree  *rtreego.Rtree
}

// NewIndex segments m and indexes its faces by centroid.
func NewIndex(m *kernel.Mesh) *Index {
	ix := &Index{faces: Faces(m), tree: rtreego.NewTree(3, 4, 16)}
	for i := range ix.faces {
		f := &ix.faces[i]
		ix.tree.Insert(&entry{face: f, rect: point(f.Centroid).ToRect(1e-9)})
	}
	return ix
}

// Faces returns the indexed faces.
func (ix *Index) Faces() []Face { return ix.faces }

// Resolve returns the face whose centroid is nearest to the reference
// centroid among faces whose normal agrees with the reference normal.
func (ix *Index) Resolve(ref feature.FaceRef) (Face, error) {
	want := ref.Normal.R3()
	if r3.Norm(want) < 1e-12 {
		return Face{}, fmt.Errorf("%w: reference has no normal", ErrNoFace)
	}
	want = r3.Unit(want)
	agrees := func(_ []rtreego.Spatial, obj rtreego.Spatial) (bool, bool) {
		return r3.Dot(obj.(*entry).face.Normal, want) < MatchCosine, false
	}
	found := ix.tree.NearestNeighbors(1, point(ref.Centroid.R3()), agrees)
	if len(found) == 0 || found[0] == nil {
		return Face{}, fmt.Errorf("%w: near %v facing %v", ErrNoFace, ref.Centroid, ref.Normal)
	}
	return *found[0].(*entry).face, nil
}

// Resolve is a one-shot NewIndex(m).Resolve(ref).
func Resolve(m *kernel.Mesh, ref feature.FaceRef) (Face, error) {
	return NewIndex(m).Resolve(ref)
}

// Triangles resolves every reference against m and returns the union of
// their triangles. References that do not resolve are returned as errors
// alongside the triangles that did.
func Triangles(m *kernel.Mesh, refs []feature.FaceRef) ([]int, []error) {
	if len(refs) == 0 {
		return nil, nil
	}
	ix := NewIndex(m)
	seen := make(map[int]bool)
	var out []int
	var errs []error
	for _, r := range refs {
		f, err := ix.Resolve(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, t := range f.Triangles {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, errs
}
