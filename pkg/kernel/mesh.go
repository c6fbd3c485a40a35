package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Vertices and Normals are parallel
// arrays; Indices holds 3 entries per triangle. A mesh with zero triangles
// is the empty solid and is a valid value everywhere.
type Mesh struct {
	Vertices []r3.Vec `json:"vertices"`
	Normals  []r3.Vec `json:"normals"`
	Indices  []uint32 `json:"indices"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Indices) / 3
}

// IsEmpty reports whether the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return m.TriangleCount() == 0
}

// Corners returns the vertex indices of triangle i.
func (m *Mesh) Corners(i int) (a, b, c uint32) {
	return m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]
}

// Triangle returns the positions of triangle i.
func (m *Mesh) Triangle(i int) r3.Triangle {
	a, b, c := m.Corners(i)
	return r3.Triangle{m.Vertices[a], m.Vertices[b], m.Vertices[c]}
}

// Bounds returns the axis-aligned bounding box of all referenced vertices.
// The empty mesh has a zero Box.
func (m *Mesh) Bounds() r3.Box {
	if m.IsEmpty() {
		return r3.Box{}
	}
	inf := math.Inf(1)
	box := r3.Box{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
	for _, idx := range m.Indices {
		v := m.Vertices[idx]
		box.Min = r3.Vec{X: math.Min(box.Min.X, v.X), Y: math.Min(box.Min.Y, v.Y), Z: math.Min(box.Min.Z, v.Z)}
		box.Max = r3.Vec{X: math.Max(box.Max.X, v.X), Y: math.Max(box.Max.Y, v.Y), Z: math.Max(box.Max.Z, v.Z)}
	}
	return box
}

// Clone returns a deep copy. Cloning nil yields an empty mesh.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return &Mesh{}
	}
	return &Mesh{
		Vertices: append([]r3.Vec(nil), m.Vertices...),
		Normals:  append([]r3.Vec(nil), m.Normals...),
		Indices:  append([]uint32(nil), m.Indices...),
	}
}

// Merge concatenates meshes without welding or removing overlaps.
func Merge(meshes ...*Mesh) *Mesh {
	out := &Mesh{}
	for _, m := range meshes {
		if m.IsEmpty() {
			continue
		}
		base := uint32(len(out.Vertices))
		out.Vertices = append(out.Vertices, m.Vertices...)
		out.Normals = append(out.Normals, m.Normals...)
		for _, idx := range m.Indices {
			out.Indices = append(out.Indices, base+idx)
		}
	}
	return out
}

// FlipWinding returns a copy with every triangle's winding reversed and
// every normal negated.
func (m *Mesh) FlipWinding() *Mesh {
	out := m.Clone()
	for i := range out.Normals {
		out.Normals[i] = r3.Scale(-1, out.Normals[i])
	}
	for i := 0; i+2 < len(out.Indices); i += 3 {
		out.Indices[i+1], out.Indices[i+2] = out.Indices[i+2], out.Indices[i+1]
	}
	return out
}

// Volume returns the signed enclosed volume. Closed, outward-wound meshes
// yield a positive value.
func (m *Mesh) Volume() float64 {
	var v float64
	for i := 0; i < m.TriangleCount(); i++ {
		t := m.Triangle(i)
		v += r3.Dot(t[0], r3.Cross(t[1], t[2]))
	}
	return v / 6
}

// Area returns the total surface area.
func (m *Mesh) Area() float64 {
	var a float64
	for i := 0; i < m.TriangleCount(); i++ {
		a += m.Triangle(i).Area()
	}
	return a
}

// Validate checks the structural invariants: parallel vertex and normal
// arrays, whole index triples, in-range indices and distinct corners.
func (m *Mesh) Validate() error {
	if m == nil {
		return nil
	}
	if len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("mesh: %d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh: index count %d is not a multiple of 3", len(m.Indices))
	}
	n := uint32(len(m.Vertices))
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Corners(i)
		if a >= n || b >= n || c >= n {
			return fmt.Errorf("mesh: triangle %d references a vertex out of range", i)
		}
		if a == b || b == c || a == c {
			return fmt.Errorf("mesh: triangle %d repeats a vertex", i)
		}
	}
	return nil
}

// Flat returns float32 position, normal and index arrays in the layout
// renderers and exporters consume.
func (m *Mesh) Flat() (vertices, normals []float32, indices []uint32) {
	if m == nil {
		return nil, nil, nil
	}
	vertices = make([]float32, 0, 3*len(m.Vertices))
	normals = make([]float32, 0, 3*len(m.Normals))
	for _, v := range m.Vertices {
		vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
	}
	for _, n := range m.Normals {
		normals = append(normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	return vertices, normals, append([]uint32(nil), m.Indices...)
}

// SmoothNormals recomputes per-vertex normals as the area-weighted average
// of incident face normals.
func (m *Mesh) SmoothNormals() {
	normals := make([]r3.Vec, len(m.Vertices))
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Corners(i)
		n := m.Triangle(i).Normal() // magnitude is twice the area
		normals[a] = r3.Add(normals[a], n)
		normals[b] = r3.Add(normals[b], n)
		normals[c] = r3.Add(normals[c], n)
	}
	for i, n := range normals {
		if r3.Norm(n) > 1e-12 {
			normals[i] = r3.Unit(n)
		}
	}
	m.Normals = normals
}
