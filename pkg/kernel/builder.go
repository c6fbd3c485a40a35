package kernel

import "gonum.org/v1/gonum/spatial/r3"

// degenerateArea is twice the area below which a triangle is dropped.
const degenerateArea = 1e-12

// Builder accumulates flat-shaded triangles. Each triangle gets its own
// three vertices carrying the face normal.
type Builder struct {
	m Mesh
}

// NewBuilder returns a builder with room for n triangles.
func NewBuilder(n int) *Builder {
	return &Builder{m: Mesh{
		Vertices: make([]r3.Vec, 0, 3*n),
		Normals:  make([]r3.Vec, 0, 3*n),
		Indices:  make([]uint32, 0, 3*n),
	}}
}

// AddTriangle appends a counter-clockwise triangle. Degenerate triangles
// are skipped; the return value reports whether it was kept.
func (b *Builder) AddTriangle(p0, p1, p2 r3.Vec) bool {
	n := r3.Triangle{p0, p1, p2}.Normal()
	if r3.Norm(n) < degenerateArea {
		return false
	}
	n = r3.Unit(n)
	base := uint32(len(b.m.Vertices))
	b.m.Vertices = append(b.m.Vertices, p0, p1, p2)
	b.m.Normals = append(b.m.Normals, n, n, n)
	b.m.Indices = append(b.m.Indices, base, base+1, base+2)
	return true
}

// AddQuad appends the quad p0-p1-p2-p3 as two triangles.
func (b *Builder) AddQuad(p0, p1, p2, p3 r3.Vec) {
	b.AddTriangle(p0, p1, p2)
	b.AddTriangle(p0, p2, p3)
}

// AddFan triangulates a convex polygon as a fan around its first vertex.
func (b *Builder) AddFan(pts []r3.Vec) {
	for i := 1; i+1 < len(pts); i++ {
		b.AddTriangle(pts[0], pts[i], pts[i+1])
	}
}

// AddMesh appends every triangle of m.
func (b *Builder) AddMesh(m *Mesh) {
	for i := 0; i < m.TriangleCount(); i++ {
		t := m.Triangle(i)
		b.AddTriangle(t[0], t[1], t[2])
	}
}

// Len returns the number of triangles added so far.
func (b *Builder) Len() int {
	return len(b.m.Indices) / 3
}

// Mesh returns the accumulated mesh. The builder must not be reused.
func (b *Builder) Mesh() *Mesh {
	m := b.m
	return &m
}

// FromTriangles builds a flat-shaded mesh from position triples.
func FromTriangles(tris []r3.Triangle) *Mesh {
	b := NewBuilder(len(tris))
	for _, t := range tris {
		b.AddTriangle(t[0], t[1], t[2])
	}
	return b.Mesh()
}

// Box returns an axis-aligned box spanning min to max with outward winding.
func Box(min, max r3.Vec) *Mesh {
	p := func(x, y, z int) r3.Vec {
		v := min
		if x == 1 {
			v.X = max.X
		}
		if y == 1 {
			v.Y = max.Y
		}
		if z == 1 {
			v.Z = max.Z
		}
		return v
	}
	b := NewBuilder(12)
	b.AddQuad(p(0, 0, 0), p(0, 1, 0), p(1, 1, 0), p(1, 0, 0)) // -Z
	b.AddQuad(p(0, 0, 1), p(1, 0, 1), p(1, 1, 1), p(0, 1, 1)) // +Z
	b.AddQuad(p(0, 0, 0), p(1, 0, 0), p(1, 0, 1), p(0, 0, 1)) // -Y
	b.AddQuad(p(0, 1, 0), p(0, 1, 1), p(1, 1, 1), p(1, 1, 0)) // +Y
	b.AddQuad(p(0, 0, 0), p(0, 0, 1), p(0, 1, 1), p(0, 1, 0)) // -X
	b.AddQuad(p(1, 0, 0), p(1, 1, 0), p(1, 1, 1), p(1, 0, 1)) // +X
	return b.Mesh()
}
