package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultWeldTolerance is the position tolerance used to merge coincident
// vertices of flat-shaded meshes.
const DefaultWeldTolerance = 1e-6

// WeldMap merges vertices whose positions agree within tol. remap[i] is the
// shared index of vertex i in positions. A vertex joins the earliest kept
// vertex within tol, so points on either side of a grid cell boundary still
// merge.
func (m *Mesh) WeldMap(tol float64) (positions []r3.Vec, remap []uint32) {
	if m == nil || len(m.Vertices) == 0 {
		return nil, nil
	}
	if tol <= 0 {
		tol = DefaultWeldTolerance
	}
	type cell struct{ x, y, z int64 }
	key := func(v r3.Vec) cell {
		return cell{int64(math.Floor(v.X / tol)), int64(math.Floor(v.Y / tol)), int64(math.Floor(v.Z / tol))}
	}

	lookup := make(map[cell][]uint32, len(m.Vertices))
	remap = make([]uint32, len(m.Vertices))
	for i, v := range m.Vertices {
		k := key(v)
		id, found := uint32(0), false
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, c := range lookup[cell{k.x + dx, k.y + dy, k.z + dz}] {
						if (!found || c < id) && r3.Norm(r3.Sub(positions[c], v)) <= tol {
							id, found = c, true
						}
					}
				}
			}
		}
		if !found {
			id = uint32(len(positions))
			positions = append(positions, v)
			lookup[k] = append(lookup[k], id)
		}
		remap[i] = id
	}
	return positions, remap
}

// Weld merges vertices whose positions agree within tol and returns the
// shared positions and the re-indexed triangle list. Triangles that
// collapse under welding are dropped.
func (m *Mesh) Weld(tol float64) (positions []r3.Vec, indices []uint32) {
	if m.IsEmpty() {
		return nil, nil
	}
	positions, remap := m.WeldMap(tol)
	indices = make([]uint32, 0, len(m.Indices))
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Corners(i)
		ra, rb, rc := remap[a], remap[b], remap[c]
		if ra == rb || rb == rc || ra == rc {
			continue
		}
		indices = append(indices, ra, rb, rc)
	}
	return positions, indices
}
