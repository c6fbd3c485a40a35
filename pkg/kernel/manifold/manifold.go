//go:build manifold

// Package manifold provides an exact boolean backend binding to the
// Manifold library (https://github.com/elalish/manifold) through CGo.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"log/slog"
	"unsafe"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/logging"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*ManifoldKernel)(nil)

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
// Input meshes must be closed; flat-shaded meshes are welded first.
type ManifoldKernel struct{}

// New creates a new ManifoldKernel.
func New() (kernel.Kernel, error) {
	return &ManifoldKernel{}, nil
}

// Union returns a ∪ b.
func (k *ManifoldKernel) Union(a, b *kernel.Mesh) *kernel.Mesh {
	return run(kernel.OpUnion, a, b)
}

// Difference returns a − b.
func (k *ManifoldKernel) Difference(a, b *kernel.Mesh) *kernel.Mesh {
	return run(kernel.OpDifference, a, b)
}

// Intersection returns a ∩ b.
func (k *ManifoldKernel) Intersection(a, b *kernel.Mesh) *kernel.Mesh {
	return run(kernel.OpIntersection, a, b)
}

func run(op kernel.Op, a, b *kernel.Mesh) *kernel.Mesh {
	ma := toManifold(a)
	if ma == nil {
		return fallback(op, a, b)
	}
	defer C.manifold_delete_manifold(ma)
	mb := toManifold(b)
	if mb == nil {
		return fallback(op, a, b)
	}
	defer C.manifold_delete_manifold(mb)

	alloc := C.manifold_alloc_manifold()
	var out *C.ManifoldManifold
	switch op {
	case kernel.OpUnion:
		out = C.manifold_union(alloc, ma, mb)
	case kernel.OpDifference:
		out = C.manifold_difference(alloc, ma, mb)
	default:
		out = C.manifold_intersection(alloc, ma, mb)
	}
	defer C.manifold_delete_manifold(out)
	return toMesh(out)
}

// toManifold welds m and uploads it. It returns nil when Manifold rejects
// the mesh as not closed or not manifold.
func toManifold(m *kernel.Mesh) *C.ManifoldManifold {
	positions, indices := m.Weld(kernel.DefaultWeldTolerance)
	if len(indices) == 0 {
		return nil
	}
	props := make([]float32, 0, 3*len(positions))
	for _, p := range positions {
		props = append(props, float32(p.X), float32(p.Y), float32(p.Z))
	}

	meshGL := C.manifold_meshgl(C.manifold_alloc_meshgl(),
		(*C.float)(unsafe.Pointer(&props[0])), C.size_t(len(positions)), C.size_t(3),
		(*C.uint32_t)(unsafe.Pointer(&indices[0])), C.size_t(len(indices)/3),
	)
	defer C.manifold_delete_meshgl(meshGL)

	ptr := C.manifold_of_meshgl(C.manifold_alloc_manifold(), meshGL)
	if status := C.manifold_status(ptr); status != C.MANIFOLD_NO_ERROR {
		logging.Logger().Warn("manifold: input mesh rejected", slog.Int("status", int(status)))
		C.manifold_delete_manifold(ptr)
		return nil
	}
	return ptr
}

// toMesh extracts a flat-shaded kernel mesh. MeshGL stores numProp floats
// per vertex with the position first.
func toMesh(ptr *C.ManifoldManifold) *kernel.Mesh {
	meshGL := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), ptr)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return &kernel.Mesh{}
	}
	numProp := int(C.manifold_meshgl_num_prop(meshGL))

	propData := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&propData[0])), meshGL)
	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&indices[0])), meshGL)

	pos := func(i uint32) r3.Vec {
		base := int(i) * numProp
		return r3.Vec{X: float64(propData[base]), Y: float64(propData[base+1]), Z: float64(propData[base+2])}
	}
	bld := kernel.NewBuilder(numTri)
	for t := 0; t < numTri; t++ {
		bld.AddTriangle(pos(indices[3*t]), pos(indices[3*t+1]), pos(indices[3*t+2]))
	}
	return bld.Mesh()
}

func fallback(op kernel.Op, a, b *kernel.Mesh) *kernel.Mesh {
	switch op {
	case kernel.OpUnion:
		return kernel.Merge(a, b)
	case kernel.OpDifference:
		return a.Clone()
	default:
		return &kernel.Mesh{}
	}
}
