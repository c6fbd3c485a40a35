package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

// writeOBJ writes m as a Wavefront OBJ file. The feature history of t is
// carried in a comment line so the model can be reopened for editing.
func writeOBJ(w io.Writer, m *kernel.Mesh, t feature.Tree) error {
	block, err := feature.EmbedHistory(t)
	if err != nil {
		return fmt.Errorf("embed history: %w", err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# ioscad")
	fmt.Fprintf(bw, "# %s\n", block)
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z)
	}
	for _, n := range m.Normals {
		fmt.Fprintf(bw, "vn %g %g %g\n", n.X, n.Y, n.Z)
	}
	hasNormals := len(m.Normals) == len(m.Vertices)
	for i := range m.TriangleCount() {
		a, b, c := m.Corners(i)
		if hasNormals {
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", a+1, a+1, b+1, b+1, c+1, c+1)
		} else {
			fmt.Fprintf(bw, "f %d %d %d\n", a+1, b+1, c+1)
		}
	}
	return bw.Flush()
}
