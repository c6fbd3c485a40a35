//go:build !manifold

// Package manifold provides an exact boolean backend binding to the
// Manifold library. When the "manifold" build tag is not set, this stub
// package is compiled instead, returning an error from New().
//
// Build with: go build -tags=manifold
package manifold

import (
	"errors"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
)

// ErrUnavailable is returned by New in builds without the manifold tag.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")

// New returns ErrUnavailable. Build with -tags=manifold to enable.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}
