//go:build !linux && !darwin && !windows

package blockdev

import (
	"os"

	"stressdrive/stress"
)

// Only image files are supported here; see Device.Geometry.
func deviceGeometry(_ *os.File) (stress.Geometry, error) {
	return stress.Geometry{}, ErrUnsupported
}

// Images are opened buffered here, so they keep 512-byte blocks.
func imageBlockSize(_ *os.File) uint32 { return fileBlockSize }
