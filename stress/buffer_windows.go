//go:build windows

package stress

import "github.com/ncw/directio"

// AllocBuffer allocates n bytes aligned for FILE_FLAG_NO_BUFFERING. The
// memory belongs to the Go heap, so release is a no-op.
func AllocBuffer(n int) (*Buffer, error) {
	return &Buffer{b: directio.AlignedBlock(n), release: func() error { return nil }}, nil
}
