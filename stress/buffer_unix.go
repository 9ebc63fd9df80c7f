//go:build !windows

package stress

import "golang.org/x/sys/unix"

// AllocBuffer maps n bytes of anonymous memory. The mapping is page aligned,
// which direct I/O requires.
func AllocBuffer(n int) (*Buffer, error) {
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, opErr("alloc", -1, err)
	}
	return &Buffer{b: b, release: func() error { return unix.Munmap(b) }}, nil
}
