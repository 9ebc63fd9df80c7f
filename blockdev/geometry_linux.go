//go:build linux

package blockdev

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"stressdrive/stress"
)

// deviceGeometry uses the logical sector size and the byte size of the
// device; the block count is their quotient.
func deviceGeometry(f *os.File) (stress.Geometry, error) {
	bs, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil {
		return stress.Geometry{}, fmt.Errorf("ioctl(BLKSSZGET): %w", err)
	}
	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return stress.Geometry{}, fmt.Errorf("ioctl(BLKGETSIZE64): %w", errno)
	}
	if bs <= 0 {
		return stress.Geometry{}, fmt.Errorf("ioctl(BLKSSZGET): invalid block size %d", bs)
	}
	return stress.Geometry{BlockSize: uint32(bs), BlockCount: size / uint64(bs)}, nil
}

// imageBlockSize is the block size of the filesystem holding an image. Odd
// values (network filesystems report their transfer size) fall back to 4 KiB.
func imageBlockSize(f *os.File) uint32 {
	var st unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &st); err != nil {
		return directFallbackBlockSize
	}
	bs := int64(st.Bsize)
	if bs < fileBlockSize || bs > 1<<16 || bs&(bs-1) != 0 {
		return directFallbackBlockSize
	}
	return uint32(bs)
}
