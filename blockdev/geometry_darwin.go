//go:build darwin

package blockdev

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"stressdrive/stress"
)

const (
	dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, uint32)
	dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, uint64)
)

func deviceGeometry(f *os.File) (stress.Geometry, error) {
	var blockSize uint32
	var blockCount uint64

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), dkiocGetBlockSize, uintptr(unsafe.Pointer(&blockSize)))
	if errno != 0 {
		return stress.Geometry{}, fmt.Errorf("ioctl(DKIOCGETBLOCKSIZE): %w", errno)
	}
	_, _, errno = unix.Syscall(unix.SYS_IOCTL, f.Fd(), dkiocGetBlockCount, uintptr(unsafe.Pointer(&blockCount)))
	if errno != 0 {
		return stress.Geometry{}, fmt.Errorf("ioctl(DKIOCGETBLOCKCOUNT): %w", errno)
	}
	return stress.Geometry{BlockSize: blockSize, BlockCount: blockCount}, nil
}

// F_NOCACHE imposes no alignment, so images keep 512-byte blocks.
func imageBlockSize(_ *os.File) uint32 { return fileBlockSize }
