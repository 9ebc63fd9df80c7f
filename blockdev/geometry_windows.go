//go:build windows

package blockdev

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"

	"stressdrive/stress"
)

const ioctlDiskGetDriveGeometryEx = 0x700a0

type diskGeometryEx struct {
	Cylinders         int64
	MediaType         uint32
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
	DiskSize          int64
	Data              [8]byte
}

func deviceGeometry(f *os.File) (stress.Geometry, error) {
	var g diskGeometryEx
	var n uint32
	err := windows.DeviceIoControl(windows.Handle(f.Fd()), ioctlDiskGetDriveGeometryEx,
		nil, 0, (*byte)(unsafe.Pointer(&g)), uint32(unsafe.Sizeof(g)), &n, nil)
	if err != nil {
		return stress.Geometry{}, fmt.Errorf("IOCTL_DISK_GET_DRIVE_GEOMETRY_EX: %w", err)
	}
	if g.BytesPerSector == 0 {
		return stress.Geometry{}, fmt.Errorf("IOCTL_DISK_GET_DRIVE_GEOMETRY_EX: zero sector size")
	}
	return stress.Geometry{BlockSize: g.BytesPerSector, BlockCount: uint64(g.DiskSize) / uint64(g.BytesPerSector)}, nil
}

// Images are opened buffered here, so they keep 512-byte blocks.
func imageBlockSize(_ *os.File) uint32 { return fileBlockSize }
