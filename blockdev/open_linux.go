//go:build linux

package blockdev

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// openFile opens block devices with O_EXCL, which the kernel turns into an
// exclusive claim that fails with EBUSY while the device is mounted.
func openFile(path string, mode fs.FileMode, direct bool) (*os.File, bool, func(), error) {
	flags := os.O_RDWR
	if mode&fs.ModeDevice != 0 {
		flags |= unix.O_EXCL
	}
	if direct {
		f, err := os.OpenFile(path, flags|unix.O_DIRECT, 0)
		if err == nil {
			return f, true, nil, nil
		}
		if !errors.Is(err, unix.EINVAL) {
			return nil, false, nil, err
		}
	}
	f, err := os.OpenFile(path, flags, 0)
	return f, false, nil, err
}
