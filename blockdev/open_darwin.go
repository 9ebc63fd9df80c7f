//go:build darwin

package blockdev

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// openFile turns off the unified buffer cache with F_NOCACHE. Raw nodes
// (/dev/rdiskN) are uncached already.
func openFile(path string, _ fs.FileMode, direct bool) (*os.File, bool, func(), error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, false, nil, err
	}
	if !direct {
		return f, false, nil, nil
	}
	if _, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1); err != nil {
		return f, false, nil, nil
	}
	return f, true, nil, nil
}
