//go:build windows

package blockdev

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// tryLock locks image files with LockFileEx. Devices are opened with a zero
// share mode, which already excludes every other opener.
func tryLock(f *os.File, regular bool) (bool, error) {
	if !regular {
		return true, nil
	}
	var ol windows.Overlapped
	err := windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, ^uint32(0), ^uint32(0), &ol)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return false, nil
	}
	return err == nil, err
}
