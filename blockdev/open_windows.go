//go:build windows

package blockdev

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

const (
	fsctlLockVolume     = 0x90018
	fsctlDismountVolume = 0x90020
	fsctlUnlockVolume   = 0x9001c
)

// openFile opens image files normally. Device paths (\\.\X:, \\.\PhysicalDriveN)
// are opened with no sharing and write-through; drive letters are locked and
// dismounted first, and stay locked until release is called.
func openFile(path string, mode fs.FileMode, direct bool) (*os.File, bool, func(), error) {
	if mode.IsRegular() {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		return f, false, nil, err
	}

	vol, err := lockVolume(path)
	if err != nil {
		return nil, false, nil, err
	}
	release := func() { unlockVolume(vol) }

	flags := uint32(windows.FILE_FLAG_WRITE_THROUGH)
	if direct {
		flags |= windows.FILE_FLAG_NO_BUFFERING
	}
	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(path),
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		flags,
		0,
	)
	if err != nil {
		release()
		return nil, false, nil, fmt.Errorf("cannot open device %s (run as administrator and close programs using the drive): %w", path, err)
	}
	return os.NewFile(uintptr(h), path), direct, release, nil
}

// lockVolume locks and dismounts a drive-letter volume. It returns 0 for
// paths that are not drive letters or when locking is not supported.
func lockVolume(devicePath string) (windows.Handle, error) {
	if len(devicePath) < 6 || !strings.HasPrefix(devicePath, `\\.\`) {
		return 0, nil
	}
	letter := strings.ToUpper(devicePath[4:5])
	if letter < "A" || letter > "Z" || devicePath[5] != ':' {
		return 0, nil
	}
	volumePath := `\\.\` + letter + `:`

	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(volumePath),
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return 0, fmt.Errorf("cannot open volume %s: %w", volumePath, err)
	}

	var n uint32
	if err := windows.DeviceIoControl(h, fsctlLockVolume, nil, 0, nil, 0, &n, nil); err != nil {
		windows.CloseHandle(h)
		if err == windows.ERROR_NOT_SUPPORTED {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot lock volume %s (volume in use): %w", volumePath, err)
	}
	if err := windows.DeviceIoControl(h, fsctlDismountVolume, nil, 0, nil, 0, &n, nil); err != nil {
		unlockVolume(h)
		if err == windows.ERROR_NOT_SUPPORTED {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot dismount volume %s: %w", volumePath, err)
	}
	return h, nil
}

func unlockVolume(h windows.Handle) {
	if h == 0 {
		return
	}
	var n uint32
	_ = windows.DeviceIoControl(h, fsctlUnlockVolume, nil, 0, nil, 0, &n, nil)
	windows.CloseHandle(h)
}
