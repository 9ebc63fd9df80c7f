package blockdev

import (
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/disk"
)

// Mount is a filesystem mounted from the device or one of its partitions.
type Mount struct {
	Device     string
	Mountpoint string
	Fstype     string
}

// Mounts lists every mounted filesystem that lives on path.
func Mounts(path string) ([]Mount, error) {
	parts, err := disk.Partitions(true)
	if err != nil {
		return nil, err
	}
	base := canonical(path)
	var out []Mount
	for _, p := range parts {
		if onDevice(base, canonical(p.Device)) {
			out = append(out, Mount{Device: p.Device, Mountpoint: p.Mountpoint, Fstype: p.Fstype})
		}
	}
	return out, nil
}

// canonical resolves symlinks (/dev/disk/by-id/...) and maps darwin raw
// nodes to their buffered names, which is what the mount table uses.
func canonical(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		p = r
	}
	p = filepath.Clean(p)
	dir, name := filepath.Split(p)
	if strings.HasPrefix(name, "rdisk") {
		name = strings.TrimPrefix(name, "r")
	}
	return dir + name
}

// onDevice reports whether part is dev itself or one of its partitions:
// sdb1 on sdb, nvme0n1p2 on nvme0n1, mmcblk0p1 on mmcblk0, disk2s1 on disk2.
func onDevice(dev, part string) bool {
	if part == dev {
		return true
	}
	if !strings.HasPrefix(part, dev) {
		return false
	}
	rest := part[len(dev):]
	// Names ending in a digit separate the partition number: nvme0n1p2, disk2s1.
	if last := dev[len(dev)-1]; last >= '0' && last <= '9' {
		if !strings.HasPrefix(rest, "p") && !strings.HasPrefix(rest, "s") {
			return false
		}
		rest = rest[1:]
	}
	return isDigits(rest)
}
