package blockdev

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Info describes a candidate device.
type Info struct {
	Path       string
	Compatible bool
	Reason     string
}

// Discover lists whole-disk devices (compatible) and partitions or other
// nodes that must not be passed to the stress test (incompatible).
func Discover() ([]Info, error) {
	switch runtime.GOOS {
	case "darwin":
		return discoverDarwin()
	case "linux":
		return discoverLinux()
	case "windows":
		return discoverWindows(), nil
	default:
		return nil, fmt.Errorf("%w: device discovery on %s", ErrUnsupported, runtime.GOOS)
	}
}

func discoverDarwin() ([]Info, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	var infos []Info
	for _, e := range entries {
		name := e.Name()
		// Only raw nodes; the buffered ones are slower and go through the cache.
		if !strings.HasPrefix(name, "rdisk") {
			continue
		}
		path := filepath.Join("/dev", name)
		if isPartitionDarwin(name) {
			infos = append(infos, Info{Path: path, Reason: "partition"})
		} else {
			infos = append(infos, Info{Path: path, Compatible: true})
		}
	}
	return infos, nil
}

// isPartitionDarwin matches rdiskNsM.
func isPartitionDarwin(name string) bool {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == 's' && name[i+1] >= '0' && name[i+1] <= '9' {
			return true
		}
	}
	return false
}

func discoverLinux() ([]Info, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	var infos []Info
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join("/dev", name)
		switch {
		case isWholeLinuxDevice(name):
			infos = append(infos, Info{Path: path, Compatible: true})
		case isPartitionLinux(name):
			infos = append(infos, Info{Path: path, Reason: "partition"})
		case strings.HasPrefix(name, "loop"):
			infos = append(infos, Info{Path: path, Reason: "loop device"})
		}
	}
	return infos, nil
}

func isWholeLinuxDevice(name string) bool {
	// sdX, vdX
	if len(name) == 3 && (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && name[2] >= 'a' && name[2] <= 'z' {
		return true
	}
	// nvmeXnY
	if strings.HasPrefix(name, "nvme") && !strings.Contains(name, "p") {
		parts := strings.Split(strings.TrimPrefix(name, "nvme"), "n")
		return len(parts) == 2 && isDigits(parts[0]) && isDigits(parts[1])
	}
	// mmcblkX
	if strings.HasPrefix(name, "mmcblk") {
		return isDigits(strings.TrimPrefix(name, "mmcblk"))
	}
	return false
}

func isPartitionLinux(name string) bool {
	if (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && len(name) >= 4 {
		return isDigits(name[3:])
	}
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		idx := strings.LastIndexByte(name, 'p')
		return idx > 0 && isDigits(name[idx+1:])
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func discoverWindows() []Info {
	var infos []Info
	for i := 0; i < 32; i++ {
		path := fmt.Sprintf(`\\.\PhysicalDrive%d`, i)
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		_ = f.Close()
		infos = append(infos, Info{Path: path, Compatible: true})
	}
	return infos
}
