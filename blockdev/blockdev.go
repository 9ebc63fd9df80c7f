// Package blockdev opens the device under test and answers the questions the
// engine cannot: its geometry, whether it can be locked exclusively, and
// whether anything on it is mounted.
package blockdev

import (
	"errors"
	"fmt"
	"io"
	"os"

	"stressdrive/stress"
)

// ErrUnsupported is returned when the platform cannot query a device.
var ErrUnsupported = errors.New("operation not supported on this platform")

// fileBlockSize is the block size assumed for regular files.
const fileBlockSize = 512

// directFallbackBlockSize is used for images under direct I/O when the
// filesystem block size is unknown.
const directFallbackBlockSize = 4096

// Options controls how a device is opened.
type Options struct {
	// Direct bypasses the page cache so the verify pass reads the medium.
	Direct bool
	// ReadOnly opens the node for queries only: no exclusive claim, no
	// volume locking, no direct I/O.
	ReadOnly bool
}

// Device is an open, read-write handle on a block device or image file.
type Device struct {
	f       *os.File
	path    string
	regular bool
	direct  bool
	release func() // platform cleanup after the file is closed
}

// Open opens path read-write. When direct I/O is requested but rejected by
// the target, the device is reopened buffered and Direct reports false.
func Open(path string, opts Options) (*Device, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &stress.OpError{Op: "open", Offset: -1, Err: err}
	}
	if opts.ReadOnly {
		f, err := os.Open(path)
		if err != nil {
			return nil, &stress.OpError{Op: "open", Offset: -1, Err: err}
		}
		return &Device{f: f, path: path, regular: fi.Mode().IsRegular()}, nil
	}
	f, direct, release, err := openFile(path, fi.Mode(), opts.Direct)
	if err != nil {
		return nil, &stress.OpError{Op: "open", Offset: -1, Err: err}
	}
	return &Device{f: f, path: path, regular: fi.Mode().IsRegular(), direct: direct, release: release}, nil
}

func (d *Device) Path() string { return d.path }

// Direct reports whether the page cache is bypassed.
func (d *Device) Direct() bool { return d.direct }

func (d *Device) ReadAt(p []byte, off int64) (int, error)  { return d.f.ReadAt(p, off) }
func (d *Device) WriteAt(p []byte, off int64) (int, error) { return d.f.WriteAt(p, off) }
func (d *Device) Sync() error                              { return d.f.Sync() }

// Close releases the handle and with it the exclusive lock.
func (d *Device) Close() error {
	err := d.f.Close()
	if d.release != nil {
		d.release()
		d.release = nil
	}
	return err
}

// Geometry queries block size and block count. Regular files are treated as
// 512-byte blocks, or as blocks of the filesystem's size when opened for
// direct I/O, since O_DIRECT transfers must be aligned to it. A trailing
// partial block is not addressed.
func (d *Device) Geometry() (stress.Geometry, error) {
	if d.regular {
		bs := uint32(fileBlockSize)
		if d.direct {
			bs = imageBlockSize(d.f)
		}
		size, err := d.f.Seek(0, io.SeekEnd)
		if err != nil {
			return stress.Geometry{}, &stress.OpError{Op: "geometry", Offset: -1, Err: err}
		}
		if _, err := d.f.Seek(0, io.SeekStart); err != nil {
			return stress.Geometry{}, &stress.OpError{Op: "geometry", Offset: -1, Err: err}
		}
		return stress.Geometry{BlockSize: bs, BlockCount: uint64(size) / uint64(bs)}, nil
	}
	g, err := deviceGeometry(d.f)
	if err != nil {
		return stress.Geometry{}, &stress.OpError{Op: "geometry", Offset: -1, Err: err}
	}
	if g.BlockSize == 0 || g.BlockCount == 0 {
		return stress.Geometry{}, &stress.OpError{Op: "geometry", Offset: -1,
			Err: fmt.Errorf("device reports block size %d, block count %d", g.BlockSize, g.BlockCount)}
	}
	return g, nil
}

// Lock takes the exclusive lock or fails. It is never retried.
func (d *Device) Lock() error {
	ok, err := tryLock(d.f, d.regular)
	if err != nil {
		return &stress.OpError{Op: "lock", Offset: -1, Err: err}
	}
	if !ok {
		return &stress.OpError{Op: "lock", Offset: -1, Err: fmt.Errorf("%s is locked by another process", d.path)}
	}
	return nil
}
