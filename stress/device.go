package stress

import "io"

// Device is the raw byte range under test. Offsets are in bytes and always
// block aligned.
type Device interface {
	io.ReaderAt
	io.WriterAt
}

// Geometry describes the addressable range of a device.
type Geometry struct {
	BlockSize  uint32
	BlockCount uint64
}

// Bytes returns the total addressable size.
func (g Geometry) Bytes() uint64 { return uint64(g.BlockSize) * g.BlockCount }

// GeometryProvider is implemented by platform device handles.
type GeometryProvider interface {
	Geometry() (Geometry, error)
}
