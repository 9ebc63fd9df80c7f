package stress

import "fmt"

// Default sizes.
const (
	DefaultBufferFloor = 8 << 20
	DefaultRegionSize  = 1 << 30
)

// BufferSize returns max(blockSize, floor) rounded down to a multiple of
// blockSize, and the number of blocks it holds.
func BufferSize(blockSize uint32, floor int) (size int, blocks int) {
	bs := int(blockSize)
	if bs <= 0 {
		return 0, 0
	}
	size = floor
	if size < bs {
		size = bs
	}
	size -= size % bs
	return size, size / bs
}

// RegionCount returns how many regions of regionSize bytes cover total
// bytes; the last one may be short.
func RegionCount(total, regionSize uint64) int {
	if regionSize == 0 {
		return 0
	}
	return int((total + regionSize - 1) / regionSize)
}

// Plan is the fixed I/O geometry of one run.
type Plan struct {
	Geometry     Geometry
	BufferSize   int
	BufferBlocks int
	RegionSize   uint64
	Regions      int
}

// NewPlan validates the sizes against the device geometry.
func NewPlan(g Geometry, bufferFloor int, regionSize uint64) (Plan, error) {
	if g.BlockSize == 0 {
		return Plan{}, fmt.Errorf("invalid block size 0")
	}
	if g.BlockCount == 0 {
		return Plan{}, fmt.Errorf("device reports zero blocks")
	}
	if regionSize == 0 || regionSize%uint64(g.BlockSize) != 0 {
		return Plan{}, fmt.Errorf("region size %d is not a positive multiple of block size %d", regionSize, g.BlockSize)
	}
	size, blocks := BufferSize(g.BlockSize, bufferFloor)
	return Plan{
		Geometry:     g,
		BufferSize:   size,
		BufferBlocks: blocks,
		RegionSize:   regionSize,
		Regions:      RegionCount(g.Bytes(), regionSize),
	}, nil
}

// Region returns the span of region i.
func (p Plan) Region(i int) Region {
	start := uint64(i) * p.RegionSize
	end := start + p.RegionSize
	if total := p.Geometry.Bytes(); end > total {
		end = total
	}
	return Region{Index: i, Start: start, End: end}
}

// chunk returns the length of the I/O at off. It never crosses a region
// boundary or the end of the device, so a region that is not a multiple of
// the buffer size ends with a shorter chunk.
func (p Plan) chunk(off uint64) int {
	n := uint64(p.BufferSize)
	if rest := p.RegionSize - off%p.RegionSize; rest < n {
		n = rest
	}
	if rest := p.Geometry.Bytes() - off; rest < n {
		n = rest
	}
	return int(n)
}
