//go:build linux

package blockdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"stressdrive/stress"
)

func TestDirectImageUsesFilesystemBlockSize(t *testing.T) {
	// The trailing 512 bytes cannot be transferred with O_DIRECT on a 4 KiB
	// filesystem, so they must fall outside the addressed range.
	path := tempImage(t, 3<<20+512)
	d, err := Open(path, Options{Direct: true})
	require.NoError(t, err)
	defer d.Close()
	if !d.Direct() {
		t.Skip("filesystem rejects O_DIRECT")
	}
	require.NoError(t, d.Lock())

	var st unix.Statfs_t
	require.NoError(t, unix.Statfs(path, &st))

	g, err := d.Geometry()
	require.NoError(t, err)
	assert.Equal(t, imageBlockSize(d.f), g.BlockSize)
	assert.Zero(t, g.BlockSize%512)
	if bs := int64(st.Bsize); bs >= 512 && bs <= 1<<16 && bs&(bs-1) == 0 {
		assert.Equal(t, uint32(bs), g.BlockSize)
	}
	assert.Equal(t, uint64(3<<20)/uint64(g.BlockSize), g.BlockCount)

	e, err := stress.New(d, g, stress.Options{BufferFloor: 1 << 20, RegionSize: 1 << 20})
	require.NoError(t, err)
	res, err := e.Run()
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, 3, res.RegionsHashed)
}

func TestBufferedImageKeepsSectorBlocks(t *testing.T) {
	path := tempImage(t, 3<<20+512)
	d, err := Open(path, Options{})
	require.NoError(t, err)
	defer d.Close()

	g, err := d.Geometry()
	require.NoError(t, err)
	assert.Equal(t, stress.Geometry{BlockSize: 512, BlockCount: 3<<11 + 1}, g)
}
