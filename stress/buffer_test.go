package stress

import (
	"crypto/rand"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocBufferAligned(t *testing.T) {
	buf, err := AllocBuffer(1 << 20)
	require.NoError(t, err)
	b := buf.Bytes()
	require.Len(t, b, 1<<20)
	assert.Zero(t, uintptr(unsafe.Pointer(&b[0]))%4096)
	require.NoError(t, buf.Release())
}

func TestKeystreamIsUnpredictable(t *testing.T) {
	ks, err := NewKeystream(rand.Reader)
	require.NoError(t, err)
	a := make([]byte, 4096)
	b := make([]byte, 4096)
	ks.Fill(a)
	ks.Fill(b)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, make([]byte, 4096), a)
}

func TestNilBufferRelease(t *testing.T) {
	var b *Buffer
	assert.NoError(t, b.Release())
}
