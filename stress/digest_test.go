package stress

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherMatchesSHA256(t *testing.T) {
	h := NewHasher()
	require.NoError(t, h.Update([]byte("hello ")))
	require.NoError(t, h.Update([]byte("world")))
	d, err := h.Finalize()
	require.NoError(t, err)
	assert.Equal(t, Digest(sha256.Sum256([]byte("hello world"))), d)
	assert.Len(t, d.String(), 2*DigestSize)
}

func TestHasherCutDoesNotLeakHistory(t *testing.T) {
	h := NewHasher()
	require.NoError(t, h.Update([]byte("region zero contents")))
	_, err := h.Cut()
	require.NoError(t, err)

	input := []byte("identical region contents")
	require.NoError(t, h.Update(input))
	first, err := h.Cut()
	require.NoError(t, err)

	require.NoError(t, h.Update(input))
	second, err := h.Cut()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Digest(sha256.Sum256(input)), first)
}

func TestHasherFinalizeInvalidates(t *testing.T) {
	h := NewHasher()
	_, err := h.Finalize()
	require.NoError(t, err)

	assert.ErrorIs(t, h.Update([]byte("x")), errDigestFinished)
	_, err = h.Finalize()
	assert.ErrorIs(t, err, errDigestFinished)

	h.Init()
	assert.NoError(t, h.Update([]byte("x")))
}
