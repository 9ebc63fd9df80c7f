package stress

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
)

// Key and IV sizes of the payload cipher.
const (
	KeySize = 16
	IVSize  = aes.BlockSize
)

// Keystream produces the stress payload: the AES-128-CTR keystream over an
// all-zero plaintext, consumed forward across the whole device.
type Keystream struct {
	stream cipher.Stream
}

// NewKeystream draws a fresh key and IV from rnd (crypto/rand when nil).
func NewKeystream(rnd io.Reader) (*Keystream, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	var key [KeySize]byte
	var iv [IVSize]byte
	if _, err := io.ReadFull(rnd, key[:]); err != nil {
		return nil, opErr("keygen", -1, err)
	}
	if _, err := io.ReadFull(rnd, iv[:]); err != nil {
		return nil, opErr("keygen", -1, err)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, opErr("cipher", -1, err)
	}
	return &Keystream{stream: cipher.NewCTR(block, iv[:])}, nil
}

// Fill overwrites p with the next len(p) keystream bytes.
func (k *Keystream) Fill(p []byte) {
	clear(p)
	k.stream.XORKeyStream(p, p)
}
