package stress

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// DigestSize is the length of every digest the engine produces.
const DigestSize = sha256.Size

// Digest is a finalized SHA-256 fingerprint.
type Digest [DigestSize]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Hasher is a running digest state. Finalize invalidates it until Init is
// called again; Cut does both.
type Hasher struct {
	h    hash.Hash
	done bool
}

// NewHasher returns an initialized state.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Init discards any accumulated input.
func (s *Hasher) Init() {
	s.h.Reset()
	s.done = false
}

// Update folds p into the state.
func (s *Hasher) Update(p []byte) error {
	if s.done {
		return errDigestFinished
	}
	// hash.Hash.Write never returns an error
	_, _ = s.h.Write(p)
	return nil
}

// Finalize returns the digest of everything folded in since Init.
func (s *Hasher) Finalize() (Digest, error) {
	var d Digest
	if s.done {
		return d, errDigestFinished
	}
	s.h.Sum(d[:0])
	s.done = true
	return d, nil
}

// Cut finalizes and immediately reinitializes the state.
func (s *Hasher) Cut() (Digest, error) {
	d, err := s.Finalize()
	if err != nil {
		return d, err
	}
	s.Init()
	return d, nil
}
