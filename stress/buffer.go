package stress

// Buffer is the single I/O buffer of a run. Release must be called exactly
// once; the engine defers it.
type Buffer struct {
	b       []byte
	release func() error
}

// Bytes returns the full buffer.
func (b *Buffer) Bytes() []byte { return b.b }

// Release returns the memory. Safe to call on a nil Buffer.
func (b *Buffer) Release() error {
	if b == nil || b.release == nil {
		return nil
	}
	err := b.release()
	b.release = nil
	b.b = nil
	return err
}
