package stress

import "io"

// memDevice is an in-memory Device that counts transfers and lets a test
// tamper with the contents between the two passes.
type memDevice struct {
	data    []byte
	writes  []int
	reads   []int
	syncs   int
	onSync  func(data []byte)
	failAt  int64 // WriteAt at this offset fails when >= 0
	failErr error
	short   bool
}

func newMemDevice(size int) *memDevice {
	return &memDevice{data: make([]byte, size), failAt: -1}
}

func (m *memDevice) WriteAt(p []byte, off int64) (int, error) {
	if off == m.failAt {
		return 0, m.failErr
	}
	m.writes = append(m.writes, len(p))
	return copy(m.data[off:], p), nil
}

func (m *memDevice) ReadAt(p []byte, off int64) (int, error) {
	m.reads = append(m.reads, len(p))
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if m.short {
		n /= 2
	}
	return n, nil
}

func (m *memDevice) Sync() error {
	m.syncs++
	if m.onSync != nil {
		m.onSync(m.data)
	}
	return nil
}

func sum(xs []int) int {
	t := 0
	for _, x := range xs {
		t += x
	}
	return t
}
