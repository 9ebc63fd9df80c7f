package stress

import "fmt"

// Region is a half-open byte span [Start, End) of the device covered by one
// checkpoint digest.
type Region struct {
	Index int
	Start uint64
	End   uint64
}

func (r Region) Len() uint64 { return r.End - r.Start }

func (r Region) String() string {
	return fmt.Sprintf("region %d [%d, %d)", r.Index, r.Start, r.End)
}

// Checkpoint is one ledger entry.
type Checkpoint struct {
	Region Region
	Digest Digest
}

// Ledger holds the per-region digests captured while writing. Entries are
// appended in increasing region order and replayed in the same order.
type Ledger struct {
	entries []Checkpoint
	sealed  bool
}

// NewLedger returns an empty ledger sized for n regions.
func NewLedger(n int) *Ledger {
	return &Ledger{entries: make([]Checkpoint, 0, n)}
}

// Append records the digest of the next region.
func (l *Ledger) Append(c Checkpoint) error {
	if l.sealed {
		return fmt.Errorf("ledger is sealed, cannot append %s", c.Region)
	}
	if c.Region.Index != len(l.entries) {
		return fmt.Errorf("ledger out of order: got %s, want index %d", c.Region, len(l.entries))
	}
	l.entries = append(l.entries, c)
	return nil
}

// Seal makes the ledger read-only.
func (l *Ledger) Seal() { l.sealed = true }

func (l *Ledger) Len() int { return len(l.entries) }

// Entry returns the checkpoint for region i.
func (l *Ledger) Entry(i int) (Checkpoint, bool) {
	if i < 0 || i >= len(l.entries) {
		return Checkpoint{}, false
	}
	return l.entries[i], true
}
