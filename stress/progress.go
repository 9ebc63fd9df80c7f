package stress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Phase is one pass of the engine.
type Phase int

const (
	PhaseWrite Phase = iota + 1
	PhaseVerify
)

func (p Phase) String() string {
	switch p {
	case PhaseWrite:
		return "writing"
	case PhaseVerify:
		return "verifying"
	default:
		return "idle"
	}
}

// Reporter receives progress from the engine, in blocks.
type Reporter interface {
	Begin(phase Phase, total uint64, unitSize uint32)
	Update(current uint64)
	Finish()
}

// RegionObserver is optionally implemented by a Reporter that wants to see
// every checkpoint as it is written or verified.
type RegionObserver interface {
	RegionDone(phase Phase, r Region, ok bool)
}

// Status is one rendered progress snapshot.
type Status struct {
	Phase    Phase
	Current  uint64
	Total    uint64
	Elapsed  time.Duration
	Rate     float64 // bytes per second since the previous render
	ETA      time.Duration
	ShowETA  bool
	Complete float64 // 0..1
}

func (s Status) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%5.1f%% (block %d of %d)  %s  %s/s",
		s.Complete*100, s.Current, s.Total, clock(s.Elapsed), humanRate(s.Rate))
	if s.ShowETA {
		fmt.Fprintf(&b, "  ETA %s", clock(s.ETA))
	}
	return b.String()
}

// Display shows rendered snapshots.
type Display interface {
	Show(s Status, final bool)
}

// ConsoleDisplay rewrites a single line on W.
type ConsoleDisplay struct {
	W io.Writer
}

func (c ConsoleDisplay) Show(s Status, final bool) {
	fmt.Fprintf(c.W, "\r%s", s)
	if final {
		fmt.Fprintln(c.W)
	}
}

const (
	renderInterval = time.Second
	etaMinElapsed  = 10 * time.Second
	etaMinComplete = 0.001
)

// Progress throttles status rendering to once per second no matter how
// often Update is called.
type Progress struct {
	display Display
	now     func() time.Time

	phase       Phase
	total       uint64
	unitSize    uint32
	start       time.Time
	last        time.Time
	lastCurrent uint64
	current     uint64
}

// NewProgress renders to d.
func NewProgress(d Display) *Progress {
	return &Progress{display: d, now: time.Now}
}

// SetClock replaces the time source.
func (p *Progress) SetClock(now func() time.Time) { p.now = now }

func (p *Progress) Begin(phase Phase, total uint64, unitSize uint32) {
	t := p.now()
	p.phase = phase
	p.total = total
	p.unitSize = unitSize
	p.start = t
	p.last = t
	p.lastCurrent = 0
	p.current = 0
}

func (p *Progress) Update(current uint64) {
	p.current = current
	t := p.now()
	if t.Sub(p.last) < renderInterval {
		return
	}
	p.render(t, false)
}

func (p *Progress) Finish() {
	p.current = p.total
	p.render(p.now(), true)
}

func (p *Progress) render(t time.Time, final bool) {
	s := p.status(t)
	p.last = t
	p.lastCurrent = p.current
	if p.display != nil {
		p.display.Show(s, final)
	}
}

func (p *Progress) status(t time.Time) Status {
	s := Status{
		Phase:   p.phase,
		Current: p.current,
		Total:   p.total,
		Elapsed: t.Sub(p.start),
	}
	if p.total > 0 {
		s.Complete = float64(p.current) / float64(p.total)
	}
	if dt := t.Sub(p.last).Seconds(); dt > 0 && p.current >= p.lastCurrent {
		s.Rate = float64(p.current-p.lastCurrent) * float64(p.unitSize) / dt
	}
	if s.Elapsed > etaMinElapsed && s.Complete > etaMinComplete {
		s.ShowETA = true
		s.ETA = time.Duration(float64(s.Elapsed) * (1/s.Complete - 1))
	}
	return s
}

func clock(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}

func humanRate(r float64) string {
	switch {
	case r >= 1<<30:
		return fmt.Sprintf("%.1f GB", r/(1<<30))
	case r >= 1<<20:
		return fmt.Sprintf("%.1f MB", r/(1<<20))
	case r >= 1<<10:
		return fmt.Sprintf("%.1f KB", r/(1<<10))
	default:
		return fmt.Sprintf("%.0f B", r)
	}
}
