// Package retrodfrg provides a generic terminal UI for displaying progress and status information.
// It knows nothing about the task being performed; callers feed it lines and map cells.
package retrodfrg

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// UI is a fullscreen layout of stacked blocks: title, summary, legend, map,
// phase checklist and status.
// All setters and LayoutAndDraw are safe to call from any goroutine.
type UI struct {
	mu       sync.Mutex
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once

	title        string
	phases       []string
	phaseDoneMap map[string]bool
	summaryLines []string
	legendLines  []string
	statusLines  []string

	// rendered as given; see CellMap
	progressMapLines []string
}

// NewUI creates and initializes a new UI instance on the controlling terminal.
func NewUI() (*UI, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewUIWithScreen(s)
}

// NewUIWithScreen initializes s and starts the event loop for handling user input.
func NewUIWithScreen(s tcell.Screen) (*UI, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:            s,
		stopChan:     make(chan struct{}),
		phaseDoneMap: make(map[string]bool),
	}
	go u.eventLoop(s)
	return u, nil
}

// Close finalizes the screen and leaves the alternate buffer. Safe to call twice.
func (u *UI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Fini()
	u.s = nil
	fmt.Print("\033[?1049l\033[?25h")
}

// RequestStop closes Stopped and wakes the event loop. Idempotent.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
		u.mu.Lock()
		if u.s != nil {
			_ = u.s.PostEvent(tcell.NewEventInterrupt(nil))
		}
		u.mu.Unlock()
	})
}

// Stopped is closed once a stop has been requested.
func (u *UI) Stopped() <-chan struct{} { return u.stopChan }

func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// Size is 0, 0 once the UI is closed.
func (u *UI) Size() (width, height int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

func putStr(s tcell.Screen, x, y int, str string, style tcell.Style) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		pos := x + i
		if pos >= w {
			break
		}
		s.SetContent(pos, y, r, nil, style)
	}
}

// LayoutAndDraw repaints every block. The map gets whatever rows remain.
func (u *UI) LayoutAndDraw() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()
	plain := tcell.StyleDefault

	y := 0
	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w), plain)
		putStr(u.s, (w-len([]rune(u.title)))/2, y, u.title, plain.Bold(true))
		y++
	}
	for _, line := range u.summaryLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line, plain)
		y++
	}
	for _, line := range u.legendLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line, plain)
		y++
	}

	if len(u.progressMapLines) > 0 {
		// Leave room for the phase and status blocks.
		rows := h - y - 7
		if rows < 1 {
			rows = 1
		}
		if rows > len(u.progressMapLines) {
			rows = len(u.progressMapLines)
		}
		for i := 0; i < rows && y < h; i++ {
			for x, r := range []rune(u.progressMapLines[i]) {
				if x >= w {
					break
				}
				u.s.SetContent(x, y, r, nil, glyphStyle(r))
			}
			y++
		}
	}

	if len(u.phases) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w), plain)
		putStr(u.s, 2, y, " Phase ", plain)
		y++
		var b strings.Builder
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.phaseDoneMap[strings.ToLower(p)] {
				mark = '✓'
			}
			fmt.Fprintf(&b, "[%c]%s", mark, p)
		}
		putStr(u.s, 0, y, b.String(), plain)
		y++
	}

	if len(u.statusLines) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w), plain)
		putStr(u.s, 2, y, " Status ", plain)
		y++
		for _, line := range u.statusLines {
			if y >= h {
				break
			}
			putStr(u.s, 0, y, line, plain)
			y++
		}
	}

	u.s.Show()
}

// SetPhaseDone ticks phase p, matched case-insensitively.
func (u *UI) SetPhaseDone(p string) {
	u.mu.Lock()
	u.phaseDoneMap[strings.ToLower(p)] = true
	u.mu.Unlock()
}

func (u *UI) SetPhases(labels []string) {
	u.mu.Lock()
	u.phases = append([]string(nil), labels...)
	u.mu.Unlock()
}

func (u *UI) SetTitle(t string) {
	u.mu.Lock()
	u.title = t
	u.mu.Unlock()
}

func (u *UI) SetSummaryLines(lines []string) {
	u.mu.Lock()
	u.summaryLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

func (u *UI) SetLegend(lines []string) {
	u.mu.Lock()
	u.legendLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

// SetStatusLines replaces the block under the phase checklist.
func (u *UI) SetStatusLines(lines []string) {
	u.mu.Lock()
	u.statusLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

// SetProgressMap replaces the map rows. Known glyphs are coloured.
func (u *UI) SetProgressMap(lines []string) {
	u.mu.Lock()
	u.progressMapLines = append([]string(nil), lines...)
	u.mu.Unlock()
}

func (u *UI) eventLoop(s tcell.Screen) {
	for {
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC, ev.Key() == tcell.KeyEscape:
				u.RequestStop()
			case ev.Key() == tcell.KeyRune && strings.ContainsRune("qQ", ev.Rune()):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt, nil:
			return
		}
	}
}
