package retrodfrg

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// CellState is the state of one cell of a progress map.
type CellState uint8

const (
	CellPending CellState = iota
	CellWritten
	CellVerified
	CellFailed
)

// Glyphs used for each cell state.
const (
	GlyphPending  = '░'
	GlyphWritten  = '▒'
	GlyphVerified = '█'
	GlyphFailed   = 'X'
)

func (c CellState) glyph() rune {
	switch c {
	case CellWritten:
		return GlyphWritten
	case CellVerified:
		return GlyphVerified
	case CellFailed:
		return GlyphFailed
	default:
		return GlyphPending
	}
}

func glyphStyle(r rune) tcell.Style {
	switch r {
	case GlyphVerified:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case GlyphFailed:
		return tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	case GlyphWritten:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	default:
		return tcell.StyleDefault
	}
}

// CellMap tracks one state per cell and renders it as map lines. It is not
// safe for concurrent use.
type CellMap struct {
	cells   []CellState
	current int
}

// NewCellMap returns a map of n pending cells.
func NewCellMap(n int) *CellMap {
	return &CellMap{cells: make([]CellState, n)}
}

func (m *CellMap) Len() int { return len(m.cells) }

// Set records the state of cell i and makes it the current position.
func (m *CellMap) Set(i int, s CellState) {
	if i < 0 || i >= len(m.cells) {
		return
	}
	m.cells[i] = s
	m.current = i
}

// Count returns how many cells are in state s.
func (m *CellMap) Count(s CellState) int {
	n := 0
	for _, c := range m.cells {
		if c == s {
			n++
		}
	}
	return n
}

// Lines renders the map into at most rows lines of width w. When the map
// does not fit, the window scrolls to keep the current cell visible.
func (m *CellMap) Lines(w, rows int) []string {
	if w <= 0 || rows <= 0 || len(m.cells) == 0 {
		return nil
	}
	total := len(m.cells)
	totalRows := (total + w - 1) / w
	firstRow := 0
	if totalRows > rows {
		firstRow = m.current/w - rows + 1
		if firstRow < 0 {
			firstRow = 0
		}
		if firstRow > totalRows-rows {
			firstRow = totalRows - rows
		}
	}
	start := firstRow * w

	var lines []string
	for row := 0; row < rows; row++ {
		first := start + row*w
		if first >= total {
			break
		}
		var b strings.Builder
		for col := 0; col < w && first+col < total; col++ {
			b.WriteRune(m.cells[first+col].glyph())
		}
		lines = append(lines, b.String())
	}
	return lines
}
