package main

import (
	"fmt"

	"stressdrive/retrodfrg"
	"stressdrive/stress"
)

// tuiChrome is the number of screen rows used by everything except the map:
// title, two summary lines, legend, and the phase and status blocks.
const tuiChrome = 4 + 7

// tuiReporter renders engine progress as a fullscreen map with one cell per
// checkpoint region.
type tuiReporter struct {
	*stress.Progress
	ui    *retrodfrg.UI
	cells *retrodfrg.CellMap
	phase stress.Phase
	last  []string
}

func newTUIReporter(ui *retrodfrg.UI, path string, plan stress.Plan) *tuiReporter {
	t := &tuiReporter{
		ui:    ui,
		cells: retrodfrg.NewCellMap(plan.Regions),
	}
	t.Progress = stress.NewProgress(t)

	g := plan.Geometry
	ui.SetTitle(" STRESSDRIVE ")
	ui.SetSummaryLines([]string{
		fmt.Sprintf("Device: %s  Size: %s  Block size: %d  Blocks: %d", path, human(g.Bytes()), g.BlockSize, g.BlockCount),
		fmt.Sprintf("Buffer: %s  Region: %s  Regions: %d", human(uint64(plan.BufferSize)), human(plan.RegionSize), plan.Regions),
	})
	ui.SetLegend([]string{
		fmt.Sprintf("Legend:  %c pending   %c written   %c verified   %c mismatch | Q to quit",
			retrodfrg.GlyphPending, retrodfrg.GlyphWritten, retrodfrg.GlyphVerified, retrodfrg.GlyphFailed),
	})
	ui.SetPhases([]string{"Write", "Verify"})
	t.draw()
	return t
}

func (t *tuiReporter) Begin(phase stress.Phase, total uint64, unitSize uint32) {
	if phase == stress.PhaseVerify {
		t.ui.SetPhaseDone("write")
	}
	t.phase = phase
	t.Progress.Begin(phase, total, unitSize)
}

func (t *tuiReporter) Finish() {
	t.Progress.Finish()
	if t.phase == stress.PhaseVerify {
		t.ui.SetPhaseDone("verify")
		t.draw()
	}
}

// RegionDone is called once per checkpoint, far less often than Update, so
// the map is redrawn immediately.
func (t *tuiReporter) RegionDone(phase stress.Phase, r stress.Region, ok bool) {
	switch {
	case phase == stress.PhaseWrite:
		t.cells.Set(r.Index, retrodfrg.CellWritten)
	case ok:
		t.cells.Set(r.Index, retrodfrg.CellVerified)
	default:
		t.cells.Set(r.Index, retrodfrg.CellFailed)
	}
	t.draw()
}

// Show implements stress.Display.
func (t *tuiReporter) Show(s stress.Status, _ bool) {
	t.last = []string{
		fmt.Sprintf("Current: %s", s.Phase),
		s.String(),
		fmt.Sprintf("Mismatched regions: %d", t.cells.Count(retrodfrg.CellFailed)),
	}
	t.draw()
}

func (t *tuiReporter) draw() {
	w, h := t.ui.Size()
	rows := h - tuiChrome
	if rows < 1 {
		rows = 1
	}
	t.ui.SetProgressMap(t.cells.Lines(w, rows))
	t.ui.SetStatusLines(t.last)
	t.ui.LayoutAndDraw()
}
