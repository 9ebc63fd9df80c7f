package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stressdrive/blockdev"
	"stressdrive/metrics"
	"stressdrive/power"
	"stressdrive/retrodfrg"
	"stressdrive/stress"
)

const (
	exitOK          = 0
	exitMismatch    = 1
	exitOperational = 2
)

// device is what a run needs from the target; *blockdev.Device implements it.
type device interface {
	stress.Device
	Sync() error
	Close() error
	Lock() error
	Geometry() (stress.Geometry, error)
	Direct() bool
}

type openFunc func(path string, opts blockdev.Options) (device, error)

func openBlockdev(path string, opts blockdev.Options) (device, error) {
	d, err := blockdev.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// heldOutput buffers writes while the fullscreen display owns the terminal.
// The interrupt handler may flush it while the engine is still writing.
type heldOutput struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (h *heldOutput) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.Write(p)
}

func (h *heldOutput) flushTo(w io.Writer) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = h.buf.WriteTo(w)
}

// runOptions are the settings that only exist as flags.
type runOptions struct {
	tui   bool
	force bool
}

type runner struct {
	cfg    Config
	opts   runOptions
	stdout io.Writer
	stderr io.Writer
	log    *zap.Logger
	open   openFunc

	// set in fullscreen mode
	heldConsole *heldOutput
	heldLogs    *heldOutput

	// set once the corresponding resource is live
	rec         *metrics.Recorder
	ui          *retrodfrg.UI
	assertion   power.Assertion
	releaseOnce sync.Once
}

// run stress-tests path and returns the process exit code. A non-nil error
// is always operational.
func (r *runner) run(path string) (int, error) {
	r.rec = metrics.New(path)
	if r.open == nil {
		r.open = openBlockdev
	}
	if err := r.checkMounts(path); err != nil {
		return r.finish(exitOperational), err
	}

	dev, err := r.open(path, blockdev.Options{Direct: r.cfg.Direct})
	if err != nil {
		return r.finish(exitOperational), err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			r.log.Warn("close device", zap.Error(err))
		}
	}()
	if r.cfg.Direct && !dev.Direct() {
		r.log.Warn("direct I/O rejected by target, falling back to buffered I/O", zap.String("device", path))
	}
	if err := dev.Lock(); err != nil {
		return r.finish(exitOperational), err
	}

	g, err := dev.Geometry()
	if err != nil {
		return r.finish(exitOperational), err
	}
	fmt.Fprintf(r.stdout, "Device:      %s\n", path)
	fmt.Fprintf(r.stdout, "Block size:  %d\n", g.BlockSize)
	fmt.Fprintf(r.stdout, "Block count: %d (%s)\n", g.BlockCount, human(g.Bytes()))

	r.rec.DeviceBytes.Set(float64(g.Bytes()))

	plan, err := stress.NewPlan(g, int(r.cfg.BufferSize), uint64(r.cfg.RegionSize))
	if err != nil {
		return r.finish(exitOperational), err
	}

	r.keepAwake(path)
	defer r.releaseAssertion()

	opts := stress.Options{
		BufferFloor: plan.BufferSize,
		RegionSize:  plan.RegionSize,
		Logger:      r.log,
		Recorder:    r.rec,
		Out:         r.stdout,
		Reporter:    stress.NewProgress(stress.ConsoleDisplay{W: r.stdout}),
	}
	// Banners would tear the fullscreen display; hold them until it closes.
	if r.opts.tui {
		ui, err := retrodfrg.NewUI()
		if err != nil {
			return r.finish(exitOperational), fmt.Errorf("terminal UI: %w", err)
		}
		r.ui = ui
		r.heldConsole = &heldOutput{}
		opts.Out = r.heldConsole
		opts.Reporter = newTUIReporter(ui, path, plan)
	}
	eng, err := stress.New(dev, g, opts)
	if err != nil {
		r.closeUI()
		return r.finish(exitOperational), err
	}

	stop := r.handleInterrupts()
	res, err := eng.Run()
	stop()
	r.closeUI()
	r.heldConsole.flushTo(r.stdout)
	if err != nil {
		return r.finish(exitOperational), err
	}

	if !res.OK() {
		fmt.Fprintf(r.stdout, "FAILURE: %d of %d regions mismatched", len(res.Mismatches), res.RegionsHashed)
		if res.WrittenDigest != res.ReadDigest {
			fmt.Fprint(r.stdout, ", whole-device digests differ")
		}
		fmt.Fprintln(r.stdout)
		return r.finish(exitMismatch), nil
	}
	fmt.Fprintf(r.stdout, "SUCCESS: %d regions verified, %s written and read back intact\n",
		res.RegionsHashed, human(res.BytesRead))
	return r.finish(exitOK), nil
}

// checkMounts refuses a device with mounted filesystems unless forced. An
// unreadable mount table is not fatal: on linux O_EXCL still protects us.
func (r *runner) checkMounts(path string) error {
	mounts, err := blockdev.Mounts(path)
	if err != nil {
		r.log.Warn("cannot read mount table", zap.Error(err))
		return nil
	}
	if len(mounts) == 0 {
		return nil
	}
	var where []string
	for _, m := range mounts {
		where = append(where, fmt.Sprintf("%s on %s", m.Device, m.Mountpoint))
	}
	if !r.opts.force {
		return fmt.Errorf("%s has mounted filesystems (%s); unmount them or pass --force", path, strings.Join(where, ", "))
	}
	r.log.Warn("device has mounted filesystems, continuing because of --force", zap.Strings("mounts", where))
	return nil
}

func (r *runner) keepAwake(path string) {
	if !r.cfg.KeepAwake {
		return
	}
	a, err := power.New().Acquire("stress testing " + path)
	if err != nil {
		r.log.Warn("cannot prevent system sleep", zap.Error(err))
		return
	}
	r.assertion = a
	r.log.Debug("sleep inhibited")
}

func (r *runner) releaseAssertion() {
	r.releaseOnce.Do(func() {
		if r.assertion == nil {
			return
		}
		if err := r.assertion.Release(); err != nil {
			r.log.Warn("release sleep assertion", zap.Error(err))
		}
	})
}

func (r *runner) closeUI() {
	if r.ui != nil {
		r.ui.Close()
	}
}

func (r *runner) flushLogs() {
	r.heldLogs.flushTo(r.stderr)
}

// finish stamps the metrics and writes the textfile when configured.
func (r *runner) finish(code int) int {
	if r.rec == nil {
		return code
	}
	r.rec.Finish(code, time.Now())
	if r.cfg.MetricsFile != "" {
		if err := r.rec.WriteFile(r.cfg.MetricsFile); err != nil {
			r.log.Warn("write metrics file", zap.String("path", r.cfg.MetricsFile), zap.Error(err))
		}
	}
	return code
}

// handleInterrupts aborts the run on SIGINT, SIGTERM, or a quit key in the
// terminal UI. The engine is not cancellable, so the process exits from
// here after restoring the terminal. The returned func disarms the handler.
func (r *runner) handleInterrupts() func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	var quit <-chan struct{}
	if r.ui != nil {
		quit = r.ui.Stopped()
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-sig:
		case <-quit:
		case <-done:
			return
		}
		os.Exit(r.abort())
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}

// abort restores the terminal, flushes everything held back from it, and
// records the run as an operational failure.
func (r *runner) abort() int {
	r.closeUI()
	r.heldConsole.flushTo(r.stdout)
	fmt.Fprintln(r.stderr, "\nInterrupted")
	r.log.Error("run interrupted, device contents are undefined")
	r.releaseAssertion()
	code := r.finish(exitOperational)
	_ = r.log.Sync()
	r.flushLogs()
	return code
}
