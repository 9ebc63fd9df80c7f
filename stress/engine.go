// Package stress implements the write/verify engine: a full-surface pass of
// keystream data followed by a read-back pass that checks it against a
// per-region checkpoint ledger and a whole-stream digest.
package stress

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Recorder receives I/O and checkpoint statistics.
type Recorder interface {
	ObserveIO(phase Phase, n int, d time.Duration)
	ObserveRegion(phase Phase, ok bool)
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	BufferFloor int
	RegionSize  uint64

	Logger   *zap.Logger
	Reporter Reporter
	Recorder Recorder
	// Out receives the console banners.
	Out io.Writer
	// Rand seeds the keystream; crypto/rand when nil.
	Rand io.Reader
	// Alloc allocates the I/O buffer; AllocBuffer when nil.
	Alloc func(n int) (*Buffer, error)
}

// Result is the outcome of a completed run.
type Result struct {
	Plan          Plan
	WrittenDigest Digest
	ReadDigest    Digest
	Mismatches    []Region
	RegionsHashed int
	BytesWritten  uint64
	BytesRead     uint64
	Iterations    [2]int // buffer I/Os in the write and verify pass
}

// OK reports whether every region matched and the whole-stream digests agree.
func (r *Result) OK() bool {
	return len(r.Mismatches) == 0 && r.WrittenDigest == r.ReadDigest
}

// Engine drives one write pass and one verify pass over dev.
type Engine struct {
	dev  Device
	plan Plan
	opts Options
	log  *zap.Logger

	buf    []byte
	whole  *Hasher
	region *Hasher
	ledger *Ledger
	res    Result
}

type nopReporter struct{}

func (nopReporter) Begin(Phase, uint64, uint32) {}
func (nopReporter) Update(uint64)               {}
func (nopReporter) Finish()                     {}

type nopRecorder struct{}

func (nopRecorder) ObserveIO(Phase, int, time.Duration) {}
func (nopRecorder) ObserveRegion(Phase, bool)           {}

// New prepares an engine for a device with geometry g. The caller owns dev
// and must hold its exclusive lock for the lifetime of the engine.
func New(dev Device, g Geometry, opts Options) (*Engine, error) {
	if opts.BufferFloor <= 0 {
		opts.BufferFloor = DefaultBufferFloor
	}
	if opts.RegionSize == 0 {
		opts.RegionSize = DefaultRegionSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Alloc == nil {
		opts.Alloc = AllocBuffer
	}
	plan, err := NewPlan(g, opts.BufferFloor, opts.RegionSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		dev:  dev,
		plan: plan,
		opts: opts,
		log:  opts.Logger,
	}, nil
}

// Plan returns the I/O geometry the engine will use.
func (e *Engine) Plan() Plan { return e.plan }

// Run writes the whole device, then reads it back. A content mismatch is
// reported in the Result; the returned error is always operational.
func (e *Engine) Run() (*Result, error) {
	ks, err := NewKeystream(e.opts.Rand)
	if err != nil {
		return nil, err
	}
	buf, err := e.opts.Alloc(e.plan.BufferSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := buf.Release(); err != nil {
			e.log.Warn("release buffer", zap.Error(err))
		}
	}()

	e.buf = buf.Bytes()
	e.whole = NewHasher()
	e.region = NewHasher()
	e.ledger = NewLedger(e.plan.Regions)
	e.res = Result{Plan: e.plan}

	e.log.Info("plan",
		zap.Uint32("block_size", e.plan.Geometry.BlockSize),
		zap.Uint64("block_count", e.plan.Geometry.BlockCount),
		zap.Int("buffer_size", e.plan.BufferSize),
		zap.Int("buffer_blocks", e.plan.BufferBlocks),
		zap.Uint64("region_size", e.plan.RegionSize),
		zap.Int("regions", e.plan.Regions),
	)

	if err := e.writePass(ks); err != nil {
		return nil, err
	}
	if err := e.syncDevice(); err != nil {
		return nil, err
	}
	if err := e.verifyPass(); err != nil {
		return nil, err
	}

	res := e.res
	return &res, nil
}

func (e *Engine) writePass(ks *Keystream) error {
	e.banner("Writing %d blocks of %d bytes...\n", e.plan.Geometry.BlockCount, e.plan.Geometry.BlockSize)
	e.log.Info("phase", zap.Stringer("phase", PhaseWrite))

	err := e.pass(PhaseWrite, func(p []byte, off uint64) error {
		ks.Fill(p)
		t := time.Now()
		n, err := e.dev.WriteAt(p, int64(off))
		if err == nil && n != len(p) {
			err = errShortWrite
		}
		if err != nil {
			return opErr("write", int64(off), err)
		}
		e.opts.Recorder.ObserveIO(PhaseWrite, n, time.Since(t))
		e.res.BytesWritten += uint64(n)
		return nil
	}, func(r Region, d Digest) error {
		if err := e.ledger.Append(Checkpoint{Region: r, Digest: d}); err != nil {
			return opErr("digest", int64(r.Start), err)
		}
		e.log.Debug("checkpoint recorded", zap.Int("region", r.Index), zap.Stringer("digest", d))
		e.regionDone(PhaseWrite, r, true)
		return nil
	})
	if err != nil {
		return err
	}
	e.ledger.Seal()

	d, err := e.whole.Finalize()
	if err != nil {
		return opErr("digest", -1, err)
	}
	e.res.WrittenDigest = d
	e.banner("SHA-256 (written): %s\n", d)
	e.log.Info("write pass complete", zap.Stringer("digest", d), zap.Uint64("bytes", e.res.BytesWritten))
	return nil
}

func (e *Engine) verifyPass() error {
	e.banner("Verifying...\n")
	e.log.Info("phase", zap.Stringer("phase", PhaseVerify))

	err := e.pass(PhaseVerify, func(p []byte, off uint64) error {
		t := time.Now()
		n, err := e.dev.ReadAt(p, int64(off))
		// ReaderAt may return io.EOF together with a full read at the end.
		if err == io.EOF && n == len(p) {
			err = nil
		}
		if err == nil && n != len(p) {
			err = errShortRead
		}
		if err != nil {
			return opErr("read", int64(off), err)
		}
		e.opts.Recorder.ObserveIO(PhaseVerify, n, time.Since(t))
		e.res.BytesRead += uint64(n)
		return nil
	}, func(r Region, d Digest) error {
		want, ok := e.ledger.Entry(r.Index)
		match := ok && want.Region == r && want.Digest == d
		e.res.RegionsHashed++
		if !match {
			e.res.Mismatches = append(e.res.Mismatches, r)
			e.banner("MISMATCH in %s\n", r)
			e.log.Error("region mismatch",
				zap.Int("region", r.Index),
				zap.Uint64("start", r.Start),
				zap.Uint64("end", r.End),
				zap.Stringer("want", want.Digest),
				zap.Stringer("got", d),
			)
		} else {
			e.log.Debug("checkpoint verified", zap.Int("region", r.Index))
		}
		e.regionDone(PhaseVerify, r, match)
		return nil
	})
	if err != nil {
		return err
	}

	d, err := e.whole.Finalize()
	if err != nil {
		return opErr("digest", -1, err)
	}
	e.res.ReadDigest = d
	e.banner("SHA-256 (read):    %s\n", d)
	e.log.Info("verify pass complete",
		zap.Stringer("digest", d),
		zap.Uint64("bytes", e.res.BytesRead),
		zap.Int("mismatches", len(e.res.Mismatches)),
	)
	return nil
}

// pass walks the device buffer by buffer. transfer moves one chunk, which is
// then folded into both digests; checkpoint is called with the region digest
// every time a region boundary is reached.
func (e *Engine) pass(phase Phase, transfer func(p []byte, off uint64) error, checkpoint func(Region, Digest) error) error {
	e.whole.Init()
	e.region.Init()

	g := e.plan.Geometry
	total := g.Bytes()
	rep := e.opts.Reporter
	rep.Begin(phase, g.BlockCount, g.BlockSize)

	regionIdx := 0
	regionEnd := e.plan.Region(0).End
	iter := 0
	for off := uint64(0); off < total; {
		n := e.plan.chunk(off)
		p := e.buf[:n]
		if err := transfer(p, off); err != nil {
			return err
		}
		if err := e.whole.Update(p); err != nil {
			return opErr("digest", int64(off), err)
		}
		if err := e.region.Update(p); err != nil {
			return opErr("digest", int64(off), err)
		}
		off += uint64(n)
		iter++
		rep.Update(off / uint64(g.BlockSize))

		if off == regionEnd {
			d, err := e.region.Cut()
			if err != nil {
				return opErr("digest", int64(off), err)
			}
			if err := checkpoint(e.plan.Region(regionIdx), d); err != nil {
				return err
			}
			regionIdx++
			regionEnd = e.plan.Region(regionIdx).End
		}
	}
	rep.Finish()
	e.res.Iterations[phase-PhaseWrite] = iter
	return nil
}

func (e *Engine) syncDevice() error {
	s, ok := e.dev.(interface{ Sync() error })
	if !ok {
		return nil
	}
	e.log.Debug("syncing device")
	if err := s.Sync(); err != nil {
		return opErr("sync", -1, err)
	}
	return nil
}

func (e *Engine) regionDone(phase Phase, r Region, ok bool) {
	e.opts.Recorder.ObserveRegion(phase, ok)
	if o, is := e.opts.Reporter.(RegionObserver); is {
		o.RegionDone(phase, r, ok)
	}
}

func (e *Engine) banner(format string, args ...any) {
	fmt.Fprintf(e.opts.Out, format, args...)
}
