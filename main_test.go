package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stressdrive/blockdev"
	"stressdrive/metrics"
)

func tempImage(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// runWithOpen runs the root command with a custom device opener.
func runWithOpen(t *testing.T, open openFunc, args ...string) (int, string, string) {
	t.Helper()
	cfg, err := loadConfig()
	require.NoError(t, err)
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&cfg, &stdout, &stderr, open)
	root.SetArgs(args)
	code := exitCode(root.Execute(), &stderr)
	return code, stdout.String(), stderr.String()
}

// corruptOnSync flips one byte when the device is synced between the passes.
type corruptOnSync struct {
	device
	off int64
}

func (c *corruptOnSync) Sync() error {
	if err := c.device.Sync(); err != nil {
		return err
	}
	b := make([]byte, 1)
	if _, err := c.device.ReadAt(b, c.off); err != nil {
		return err
	}
	b[0] ^= 0xff
	_, err := c.device.WriteAt(b, c.off)
	return err
}

var quiet = []string{"--direct=false", "--keep-awake=false", "--log-level", "error"}

func TestSixteenMiBImage(t *testing.T) {
	path := tempImage(t, 16<<20)
	metricsFile := filepath.Join(t.TempDir(), "run.prom")

	args := append([]string{path, "--buffer-size", "1MiB", "--region-size", "4MiB", "--metrics-file", metricsFile}, quiet...)
	code, out, errOut := runCLI(t, args...)
	require.Equal(t, exitOK, code, "stderr: %s", errOut)

	assert.Contains(t, out, "Block size:  512\n")
	assert.Contains(t, out, "Block count: 32768 (16M)\n")
	assert.Contains(t, out, "Writing 32768 blocks of 512 bytes...\n")
	assert.Contains(t, out, "Verifying...\n")
	assert.Contains(t, out, "SUCCESS: 4 regions verified, 16M written and read back intact\n")
	assert.NotContains(t, out, "MISMATCH")

	var written, read string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "SHA-256 (written): "):
			written = strings.TrimPrefix(line, "SHA-256 (written): ")
		case strings.HasPrefix(line, "SHA-256 (read):    "):
			read = strings.TrimPrefix(line, "SHA-256 (read):    ")
		}
	}
	assert.Len(t, written, 64)
	assert.Equal(t, written, read)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "stressdrive_last_run_exit_code")
	assert.Contains(t, string(prom), `stressdrive_regions_total{device="`+path+`",outcome="match",phase="verifying"} 4`)

	// The device is left holding the keystream.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, make([]byte, 512), data[:512])
}

func TestMissingDevice(t *testing.T) {
	code, _, errOut := runCLI(t, append([]string{filepath.Join(t.TempDir(), "absent")}, quiet...)...)
	assert.Equal(t, exitOperational, code)
	assert.Contains(t, errOut, "error: open:")
}

func TestArgumentCount(t *testing.T) {
	code, _, errOut := runCLI(t)
	assert.Equal(t, exitOperational, code)
	assert.Contains(t, errOut, "accepts 1 arg(s)")

	code, _, _ = runCLI(t, "a", "b")
	assert.Equal(t, exitOperational, code)
}

func TestRegionSizeMustAlign(t *testing.T) {
	path := tempImage(t, 1<<20)
	code, _, errOut := runCLI(t, append([]string{path, "--region-size", "1000"}, quiet...)...)
	assert.Equal(t, exitOperational, code)
	assert.Contains(t, errOut, "not a positive multiple of block size 512")
}

func TestLockedDevice(t *testing.T) {
	path := tempImage(t, 1<<20)
	holder, err := blockdev.Open(path, blockdev.Options{})
	require.NoError(t, err)
	defer holder.Close()
	require.NoError(t, holder.Lock())

	code, _, errOut := runCLI(t, append([]string{path}, quiet...)...)
	assert.Equal(t, exitOperational, code)
	assert.Contains(t, errOut, "is locked by another process")
}

func TestBadLogFlags(t *testing.T) {
	path := tempImage(t, 1<<20)
	code, _, errOut := runCLI(t, path, "--log-format", "xml", "--keep-awake=false")
	assert.Equal(t, exitOperational, code)
	assert.Contains(t, errOut, `unknown log format "xml"`)

	code, _, errOut = runCLI(t, path, "--log-level", "loud", "--keep-awake=false")
	assert.Equal(t, exitOperational, code)
	assert.Contains(t, errOut, `unknown log level "loud"`)
}

func TestBadSizeFlag(t *testing.T) {
	code, _, errOut := runCLI(t, "x", "--buffer-size", "lots")
	assert.Equal(t, exitOperational, code)
	assert.Contains(t, errOut, `invalid size "lots"`)
}

func TestEnvironmentDefaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ByteSize(8<<20), cfg.BufferSize)
	assert.Equal(t, ByteSize(1<<30), cfg.RegionSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.Direct)
	assert.True(t, cfg.KeepAwake)
	assert.Empty(t, cfg.MetricsFile)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STRESSDRIVE_BUFFER_SIZE", "2m")
	t.Setenv("STRESSDRIVE_REGION_SIZE", "64MiB")
	t.Setenv("STRESSDRIVE_DIRECT", "false")
	t.Setenv("STRESSDRIVE_LOG_FORMAT", "json")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ByteSize(2<<20), cfg.BufferSize)
	assert.Equal(t, ByteSize(64<<20), cfg.RegionSize)
	assert.False(t, cfg.Direct)
	assert.Equal(t, "json", cfg.LogFormat)

	t.Setenv("STRESSDRIVE_BUFFER_SIZE", "zero")
	_, err = loadConfig()
	assert.Error(t, err)

	code, _, errOut := runCLI(t, "x")
	assert.Equal(t, exitOperational, code)
	assert.Contains(t, errOut, "error: environment:")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("STRESSDRIVE_BUFFER_SIZE", "2MiB")
	cfg, err := loadConfig()
	require.NoError(t, err)

	root := newRootCmd(&cfg, &bytes.Buffer{}, &bytes.Buffer{}, openBlockdev)
	require.NoError(t, root.ParseFlags([]string{"--buffer-size", "512k", "--direct=false"}))
	assert.Equal(t, ByteSize(512<<10), cfg.BufferSize)
	assert.False(t, cfg.Direct)
	assert.Equal(t, "1GiB", root.Flags().Lookup("region-size").DefValue)
}

func TestParseSize(t *testing.T) {
	for in, want := range map[string]uint64{
		"512":   512,
		"4k":    4 << 10,
		"4KB":   4 << 10,
		"4KiB":  4 << 10,
		"8m":    8 << 20,
		"8MiB":  8 << 20,
		" 1g ":  1 << 30,
		"2GiB":  2 << 30,
		"100b":  100,
		"1 MiB": 1 << 20,
	} {
		got, err := parseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "0", "-1", "1.5m", "m", "12q"} {
		_, err := parseSize(in)
		assert.Error(t, err, in)
	}
}

func TestByteSizeString(t *testing.T) {
	assert.Equal(t, "8MiB", ByteSize(8<<20).String())
	assert.Equal(t, "1GiB", ByteSize(1<<30).String())
	assert.Equal(t, "3KiB", ByteSize(3<<10).String())
	assert.Equal(t, "1000", ByteSize(1000).String())
}

func TestHuman(t *testing.T) {
	assert.Equal(t, "512B", human(512))
	assert.Equal(t, "4K", human(4<<10))
	assert.Equal(t, "16M", human(16<<20))
	assert.Equal(t, "1.5G", human(3<<29))
}

func TestDevicesListing(t *testing.T) {
	code, out, _ := runCLI(t, "devices")
	if code != exitOK {
		t.Skip("device discovery unavailable here")
	}
	assert.Contains(t, out, "This is a SAFE, read-only listing.")
	assert.Contains(t, out, "Whole-disk devices:")
}

func TestCorruptedImageExitsOne(t *testing.T) {
	path := tempImage(t, 16<<20)
	metricsFile := filepath.Join(t.TempDir(), "run.prom")
	open := func(p string, opts blockdev.Options) (device, error) {
		d, err := openBlockdev(p, opts)
		if err != nil {
			return nil, err
		}
		return &corruptOnSync{device: d, off: 9<<20 + 123}, nil
	}

	args := append([]string{path, "--buffer-size", "1MiB", "--region-size", "4MiB", "--metrics-file", metricsFile}, quiet...)
	code, out, errOut := runWithOpen(t, open, args...)
	require.Equal(t, exitMismatch, code, "stderr: %s", errOut)

	assert.Contains(t, out, "MISMATCH in region 2 [8388608, 12582912)\n")
	assert.Equal(t, 1, strings.Count(out, "MISMATCH"))
	assert.Contains(t, out, "FAILURE: 1 of 4 regions mismatched, whole-device digests differ\n")
	assert.NotContains(t, out, "SUCCESS")
	assert.NotContains(t, errOut, "error:")

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `stressdrive_last_run_exit_code{device="`+path+`"} 1`)
	assert.Contains(t, string(prom), `stressdrive_regions_total{device="`+path+`",outcome="mismatch",phase="verifying"} 1`)
	assert.Contains(t, string(prom), `stressdrive_regions_total{device="`+path+`",outcome="match",phase="verifying"} 3`)
}

func TestEarlyFailuresWriteMetrics(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "absent")
	metricsFile := filepath.Join(dir, "missing.prom")
	code, _, _ := runCLI(t, append([]string{missing, "--metrics-file", metricsFile}, quiet...)...)
	require.Equal(t, exitOperational, code)
	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `stressdrive_last_run_exit_code{device="`+missing+`"} 2`)

	path := tempImage(t, 1<<20)
	holder, err := blockdev.Open(path, blockdev.Options{})
	require.NoError(t, err)
	defer holder.Close()
	require.NoError(t, holder.Lock())

	metricsFile = filepath.Join(dir, "locked.prom")
	code, _, _ = runCLI(t, append([]string{path, "--metrics-file", metricsFile}, quiet...)...)
	require.Equal(t, exitOperational, code)
	prom, err = os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `stressdrive_last_run_exit_code{device="`+path+`"} 2`)
}

func TestAbortFlushesHeldOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	metricsFile := filepath.Join(t.TempDir(), "abort.prom")
	r := &runner{
		cfg:         Config{MetricsFile: metricsFile},
		stdout:      &stdout,
		stderr:      &stderr,
		heldConsole: &heldOutput{},
		heldLogs:    &heldOutput{},
		rec:         metrics.New("/dev/test"),
	}
	log, err := newLogger("console", "info", r.heldLogs)
	require.NoError(t, err)
	r.log = log

	_, err = r.heldConsole.Write([]byte("SHA-256 (written): 00ff\n"))
	require.NoError(t, err)

	assert.Equal(t, exitOperational, r.abort())
	assert.Contains(t, stdout.String(), "SHA-256 (written): 00ff\n")
	assert.Contains(t, stderr.String(), "Interrupted")
	assert.Contains(t, stderr.String(), "run interrupted, device contents are undefined")

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `stressdrive_last_run_exit_code{device="/dev/test"} 2`)
}
