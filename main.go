// stressdrive writes the entire surface of a block device with unpredictable
// data, reads it back, and reports whether every byte survived.
//
// Usage:
//
//	stressdrive [flags] <device>
//	stressdrive devices [--all]
//
// Exit status is 0 when the device verified, 1 when any region read back
// differently than written, and 2 on any operational failure.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"stressdrive/blockdev"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a non-zero exit status that is not an error message,
// i.e. a verification failure that has already been reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func execute(args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitOperational
	}
	root := newRootCmd(&cfg, stdout, stderr, openBlockdev)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return exitCode(root.Execute(), stderr)
}

// exitCode maps a command error to the process exit status, printing it
// unless it is a verification failure that has already been reported.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitOperational
}

func newRootCmd(cfg *Config, stdout, stderr io.Writer, open openFunc) *cobra.Command {
	var opts runOptions
	root := &cobra.Command{
		Use:   "stressdrive [flags] <device>",
		Short: "Write and verify every block of a storage device",
		Long: "Overwrites the whole device with a cryptographic keystream, then reads it back and\n" +
			"compares per-region and whole-device SHA-256 digests. ALL DATA ON THE DEVICE IS DESTROYED.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			r := &runner{cfg: *cfg, opts: opts, stdout: stdout, stderr: stderr, open: open}
			logOut := stderr
			if opts.tui {
				r.heldLogs = &heldOutput{}
				logOut = r.heldLogs
				defer r.flushLogs()
			}
			log, err := newLogger(cfg.LogFormat, cfg.LogLevel, logOut)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			r.log = log

			code, err := r.run(args[0])
			if err != nil {
				return err
			}
			if code != exitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}

	f := root.Flags()
	f.Var(&cfg.BufferSize, "buffer-size", "I/O buffer size, rounded down to a multiple of the block size (env STRESSDRIVE_BUFFER_SIZE)")
	f.Var(&cfg.RegionSize, "region-size", "checkpoint region size, a multiple of the block size (env STRESSDRIVE_REGION_SIZE)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error (env STRESSDRIVE_LOG_LEVEL)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json (env STRESSDRIVE_LOG_FORMAT)")
	f.BoolVar(&cfg.Direct, "direct", cfg.Direct, "bypass the page cache (env STRESSDRIVE_DIRECT)")
	f.BoolVar(&cfg.KeepAwake, "keep-awake", cfg.KeepAwake, "prevent system sleep during the run (env STRESSDRIVE_KEEP_AWAKE)")
	f.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write run metrics in prometheus text format to this file (env STRESSDRIVE_METRICS_FILE)")
	f.BoolVar(&opts.tui, "tui", false, "fullscreen region map instead of a progress line")
	f.BoolVar(&opts.force, "force", false, "run even if filesystems on the device are mounted")

	root.AddCommand(newDevicesCmd(stdout))
	return root
}

func newDevicesCmd(stdout io.Writer) *cobra.Command {
	var listAll bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List candidate devices (read-only)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			infos, err := blockdev.Discover()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "OS: %s\n", runtime.GOOS)
			fmt.Fprintln(stdout, "This is a SAFE, read-only listing. Nothing is written.")
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, "Whole-disk devices:")
			fmt.Fprintf(stdout, "  %-18s  %-10s  %s\n", "Path", "Size", "Mounted")
			printed := false
			for _, d := range infos {
				if !d.Compatible {
					continue
				}
				fmt.Fprintf(stdout, "  %-18s  %-10s  %s\n", d.Path, deviceSize(d.Path), mountSummary(d.Path))
				printed = true
			}
			if !printed {
				fmt.Fprintln(stdout, "  <none detected>")
			}
			if listAll {
				fmt.Fprintln(stdout)
				fmt.Fprintln(stdout, "Partitions and other nodes (not whole disks):")
				for _, d := range infos {
					if d.Compatible {
						continue
					}
					reason := d.Reason
					if strings.TrimSpace(reason) == "" {
						reason = "not a whole-disk device"
					}
					fmt.Fprintf(stdout, "  %s  (%s)\n", d.Path, reason)
				}
			}
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, "Notes:")
			switch runtime.GOOS {
			case "darwin":
				fmt.Fprintln(stdout, "  - Raw whole disks are /dev/rdiskN; unmount with 'diskutil unmountDisk' first.")
			case "linux":
				fmt.Fprintln(stdout, "  - Whole disks: /dev/sdX, /dev/vdX, /dev/nvmeXnY, /dev/mmcblkX. Unmount every partition first.")
			case "windows":
				fmt.Fprintln(stdout, "  - Volumes on the drive are locked and dismounted for the duration of the run.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&listAll, "all", false, "include partitions and other non-whole-disk nodes")
	return cmd
}

// deviceSize opens path read-only for its geometry, or "?" when it cannot.
func deviceSize(path string) string {
	dev, err := blockdev.Open(path, blockdev.Options{ReadOnly: true})
	if err != nil {
		return "?"
	}
	defer dev.Close()
	g, err := dev.Geometry()
	if err != nil {
		return "?"
	}
	return human(g.Bytes())
}

func mountSummary(path string) string {
	mounts, err := blockdev.Mounts(path)
	if err != nil {
		return "?"
	}
	if len(mounts) == 0 {
		return "no"
	}
	var mps []string
	for _, m := range mounts {
		mps = append(mps, m.Mountpoint)
	}
	return "yes: " + strings.Join(mps, ", ")
}

func human(b uint64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1fG", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%dM", b>>20)
	case b >= 1<<10:
		return fmt.Sprintf("%dK", b>>10)
	}
	return fmt.Sprintf("%dB", b)
}
