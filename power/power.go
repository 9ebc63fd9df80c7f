// Package power keeps the machine from idle-sleeping while a run is in
// progress. Every failure here is advisory; callers log and carry on.
package power

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ErrUnsupported is returned by Acquire where no mechanism exists.
var ErrUnsupported = errors.New("sleep inhibition not supported on this platform")

// Assertion is a held no-sleep assertion.
type Assertion interface {
	Release() error
}

// Inhibitor creates assertions.
type Inhibitor interface {
	Acquire(reason string) (Assertion, error)
}

// New returns the platform inhibitor.
func New() Inhibitor { return platformInhibitor() }

// helper runs an external command for as long as the assertion is held.
type helper struct {
	name string
	args func(reason string) []string
}

func (h helper) Acquire(reason string) (Assertion, error) {
	path, err := exec.LookPath(h.name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.name, err)
	}
	cmd := exec.Command(path, h.args(reason)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", h.name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", h.name, err)
	}
	return &process{cmd: cmd, stdin: stdin}, nil
}

// process is a running helper. Its stdin is a pipe that is closed on
// release, or by the kernel when we exit, so children reading it terminate.
type process struct {
	cmd   *exec.Cmd
	stdin io.Closer
}

func (p *process) Release() error {
	if p.cmd == nil {
		return nil
	}
	cmd := p.cmd
	p.cmd = nil
	_ = p.stdin.Close()
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("release assertion: %w", err)
	}
	// Reap the child; it always exits with a signal status here.
	_ = cmd.Wait()
	return nil
}

type unsupported struct{}

func (unsupported) Acquire(string) (Assertion, error) { return nil, ErrUnsupported }
