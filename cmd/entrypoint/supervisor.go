package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/louisbranch/cellarpool/internal/platform/logging"
)

type childSpec struct {
	name string
	path string
	args []string
}

type child struct {
	name string
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// supervisor runs a fixed set of children and stops all of them as soon as
// one exits or the context ends.
type supervisor struct {
	logger *logging.Logger
	grace  time.Duration
	stdout io.Writer
	stderr io.Writer
}

type childExit struct {
	name string
	err  error
}

// run returns the exit code of the first child to exit, 0 when the context
// ended first, or 1 when a child could not start.
func (s *supervisor) run(ctx context.Context, specs []childSpec) int {
	exits := make(chan childExit, len(specs))
	children := make([]*child, 0, len(specs))
	for _, spec := range specs {
		c, err := s.start(spec, exits)
		if err != nil {
			s.logger.Error("child failed to start", "child", spec.name, "error", err)
			s.stop(children)
			return 1
		}
		s.logger.Info("child started", "child", spec.name, "pid", c.cmd.Process.Pid)
		children = append(children, c)
	}

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
		s.stop(children)
		return 0
	case exit := <-exits:
		s.logger.Warn("child exited", "child", exit.name, "error", exit.err)
		s.stop(children)
		return exitCode(exit.err)
	}
}

func (s *supervisor) start(spec childSpec, exits chan<- childExit) (*child, error) {
	cmd := exec.Command(spec.path, spec.args...)
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.name, err)
	}
	c := &child{name: spec.name, cmd: cmd, done: make(chan struct{})}
	go func() {
		c.err = cmd.Wait()
		close(c.done)
		exits <- childExit{name: c.name, err: c.err}
	}()
	return c, nil
}

// stop sends SIGTERM to every child and kills those still running after the
// grace period.
func (s *supervisor) stop(children []*child) {
	for _, c := range children {
		_ = c.cmd.Process.Signal(syscall.SIGTERM)
	}
	deadline := time.NewTimer(s.grace)
	defer deadline.Stop()
	for _, c := range children {
		select {
		case <-c.done:
		case <-deadline.C:
			s.logger.Warn("grace period elapsed, killing children")
			for _, remaining := range children {
				select {
				case <-remaining.done:
				default:
					_ = remaining.cmd.Process.Kill()
				}
			}
			return
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}
