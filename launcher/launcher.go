// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package launcher starts and stops the node processes a scenario runs
// against.
//
// The scenario runner only needs three things from a node process: start
// it, ask whether it is still alive, and terminate it. [Launcher] is that
// interface. [Process] implements it with child processes; nodes without
// a command are attached to rather than started, for runs against nodes
// managed elsewhere.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/paracord-chat/fedcheck/lib/clock"
)

// Spec describes one node to start.
type Spec struct {
	Key string

	// Command is the argv. Empty means attach: the node is already
	// running and Stop leaves it alone.
	Command []string
	Dir     string

	// Env is added to the harness's own environment.
	Env map[string]string

	// LogPath receives the node's stdout and stderr, appended. Empty
	// discards them.
	LogPath string
}

// Instance is a started or attached node.
type Instance interface {
	Key() string

	// Alive reports whether the process is still running. Attached
	// instances are always alive as far as the launcher knows.
	Alive() bool

	// Stop terminates the node. It is idempotent and safe to call on an
	// instance that already exited.
	Stop(ctx context.Context) error
}

// Launcher starts nodes.
type Launcher interface {
	Start(ctx context.Context, spec Spec) (Instance, error)
}

// Config configures a Process launcher.
type Config struct {
	// StopGrace is how long Stop waits after SIGTERM before SIGKILL.
	// Defaults to 5s.
	StopGrace time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Process launches nodes as child processes, each in its own process
// group so that signals reach anything the node spawns.
type Process struct {
	grace  time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// New returns a Process launcher.
func New(config Config) *Process {
	if config.StopGrace <= 0 {
		config.StopGrace = 5 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Process{grace: config.StopGrace, clock: config.Clock, logger: config.Logger}
}

// Start starts spec's command, or attaches when it has none.
func (p *Process) Start(ctx context.Context, spec Spec) (Instance, error) {
	logger := p.logger.With("node", spec.Key)
	if len(spec.Command) == 0 {
		logger.Info("attaching to externally managed node")
		return attached{key: spec.Key}, nil
	}

	var output *os.File
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("launcher: %s: creating log directory: %w", spec.Key, err)
		}
		file, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("launcher: %s: opening log: %w", spec.Key, err)
		}
		output = file
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if output != nil {
		cmd.Stdout = output
		cmd.Stderr = output
	}
	if len(spec.Env) > 0 {
		cmd.Env = os.Environ()
		for name, value := range spec.Env {
			cmd.Env = append(cmd.Env, name+"="+value)
		}
	}

	if err := cmd.Start(); err != nil {
		if output != nil {
			output.Close()
		}
		return nil, fmt.Errorf("launcher: starting %s: %w", spec.Key, err)
	}
	// The child holds its own descriptor now.
	if output != nil {
		output.Close()
	}

	instance := &process{
		key:    spec.Key,
		pid:    cmd.Process.Pid,
		grace:  p.grace,
		clock:  p.clock,
		logger: logger,
		exited: make(chan struct{}),
	}
	go func() {
		instance.waitErr = cmd.Wait()
		close(instance.exited)
	}()

	logger.Info("node started", "pid", instance.pid, "command", spec.Command, "log", spec.LogPath)
	return instance, nil
}

type attached struct{ key string }

func (a attached) Key() string                { return a.key }
func (a attached) Alive() bool                { return true }
func (a attached) Stop(context.Context) error { return nil }

type process struct {
	key    string
	pid    int
	grace  time.Duration
	clock  clock.Clock
	logger *slog.Logger

	exited  chan struct{}
	waitErr error // written before exited is closed

	stopOnce sync.Once
	stopErr  error
}

func (p *process) Key() string { return p.key }

// PID returns the process ID, which is also its process group ID.
func (p *process) PID() int { return p.pid }

func (p *process) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

func (p *process) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { p.stopErr = p.stop(ctx) })
	return p.stopErr
}

func (p *process) stop(ctx context.Context) error {
	if !p.Alive() {
		p.logger.Warn("node had already exited", "pid", p.pid, "exit", p.waitErr)
		return nil
	}

	// Negative PID signals the whole process group.
	if err := p.signal(unix.SIGTERM); err != nil {
		return err
	}
	timer := p.clock.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-p.exited:
		p.logger.Info("node stopped", "pid", p.pid)
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	p.logger.Warn("node ignored SIGTERM, killing", "pid", p.pid, "grace", p.grace)
	if err := p.signal(unix.SIGKILL); err != nil {
		return err
	}
	select {
	case <-p.exited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("launcher: %s: waiting for exit after SIGKILL: %w", p.key, ctx.Err())
	}
}

func (p *process) signal(signal unix.Signal) error {
	err := unix.Kill(-p.pid, signal)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}
	return fmt.Errorf("launcher: %s: sending %v to process group %d: %w", p.key, signal, p.pid, err)
}
