// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paracord-chat/fedcheck/lib/clock"
	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/lib/testutil"
)

// waitForFile polls for path in real time.
func waitForFile(t *testing.T, path string) {
	t.Helper()
	err := poll.Until(t.Context(), "file "+path, func(context.Context) (bool, error) {
		_, err := os.Stat(path)
		return err == nil, nil
	}, poll.Options{Timeout: 10 * time.Second, Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStartWritesLogAndStops(t *testing.T) {
	dir := t.TempDir()
	ready := filepath.Join(dir, "ready")
	logPath := filepath.Join(dir, "logs", "a.log")
	script := testutil.Executable(t, "node", `
echo "node $NODE_KEY starting"
echo "to stderr" >&2
touch "$READY"
trap 'echo "terminated"; exit 0' TERM
while true; do sleep 0.05; done`)

	launcher := New(Config{StopGrace: 10 * time.Second})
	instance, err := launcher.Start(t.Context(), Spec{
		Key:     "a",
		Command: []string{script},
		Env:     map[string]string{"NODE_KEY": "a", "READY": ready},
		LogPath: logPath,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForFile(t, ready)
	if !instance.Alive() {
		t.Fatal("instance not alive after start")
	}

	if err := instance.Stop(t.Context()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if instance.Alive() {
		t.Error("instance alive after Stop")
	}
	if err := instance.Stop(t.Context()); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	for _, want := range []string{"node a starting", "to stderr"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log %q missing %q", data, want)
		}
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	dir := t.TempDir()
	ready := filepath.Join(dir, "ready")
	script := testutil.Executable(t, "stubborn", `
trap '' TERM
touch "$READY"
while true; do sleep 0.05; done`)

	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	launcher := New(Config{StopGrace: 5 * time.Second, Clock: fake})
	instance, err := launcher.Start(t.Context(), Spec{
		Key:     "b",
		Command: []string{script},
		Env:     map[string]string{"READY": ready},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForFile(t, ready)

	result := make(chan error, 1)
	go func() { result <- instance.Stop(t.Context()) }()

	// SIGTERM is ignored; only the grace timer ends the wait.
	fake.WaitForTimers(1)
	if !instance.Alive() {
		t.Fatal("process exited on SIGTERM despite ignoring it")
	}
	fake.Advance(5 * time.Second)

	if err := testutil.RequireReceive(t, result, 10*time.Second, "Stop result"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if instance.Alive() {
		t.Error("instance alive after SIGKILL")
	}
}

func TestStopAfterExit(t *testing.T) {
	script := testutil.Executable(t, "short", `exit 3`)
	instance, err := New(Config{}).Start(t.Context(), Spec{Key: "c", Command: []string{script}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	err = poll.Until(t.Context(), "process exit", func(context.Context) (bool, error) {
		return !instance.Alive(), nil
	}, poll.Options{Timeout: 10 * time.Second, Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if err := instance.Stop(t.Context()); err != nil {
		t.Errorf("Stop on exited process: %v", err)
	}
}

func TestAttach(t *testing.T) {
	instance, err := New(Config{}).Start(t.Context(), Spec{Key: "external"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if instance.Key() != "external" || !instance.Alive() {
		t.Errorf("attached instance = %q alive=%v", instance.Key(), instance.Alive())
	}
	if err := instance.Stop(t.Context()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestStartFailure(t *testing.T) {
	_, err := New(Config{}).Start(t.Context(), Spec{
		Key:     "missing",
		Command: []string{filepath.Join(t.TempDir(), "no-such-binary")},
	})
	if err == nil {
		t.Fatal("Start succeeded for a missing binary")
	}
}
