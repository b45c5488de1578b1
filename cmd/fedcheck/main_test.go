// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paracord-chat/fedcheck/lib/cli"
	"github.com/paracord-chat/fedcheck/lib/config"
	"github.com/paracord-chat/fedcheck/lib/testutil"
	"github.com/paracord-chat/fedcheck/lib/transcript"
	"github.com/paracord-chat/fedcheck/lib/version"
	"github.com/paracord-chat/fedcheck/scenario"
)

// execute runs the CLI with args and returns stdout and the exit code.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var stdout bytes.Buffer
	err := run(t.Context(), args, &stdout)
	code, _ := cli.ExitCode(err)
	return stdout.String(), code
}

func TestVersion(t *testing.T) {
	for _, args := range [][]string{{"--version"}, {"version"}} {
		output, code := execute(t, args...)
		if code != cli.ExitPass {
			t.Fatalf("%v: exit %d", args, code)
		}
		if output != version.Full()+"\n" {
			t.Errorf("%v printed %q", args, output)
		}
	}
}

func TestUsageErrors(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	dir := t.TempDir()
	badPolicy := writeConfig(t, dir, "relay:\n  policy: sometimes\n")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"rnu"}},
		{"no subcommand", nil},
		{"unknown flag", []string{"run", "--fast"}},
		{"no config", []string{"run"}},
		{"missing config file", []string{"run", "--config", filepath.Join(dir, "absent.yaml")}},
		{"invalid config", []string{"run", "--config", badPolicy}},
		{"unknown scenario", []string{"run", "--config", writeConfig(t, dir, ""), "--scenario", "nope"}},
		{"stray argument", []string{"scenarios", "extra"}},
		{"verify without event", []string{"verify-relay", "--config", writeConfig(t, dir, "")}},
		{"verify with both ids", []string{"verify-relay", "--event-id", "$1:node-a.test", "--message-id", "1"}},
		{"transcript without path", []string{"transcript"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, code := execute(t, test.args...)
			if code != cli.ExitUsage {
				t.Errorf("exit %d, want %d", code, cli.ExitUsage)
			}
		})
	}
}

func TestScenarios(t *testing.T) {
	output, code := execute(t, "scenarios")
	if code != cli.ExitPass {
		t.Fatalf("exit %d", code)
	}
	for _, name := range scenario.Names() {
		if !strings.Contains(output, name) {
			t.Errorf("listing lacks %q:\n%s", name, output)
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if strings.HasPrefix(line, "federation ") && !strings.Contains(line, "relay") {
			t.Errorf("federation is not marked as a relay scenario: %q", line)
		}
	}
}

// writeConfig writes a configuration whose run directory is dir, with
// extra YAML appended, and returns its path.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	file, err := os.CreateTemp(dir, "fedcheck-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteString("run_dir: " + dir + "\n" + extra); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return file.Name()
}

const ledgerSchema = `
CREATE TABLE federation_delivery_attempts (event_id TEXT NOT NULL, destination_server TEXT NOT NULL);
CREATE TABLE federation_events (event_id TEXT NOT NULL);
`

// seedStores creates the a, b, and c stores at the default store paths
// under dir, appending each node's script to the ledger schema.
func seedStores(t *testing.T, dir string, scripts map[string]string) {
	t.Helper()
	for _, key := range []string{"a", "b", "c"} {
		path := filepath.Join(dir, key, "paracord.db")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		testutil.Store(t, path, ledgerSchema+scripts[key])
	}
}

func TestVerifyRelay(t *testing.T) {
	const event = "$9001:node-a.test"
	relayed := map[string]string{
		"a": `INSERT INTO federation_delivery_attempts VALUES ('` + event + `', 'node-b.test');`,
		"b": `INSERT INTO federation_delivery_attempts VALUES ('` + event + `', 'node-c.test');`,
		"c": `INSERT INTO federation_events VALUES ('` + event + `');`,
	}
	direct := map[string]string{
		"a": `INSERT INTO federation_delivery_attempts VALUES ('` + event + `', 'node-c.test');`,
		"c": `INSERT INTO federation_events VALUES ('` + event + `');`,
	}

	tests := []struct {
		name     string
		stores   map[string]string
		args     []string
		wantCode int
		want     []string
	}{
		{
			name:     "relayed by event id",
			stores:   relayed,
			args:     []string{"--event-id", event},
			wantCode: cli.ExitPass,
			want:     []string{"PASS strict relay proof", "direct=0 relay=1 ingested=1"},
		},
		{
			name:     "relayed by message id",
			stores:   relayed,
			args:     []string{"--message-id", "9001"},
			wantCode: cli.ExitPass,
			want:     []string{"PASS", event},
		},
		{
			name:     "direct delivery",
			stores:   direct,
			args:     []string{"--event-id", event},
			wantCode: cli.ExitFail,
			want:     []string{"FAIL strict relay proof", "a attempted direct delivery to c 1 time(s)", "b recorded no delivery attempt to c"},
		},
		{
			name:     "direct delivery is reachable",
			stores:   direct,
			args:     []string{"--event-id", event, "--relay-policy", "reachability"},
			wantCode: cli.ExitPass,
			want:     []string{"PASS reachability relay proof"},
		},
		{
			name:     "not yet ingested",
			stores:   map[string]string{"b": relayed["b"]},
			args:     []string{"--event-id", event, "--wait", "50ms"},
			wantCode: cli.ExitFail,
			want:     []string{"c has not ingested the event", "still unproven"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			seedStores(t, dir, test.stores)
			args := append([]string{"verify-relay", "--config", writeConfig(t, dir, "")}, test.args...)
			output, code := execute(t, args...)
			if code != test.wantCode {
				t.Fatalf("exit %d, want %d; output:\n%s", code, test.wantCode, output)
			}
			for _, want := range test.want {
				if !strings.Contains(output, want) {
					t.Errorf("output lacks %q:\n%s", want, output)
				}
			}
		})
	}
}

func TestTranscript(t *testing.T) {
	session := testutil.UniqueID("a-guest_one")
	writer, err := transcript.Create(t.TempDir(), session)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, record := range []transcript.Record{
		{Session: session, Sequence: 1, Type: "READY", ReceivedAt: received, Payload: []byte(`{}`)},
		{Session: session, Sequence: 2, Type: "MESSAGE_CREATE", ReceivedAt: received.Add(time.Second),
			Payload: []byte(`{"content":"hello"}`), Matched: true},
	} {
		if err := writer.Write(record); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	output, code := execute(t, "transcript", writer.Path())
	if code != cli.ExitPass {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(output, "READY") || !strings.Contains(output, "MESSAGE_CREATE") {
		t.Errorf("transcript output:\n%s", output)
	}
	if strings.Contains(output, "hello") {
		t.Errorf("payload printed without --payload:\n%s", output)
	}

	output, _ = execute(t, "transcript", "--matched", "--payload", writer.Path())
	if strings.Contains(output, "READY") {
		t.Errorf("--matched printed an unmatched record:\n%s", output)
	}
	if !strings.Contains(output, `{"content":"hello"}`) {
		t.Errorf("--payload did not print the payload:\n%s", output)
	}

	if _, code := execute(t, "transcript", filepath.Join(t.TempDir(), "absent"+transcript.Extension)); code != cli.ExitFail {
		t.Errorf("missing transcript: exit %d, want %d", code, cli.ExitFail)
	}
}

func TestPrintResult(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	result := &scenario.Result{
		RunID:    "run-1",
		Scenario: "federation",
		Position: scenario.Position{Step: 2, Stage: scenario.StageAwaitingConvergence},
		StepName: "message edit",
		Err:      errors.New("mapped message content never matched"),
		Kind:     scenario.KindConvergenceTimeout,
		Trail: []scenario.Entry{
			{At: started, Position: scenario.Position{Stage: scenario.StageTrustLinking}, Message: "trust linked"},
		},
		CleanupErr: errors.New("stopping b: still running"),
		Started:    started,
	}

	var output bytes.Buffer
	printResult(&output, result)
	for _, want := range []string{
		"FAIL federation at step 2 (message edit) awaiting-convergence [convergence-timeout]",
		"run run-1",
		"teardown: stopping b: still running",
		"12:00:00.000",
		"trust-linking",
		"trust linked",
	} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, output.String())
		}
	}
	if strings.Contains(output.String(), "\x1b[") {
		t.Errorf("styled output written to a non-terminal:\n%q", output.String())
	}
}

func TestPrintResultPassed(t *testing.T) {
	result := &scenario.Result{
		RunID:    "run-2",
		Scenario: "fundamentals",
		Passed:   true,
		Duration: 1500 * time.Millisecond,
	}
	var output bytes.Buffer
	printResult(&output, result)
	firstLine, _, _ := strings.Cut(output.String(), "\n")
	if firstLine != "PASS fundamentals in 1.5s" {
		t.Errorf("verdict line = %q, want %q", firstLine, "PASS fundamentals in 1.5s")
	}
}
