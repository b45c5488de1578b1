// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"github.com/paracord-chat/fedcheck/lib/cli"
	"github.com/paracord-chat/fedcheck/scenario"
)

func runCommand(stdout io.Writer) *cli.Command {
	var (
		common       commonFlags
		scenarioName string
		relayPolicy  string
		keepalive    string
		transcripts  bool
	)
	return &cli.Command{
		Name:    "run",
		Summary: "Run a scenario against the configured topology",
		Description: `Run a scenario against the configured topology.

Nodes with a command are started and stopped by the run; nodes without
one must already be listening. Trust is linked exactly as configured,
then each step acts on the origin and waits for the realtime dispatch,
store convergence on the other nodes, and (for relay scenarios) the
relay proof.

Prints one PASS or FAIL line followed by the run's trail. Exits 0 on
PASS and 1 on FAIL.`,
		Usage: "fedcheck run [flags]",
		Examples: []cli.Example{
			{Description: "Run the configured scenario", Command: "fedcheck run --config fedcheck.yaml"},
			{Description: "Run the fundamentals scenario with transcripts", Command: "fedcheck run --scenario fundamentals --transcripts"},
			{Description: "Accept any delivery path to the destination", Command: "fedcheck run --relay-policy reachability"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			common.bind(flagSet)
			flagSet.StringVar(&scenarioName, "scenario", "", "scenario to run (overrides scenario.name)")
			flagSet.StringVar(&relayPolicy, "relay-policy", "", "strict or reachability (overrides relay.policy)")
			flagSet.StringVar(&keepalive, "keepalive", "", "piggyback or background (overrides gateway.keepalive)")
			flagSet.BoolVar(&transcripts, "transcripts", false, "record every gateway dispatch under the run directory")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := noArguments("run", args); err != nil {
				return err
			}
			cfg, err := common.load()
			if err != nil {
				return err
			}
			if scenarioName != "" {
				cfg.Scenario.Name = scenarioName
			}
			if relayPolicy != "" {
				cfg.Relay.Policy = relayPolicy
			}
			if keepalive != "" {
				cfg.Gateway.Keepalive = keepalive
			}
			if transcripts {
				cfg.Gateway.Transcripts = true
			}
			if err := validate(cfg); err != nil {
				return err
			}

			selected, err := scenario.Lookup(cfg.Scenario.Name)
			if err != nil {
				return &cli.UsageError{Err: err}
			}

			logger := cli.NewCommandLogger(common.verbose).With("command", "run")
			runner := &scenario.Runner{Config: cfg, Logger: logger}
			result := runner.Run(ctx, selected)

			printResult(stdout, result)
			if !result.Passed {
				return &cli.ExitError{Code: cli.ExitFail}
			}
			return nil
		},
	}
}
