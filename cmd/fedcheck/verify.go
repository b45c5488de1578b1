// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/paracord-chat/fedcheck/inspect"
	"github.com/paracord-chat/fedcheck/lib/cli"
	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/relay"
	"github.com/paracord-chat/fedcheck/topology"
)

func verifyRelayCommand(stdout io.Writer) *cli.Command {
	var (
		common      commonFlags
		eventID     string
		messageID   int64
		relayPolicy string
		wait        time.Duration
	)
	return &cli.Command{
		Name:    "verify-relay",
		Summary: "Prove one event's relay route from existing node stores",
		Description: `Prove one event's relay route from existing node stores.

Reads the delivery and ingestion ledgers of the configured origin,
relay, and destination stores and checks them against the relay policy.
Nothing is started and no request is sent to any node.

Without --wait the ledgers are read once. With --wait, missing evidence
is retried until the duration passes; a direct delivery under the
strict policy fails at once.`,
		Usage: "fedcheck verify-relay (--event-id ID | --message-id N) [flags]",
		Examples: []cli.Example{
			{Description: "Check an event by ID", Command: "fedcheck verify-relay --event-id '$9001:node-a.test'"},
			{Description: "Check an origin message, waiting up to a minute", Command: "fedcheck verify-relay --message-id 9001 --wait 1m"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify-relay", pflag.ContinueOnError)
			common.bind(flagSet)
			flagSet.StringVar(&eventID, "event-id", "", "federation event ID ($<message id>:<origin server>)")
			flagSet.Int64Var(&messageID, "message-id", 0, "origin message ID; the event ID is derived from it")
			flagSet.StringVar(&relayPolicy, "relay-policy", "", "strict or reachability (overrides relay.policy)")
			flagSet.DurationVar(&wait, "wait", 0, "retry missing evidence for this long")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if err := noArguments("verify-relay", args); err != nil {
				return err
			}
			if (eventID == "") == (messageID == 0) {
				return cli.Usagef("verify-relay: exactly one of --event-id and --message-id is required")
			}
			cfg, err := common.load()
			if err != nil {
				return err
			}
			if relayPolicy != "" {
				cfg.Relay.Policy = relayPolicy
			}
			if err := validate(cfg); err != nil {
				return err
			}
			policy, err := relay.ParsePolicy(cfg.Relay.Policy)
			if err != nil {
				return &cli.UsageError{Err: err}
			}
			graph, err := topology.FromConfig(cfg)
			if err != nil {
				return &cli.UsageError{Err: err}
			}

			hop := func(key string) relay.Hop {
				node, _ := graph.Node(key)
				return relay.Hop{Node: node.Key, Server: node.ServerName}
			}
			route := relay.Route{
				Origin:      hop(cfg.Scenario.Origin),
				Relay:       hop(cfg.Scenario.Relay),
				Destination: hop(cfg.Scenario.Destination),
				EventID:     eventID,
			}
			if route.EventID == "" {
				route.EventID = relay.EventID(messageID, route.Origin.Server)
			}

			logger := cli.NewCommandLogger(common.verbose).With("command", "verify-relay")
			stores := make(map[string]string)
			for _, node := range graph.Nodes() {
				stores[node.Key] = node.StorePath
			}
			inspector := inspect.New(inspect.Config{Stores: stores, Logger: logger})
			defer inspector.Close()

			evidence, err := proveRoute(ctx, inspector, route, policy, wait, logger)
			return reportProof(stdout, route, policy, evidence, err)
		},
	}
}

// proveRoute reads the evidence once, or polls for up to wait.
func proveRoute(ctx context.Context, ledger relay.Ledger, route relay.Route, policy relay.Policy, wait time.Duration, logger *slog.Logger) (relay.Evidence, error) {
	if wait <= 0 {
		evidence, err := relay.Collect(ctx, ledger, route)
		if err != nil {
			return evidence, err
		}
		return evidence, evidence.Verify(policy)
	}
	logger.Debug("waiting for relay proof", "route", route.String(), "wait", wait)
	return relay.Prove(ctx, ledger, route, policy, poll.Options{Timeout: wait, Logger: logger})
}

// reportProof prints the verdict. A failed proof has already been
// explained, so it exits 1 without repeating the error.
func reportProof(w io.Writer, route relay.Route, policy relay.Policy, evidence relay.Evidence, err error) error {
	style := newStyles(w)
	counts := fmt.Sprintf("direct=%d relay=%d ingested=%d",
		evidence.DirectAttempts, evidence.RelayAttempts, evidence.Ingested)

	if err == nil {
		fmt.Fprintf(w, "%s %s relay proof for %s (%s)\n", style.pass.Render("PASS"), policy, route, counts)
		return nil
	}

	var proofErr *relay.ProofError
	if !errors.As(err, &proofErr) {
		return err
	}
	fmt.Fprintf(w, "%s %s relay proof for %s (%s)\n", style.fail.Render("FAIL"), policy, route, counts)
	for _, violation := range proofErr.Violations {
		fmt.Fprintf(w, "  %s\n", violation)
	}
	if poll.IsTimeout(err) {
		fmt.Fprintf(w, "  %s\n", style.warn.Render("still unproven when the wait ran out"))
	}
	return &cli.ExitError{Code: cli.ExitFail}
}
