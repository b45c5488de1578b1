// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/paracord-chat/fedcheck/lib/cli"
	"github.com/paracord-chat/fedcheck/lib/config"
	"github.com/paracord-chat/fedcheck/lib/process"
	"github.com/paracord-chat/fedcheck/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	code, printErr := cli.ExitCode(err)
	if printErr {
		process.Fatal(err, code)
	}
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "--version" {
		fmt.Fprintln(stdout, version.Full())
		return nil
	}
	return root(stdout).Execute(ctx, args)
}

func root(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "fedcheck",
		Summary: "Paracord federation validation harness",
		Description: `Paracord federation validation harness.

Starts or attaches to a set of nodes, links federation trust, runs a
scenario, and checks realtime delivery, store convergence, and relay
routing.`,
		Output: stdout,
		Subcommands: []*cli.Command{
			runCommand(stdout),
			verifyRelayCommand(stdout),
			scenariosCommand(stdout),
			transcriptCommand(stdout),
			versionCommand(stdout),
		},
	}
}

// commonFlags are the flags every command that reads the configuration
// accepts.
type commonFlags struct {
	configPath string
	verbose    bool
}

func (c *commonFlags) bind(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.configPath, "config", "c", "",
		"path to fedcheck.yaml (default: $"+config.EnvVar+")")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log every poll attempt and gateway frame")
}

// load reads the configuration. Any failure is a usage error: nothing
// has been started yet.
func (c *commonFlags) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &cli.UsageError{Err: err}
	}
	return cfg, nil
}

// validate reports configuration problems as a usage error.
func validate(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return &cli.UsageError{Err: fmt.Errorf("invalid configuration:\n%w", err)}
	}
	return nil
}

func noArguments(command string, args []string) error {
	if len(args) > 0 {
		return cli.Usagef("%s: unexpected argument %q", command, args[0])
	}
	return nil
}

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print build information",
		Run: func(_ context.Context, args []string) error {
			if err := noArguments("version", args); err != nil {
				return err
			}
			fmt.Fprintln(stdout, version.Full())
			return nil
		},
	}
}
