// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/paracord-chat/fedcheck/lib/cli"
	"github.com/paracord-chat/fedcheck/scenario"
)

func scenariosCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "scenarios",
		Summary: "List the registered scenarios",
		Run: func(_ context.Context, args []string) error {
			if err := noArguments("scenarios", args); err != nil {
				return err
			}
			writer := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			for _, name := range scenario.Names() {
				instance, err := scenario.Lookup(name)
				if err != nil {
					return err
				}
				relayNote := ""
				if instance.RequiresRelay {
					relayNote = "relay"
				}
				fmt.Fprintf(writer, "%s\t%d steps\t%s\t%s\n", name, len(instance.Steps), relayNote, instance.Description)
			}
			return writer.Flush()
		},
	}
}
