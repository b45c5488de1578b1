// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/paracord-chat/fedcheck/lib/cli"
	"github.com/paracord-chat/fedcheck/lib/transcript"
)

func transcriptCommand(stdout io.Writer) *cli.Command {
	var (
		eventType   string
		matchedOnly bool
		payloads    bool
	)
	return &cli.Command{
		Name:    "transcript",
		Summary: "Print a recorded gateway transcript",
		Description: `Print a recorded gateway transcript.

Transcripts are written by 'fedcheck run --transcripts' to
<run_dir>/transcripts/<run id>/<session>` + transcript.Extension + `, one
record per dispatch in arrival order. Matched records satisfied the
wait that received them; unmatched ones were held back or never
awaited.`,
		Usage: "fedcheck transcript [flags] <path>...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("transcript", pflag.ContinueOnError)
			flagSet.StringVar(&eventType, "type", "", "only show dispatches of this type")
			flagSet.BoolVar(&matchedOnly, "matched", false, "only show dispatches that satisfied a wait")
			flagSet.BoolVar(&payloads, "payload", false, "include each dispatch's JSON payload")
			return flagSet
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) == 0 {
				return cli.Usagef("transcript: at least one path is required")
			}
			style := newStyles(stdout)
			for _, path := range args {
				records, err := transcript.Read(path)
				if err != nil {
					return err
				}
				if len(args) > 1 {
					fmt.Fprintf(stdout, "== %s\n", path)
				}
				for _, record := range records {
					if eventType != "" && record.Type != eventType {
						continue
					}
					if matchedOnly && !record.Matched {
						continue
					}
					marker := " "
					if record.Matched {
						marker = style.pass.Render("*")
					}
					fmt.Fprintf(stdout, "%s %6d  %s  %s  %s\n", marker, record.Sequence,
						style.faint.Render(record.ReceivedAt.Format(time.RFC3339Nano)),
						record.Session, record.Type)
					if payloads {
						fmt.Fprintf(stdout, "         %s\n", record.Payload)
					}
				}
			}
			return nil
		},
	}
}
