// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger returns the logger for a command run. On a terminal
// it writes slog text; when stderr is piped (CI, scripts) it writes
// JSON lines. verbose lowers the level to Debug, which includes every
// poll attempt and gateway frame.
//
//	logger := cli.NewCommandLogger(verbose).With("command", "run", "scenario", name)
func NewCommandLogger(verbose bool) *slog.Logger {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), verbose)
}

func newLogger(w io.Writer, terminal, verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	if terminal {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}
