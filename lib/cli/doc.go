// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command-tree framework behind the fedcheck
// binary.
//
// A [Command] either dispatches to [Command.Subcommands] by its first
// positional argument or parses its pflag set and calls Run. Help is
// generated from the tree. Unknown subcommands get a closest-match
// suggestion.
//
// Exit codes are carried on errors. [ExitError] reports a code without
// an extra message (the command already printed its verdict);
// [UsageError] marks bad flags, arguments, or configuration and maps
// to exit status 2. [ExitCode] resolves any error to the status the
// process should exit with.
//
// [NewCommandLogger] builds the slog logger every subcommand uses:
// text on a terminal, JSON when stderr is captured by CI.
package cli
