// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by fedcheck's package tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-fallback
// pattern so individual tests never call time.After themselves. They
// are the only real wall-clock timeouts in the suite: everything else
// that waits runs on a clock.FakeClock.
//
// [UniqueID] produces monotonically increasing identifiers for message
// bodies, usernames, and guild names that must be told apart when one
// fake server is shared by several subtests.
//
// [Executable] writes a throwaway shell script for tests that need a
// real child process (the launcher's termination tests).
//
// Helpers call t.Fatalf on failure. Setup failures are not
// recoverable.
package testutil
