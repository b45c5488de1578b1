// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock time so that deadline and interval
// logic can be tested deterministically.
//
// The harness has three time-driven behaviors: the gateway keepalive
// schedule, the bounded waits in the poller and in Session.Await, and
// the SIGTERM grace period during teardown. Each takes a [Clock].
// Production code passes [Real]; tests pass a [FakeClock] and drive it
// with [FakeClock.Advance].
//
// [FakeClock.WaitForTimers] closes the race between a goroutine
// registering a wait and the test advancing the clock past it.
package clock
