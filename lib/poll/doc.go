// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package poll provides the bounded wait used wherever convergence has
// no push notification: cross-node replication into a node's store,
// node health after launch, trust links becoming visible.
//
// [Until] evaluates a [Condition] immediately, then once per interval,
// with a final evaluation at the deadline. It returns nil on the first
// true result and a [*TimeoutError] naming the awaited condition once
// the deadline passes.
//
// Errors from a condition are handled narrowly. An error wrapped with
// [NotReady] means "the resource this condition reads does not exist
// yet" (a database file the server has not created, a table its
// migrations have not reached, a lock held by the writer) and counts as
// false; the most recent one is carried on the TimeoutError. Any other
// error ends the wait immediately, so a broken query is reported as
// itself instead of as a thirty-second timeout.
package poll
