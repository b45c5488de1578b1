// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package scenario runs federation validation scenarios against a
// topology of live nodes.
//
// A [Runner] provisions the topology (signing keys, node processes,
// health gating, one admin account per node), links trust along the
// configured edges, runs the scenario's setup, and then walks its
// [Step] list. Each step passes through four stages in order:
//
//   - Acting: the mutation is issued through the control plane.
//   - AwaitingRealtime: the origin node's own gateway subscribers must
//     observe the matching dispatch.
//   - AwaitingConvergence: every other node's store must reflect the
//     mutation within the convergence timeout.
//   - VerifyingRelay: the delivery ledgers must show the event took the
//     expected route.
//
// Stages never move backwards. The first failing stage ends the run,
// and the [Result] names the step and stage that failed together with
// a [Kind] classifying the failure. Every node, gateway session, and
// store handle the run acquired is released before Run returns, whether
// it passed, failed, or was cancelled.
package scenario
