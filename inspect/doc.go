// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package inspect reads facts from Paracord node stores that the
// control API does not expose: which local row a remote message maps
// to, which local account a remote user resolved to, and the
// federation delivery and ingestion ledgers.
//
// Every query is read-only and answers for one node. The stores are
// written asynchronously by running nodes, so queries are meant to be
// wrapped in [poll.Until]. Conditions that mean "the node has not caught
// up yet" (the database file does not exist, is locked, or lacks a
// table the node creates on first use) are returned as [poll.NotReady]
// errors; anything else is a real failure.
package inspect
