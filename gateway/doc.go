// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway is a client for the Paracord realtime gateway.
//
// A [Session] owns one websocket connection. [Dial] performs the
// handshake: the server greets with HELLO (op 10) carrying the
// heartbeat interval, the client identifies with its bearer token
// (op 2), and the server confirms with a READY dispatch. After that the
// server pushes DISPATCH frames (op 0) for every event the session's
// user is subscribed to.
//
// Callers assert on realtime delivery with [Session.Await], which
// returns the first dispatch of a given type that satisfies a
// [Predicate]. Dispatches that arrive while waiting for something else
// are kept in an ordered backlog and handed to a later Await that
// matches them, so assertions do not depend on the order in which
// unrelated events interleave. Each dispatch is returned at most once.
//
// Heartbeats (op 1) are sent from Await whenever 90% of the negotiated
// interval has passed since the previous one. A session that is not
// awaited for longer than the interval stops heartbeating and may be
// disconnected by the server; [KeepaliveBackground] sends heartbeats
// from a dedicated goroutine instead.
//
// A single goroutine reads frames from the connection and forwards them
// to Await over a channel. The backlog and matching run on the caller's
// goroutine. A Session must not be awaited from more than one goroutine
// at a time.
package gateway
