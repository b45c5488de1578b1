// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds fedcheck's CBOR encoding configuration.
//
// The system under test speaks JSON and the harness talks to it in
// JSON. CBOR is used only for what the harness writes for itself:
// dispatch transcripts and run reports. Encoding uses Core
// Deterministic Encoding (RFC 8949 §4.2) so identical transcripts are
// byte-identical and can be diffed or hashed.
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
