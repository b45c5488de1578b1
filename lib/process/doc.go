// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper used by fedcheck's main
// before the structured logger exists. It is the one place outside the
// CLI layer that writes to stderr directly.
package process
