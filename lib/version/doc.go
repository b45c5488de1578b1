// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the fedcheck binary.
//
// [GitCommit], [GitDirty], and [BuildTime] are injected with -ldflags:
//
//	go build -ldflags "-X github.com/paracord-chat/fedcheck/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Run reports carry [Info] so a failing transcript can be matched to
// the harness build that produced it.
package version
