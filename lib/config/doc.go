// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the fedcheck harness configuration.
//
// Configuration comes from exactly one YAML file, named either by the
// FEDCHECK_CONFIG environment variable ([Load]) or by the --config flag
// ([LoadFile]). There is no discovery and no per-field environment
// override: a run is reproducible from its config file alone.
//
// [Default] describes the canonical three-node relay chain (a, b, c on
// 127.0.0.1:18081-18083) with the edges A→B, B→A, B→C, C→B, C→A and no
// A→C, so that anything reaching C from A must be relayed by B. A file
// only needs to override what differs, typically the node commands.
//
// String fields are expanded after loading: ${RUN_DIR}, ${NODE},
// ${HOME}, and ${VAR:-default} are replaced. Durations are written
// as Go duration strings ("30s", "400ms").
//
// [Config.Validate] reports every problem at once.
package config
