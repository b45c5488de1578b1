// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Fedcheck is the Paracord federation validation harness.
//
// It starts (or attaches to) a set of Paracord nodes, links federation
// trust between them, drives a scenario through the control plane and
// gateway of the origin node, and checks that every change reached the
// other nodes. With the strict relay policy it also proves, from the
// nodes' delivery ledgers, that events travelled origin → relay →
// destination and never directly.
//
// Subcommands:
//
//	fedcheck run            run a scenario; exit 0 on PASS, 1 on FAIL
//	fedcheck verify-relay   prove one event's route from existing stores
//	fedcheck scenarios      list the registered scenarios
//	fedcheck transcript     print a recorded gateway transcript
//	fedcheck version        print build information
//
// Configuration comes from the file named by --config or, without the
// flag, the FEDCHECK_CONFIG environment variable. Bad flags or
// configuration exit with status 2.
package main
