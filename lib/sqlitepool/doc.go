// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools over node stores
// and harness fixtures.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Callers
// [Pool.Take] a connection, run their statements, and [Pool.Put] it
// back. A connection is not safe for concurrent use.
//
// # Modes
//
// The harness touches three kinds of database, and each gets its own
// [Mode]:
//
//   - [ModeReadOnly], the zero value: a live node's store the harness
//     only inspects. Opened with SQLITE_OPEN_READONLY and query_only,
//     so a mistaken statement cannot mutate the system under test.
//   - [ModeShared]: a live node's store that the harness writes into
//     while the node runs (mirroring a guild onto a peer). The file must
//     already exist. Only busy_timeout is set; the journal mode belongs
//     to the node.
//   - [ModeOwned]: a database the opener creates and owns, the way a
//     node owns its store. Test fixtures stand in for node stores this
//     way. The file is created if missing and every connection gets WAL
//     journaling, synchronous=NORMAL, and a 5s busy timeout.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   node.StorePath,
//	    Mode:   sqlitepool.ModeReadOnly,
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
package sqlitepool
