// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/paracord-chat/fedcheck/lib/sqlitepool"
)

// Store runs script against the SQLite database at path, creating it in
// WAL mode, and returns the owning pool. The pool stays open until the
// test ends, the way a running node holds its store, so inspection
// pools opened later see a live WAL database.
//
//	testutil.Store(t, path, schema+`INSERT INTO federation_events VALUES ('$1:node-a.test');`)
func Store(t *testing.T, path, script string) *sqlitepool.Pool {
	t.Helper()
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		Mode:     sqlitepool.ModeOwned,
		PoolSize: 1,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, script, nil)
		},
	})
	if err != nil {
		t.Fatalf("opening fixture store %s: %v", path, err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("closing fixture store %s: %v", path, err)
		}
	})

	// The pool connects lazily; taking the connection runs the script.
	conn, err := pool.Take(t.Context())
	if err != nil {
		t.Fatalf("seeding %s: %v", path, err)
	}
	pool.Put(conn)
	return pool
}
