// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/lib/sqlitepool"
)

// Config lists the stores to inspect.
type Config struct {
	// Stores maps node key to database path.
	Stores map[string]string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Inspector answers queries against node stores. Pools are opened on
// first use. It is safe for concurrent use.
type Inspector struct {
	stores map[string]string
	logger *slog.Logger

	mu    sync.Mutex
	pools map[string]*sqlitepool.Pool
}

// New returns an Inspector. No store is opened until queried.
func New(config Config) *Inspector {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stores := make(map[string]string, len(config.Stores))
	for node, path := range config.Stores {
		stores[node] = path
	}
	return &Inspector{
		stores: stores,
		logger: logger,
		pools:  make(map[string]*sqlitepool.Pool),
	}
}

// Nodes returns the inspectable node keys, sorted.
func (i *Inspector) Nodes() []string {
	nodes := make([]string, 0, len(i.stores))
	for node := range i.stores {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	return nodes
}

// Close closes every opened pool.
func (i *Inspector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	var err error
	for node, pool := range i.pools {
		err = multierr.Append(err, pool.Close())
		delete(i.pools, node)
	}
	return err
}

func (i *Inspector) pool(node string) (*sqlitepool.Pool, error) {
	path, ok := i.stores[node]
	if !ok {
		return nil, fmt.Errorf("inspect: unknown node %q", node)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if pool, ok := i.pools[node]; ok {
		return pool, nil
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Mode:   sqlitepool.ModeReadOnly,
		Logger: i.logger.With("node", node),
	})
	if err != nil {
		return nil, classify(node, err)
	}
	i.pools[node] = pool
	return pool, nil
}

// query runs fn with a read-only connection to node's store.
func (i *Inspector) query(ctx context.Context, node string, fn func(conn *sqlite.Conn) error) error {
	pool, err := i.pool(node)
	if err != nil {
		return err
	}
	conn, err := pool.Take(ctx)
	if err != nil {
		return classify(node, err)
	}
	defer pool.Put(conn)
	if err := fn(conn); err != nil {
		return classify(node, err)
	}
	return nil
}

// classify marks store conditions that clear up on their own as
// poll.NotReady. A missing table means migrations have not run yet; a
// missing column on an existing table is a schema mismatch and fails.
func classify(node string, err error) error {
	if errors.Is(err, sqlitepool.ErrNotExist) {
		return poll.NotReady(fmt.Errorf("inspect: %s: %w", node, err))
	}
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked, sqlite.ResultCantOpen:
		return poll.NotReady(fmt.Errorf("inspect: %s: %w", node, err))
	}
	message := err.Error()
	if strings.Contains(message, "no such table") {
		return poll.NotReady(fmt.Errorf("inspect: %s: schema not ready: %w", node, err))
	}
	return fmt.Errorf("inspect: %s: %w", node, err)
}

// queryInt runs a single-row, single-column integer query.
func queryInt(conn *sqlite.Conn, query string, args ...any) (int64, error) {
	var value int64
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnInt64(0)
			return nil
		},
	})
	return value, err
}

// queryOptionalInt is queryInt for queries that may return no row.
func queryOptionalInt(conn *sqlite.Conn, query string, args ...any) (int64, bool, error) {
	var (
		value int64
		found bool
	)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if !found {
				value = stmt.ColumnInt64(0)
				found = true
			}
			return nil
		},
	})
	return value, found, err
}
