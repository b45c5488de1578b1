// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Mode selects how a pool opens and prepares its connections. The zero
// value is ModeReadOnly.
type Mode int

const (
	ModeReadOnly Mode = iota
	ModeShared
	ModeOwned
)

func (m Mode) String() string {
	switch m {
	case ModeOwned:
		return "owned"
	case ModeShared:
		return "shared"
	case ModeReadOnly:
		return "read-only"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ErrNotExist is returned by Open in ModeShared and ModeReadOnly when
// the database file has not been created yet.
var ErrNotExist = errors.New("sqlitepool: database does not exist")

// Config holds the parameters for opening a pool. Path is required.
type Config struct {
	Path string
	Mode Mode

	// PoolSize defaults to 2. Inspection queries are issued one at a
	// time per node, so a large pool only holds file descriptors.
	PoolSize int

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// OnConnect runs once per connection after the mode's pragmas.
	// Fixtures use it to create schema.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool is a fixed-size pool of prepared SQLite connections. It is safe
// for concurrent use.
type Pool struct {
	inner  *sqlitex.Pool
	logger *slog.Logger
	path   string
	mode   Mode
}

// Open validates cfg and opens the pool. Connections are created
// lazily on first Take.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlitepool: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}

	var flags sqlite.OpenFlags
	switch cfg.Mode {
	case ModeOwned:
		flags = sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenWAL | sqlite.OpenURI
	case ModeShared:
		flags = sqlite.OpenReadWrite | sqlite.OpenURI
	case ModeReadOnly:
		flags = sqlite.OpenReadOnly | sqlite.OpenURI
	default:
		return nil, fmt.Errorf("sqlitepool: unknown mode %v", cfg.Mode)
	}

	if cfg.Mode != ModeOwned {
		if _, err := os.Stat(cfg.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotExist, cfg.Path)
			}
			return nil, fmt.Errorf("sqlitepool: %w", err)
		}
	}

	mode := cfg.Mode
	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		Flags:    flags,
		PoolSize: poolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, mode, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Debug("sqlite pool opened",
		"path", cfg.Path,
		"mode", cfg.Mode.String(),
		"pool_size", poolSize,
	)

	return &Pool{
		inner:  inner,
		logger: logger,
		path:   cfg.Path,
		mode:   cfg.Mode,
	}, nil
}

// Path returns the database path the pool was opened with.
func (p *Pool) Path() string { return p.path }

// Mode returns the pool's open mode.
func (p *Pool) Mode() Mode { return p.mode }

// Take borrows a connection, blocking until one is free or ctx is
// done. The caller must Put it back:
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: take: %w", err)
	}
	return conn, nil
}

// Put returns a connection to the pool. Put(nil) is a no-op.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close closes every connection, blocking until borrowed connections
// are returned.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("sqlite pool close error",
			"path", p.path,
			"error", err,
		)
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Debug("sqlite pool closed", "path", p.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn, mode Mode, onConnect func(*sqlite.Conn) error) error {
	var pragmas []string
	switch mode {
	case ModeOwned:
		pragmas = []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=OFF",
			"PRAGMA temp_store=MEMORY",
		}
	case ModeShared:
		pragmas = []string{"PRAGMA busy_timeout=5000"}
	case ModeReadOnly:
		pragmas = []string{
			"PRAGMA busy_timeout=2000",
			"PRAGMA query_only=ON",
		}
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitepool: %s: %w", pragma, err)
		}
	}

	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitepool: OnConnect: %w", err)
		}
	}
	return nil
}
