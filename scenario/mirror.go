// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/lib/sqlitepool"
)

// Mirror copies a guild's fixture rows (the guild, the given channels,
// its roles, and the owner's membership) from source's store into each
// target's store, re-owned by the target's admin. Federation replicates
// events into guilds a node already knows; the fixture gives peers that
// knowledge without a join flow.
func (e *Env) Mirror(ctx context.Context, source string, guildID controlplane.ID, channelIDs []controlplane.ID, targets ...string) error {
	guild, err := localID(guildID)
	if err != nil {
		return err
	}
	channels := make([]int64, 0, len(channelIDs))
	for _, id := range channelIDs {
		channel, err := localID(id)
		if err != nil {
			return err
		}
		channels = append(channels, channel)
	}
	sourceOwner, err := localID(e.Admin(source).UserID())
	if err != nil {
		return err
	}
	sourceNode, _ := e.Topology.Node(source)

	for _, target := range targets {
		targetNode, ok := e.Topology.Node(target)
		if !ok {
			return fmt.Errorf("scenario: unknown node %q", target)
		}
		targetOwner, err := localID(e.Admin(target).UserID())
		if err != nil {
			return err
		}
		request := mirrorRequest{
			SourcePath:  sourceNode.StorePath,
			TargetPath:  targetNode.StorePath,
			GuildID:     guild,
			ChannelIDs:  channels,
			SourceOwner: sourceOwner,
			TargetOwner: targetOwner,
		}
		var copied int
		err = e.Converge(ctx, fmt.Sprintf("guild %s fixture mirrored %s → %s", guildID, source, target),
			func(ctx context.Context) (bool, error) {
				count, mirrorErr := mirrorFixtures(ctx, request)
				if mirrorErr != nil {
					return false, mirrorErr
				}
				copied = count
				return true, nil
			})
		if err != nil {
			return err
		}
		e.Note("mirrored %d fixture rows for guild %s into %s", copied, guildID, target)
	}
	return nil
}

type mirrorRequest struct {
	SourcePath  string
	TargetPath  string
	GuildID     int64
	ChannelIDs  []int64
	SourceOwner int64
	TargetOwner int64
}

// errFixtureMissing means the source store does not hold the guild yet.
var errFixtureMissing = errors.New("guild fixture not in source store")

// row is one result row with its column names.
type row struct {
	columns []string
	values  []any
}

func (r row) set(column string, value any) error {
	for index, name := range r.columns {
		if name == column {
			r.values[index] = value
			return nil
		}
	}
	return fmt.Errorf("column %s missing", column)
}

type tableRows struct {
	table string
	rows  []row
}

// mirrorFixtures reads every fixture row from the source store, then
// writes them to the target in one transaction with INSERT OR IGNORE,
// so a repeated mirror is harmless. It returns the number of rows
// offered to the target. Missing stores and a missing guild are
// NotReady.
func mirrorFixtures(ctx context.Context, request mirrorRequest) (int, error) {
	tables, err := readFixtures(ctx, request)
	if err != nil {
		return 0, err
	}
	if err := writeFixtures(ctx, request.TargetPath, tables); err != nil {
		return 0, err
	}
	count := 0
	for _, table := range tables {
		count += len(table.rows)
	}
	return count, nil
}

func readFixtures(ctx context.Context, request mirrorRequest) ([]tableRows, error) {
	pool, err := openStore(request.SourcePath, sqlitepool.ModeReadOnly)
	if err != nil {
		return nil, err
	}
	defer pool.Close()
	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	spaces, err := readRows(conn, "SELECT * FROM spaces WHERE id = ?", request.GuildID)
	if err != nil {
		return nil, storeError(err)
	}
	if len(spaces) == 0 {
		return nil, poll.NotReady(fmt.Errorf("%w: guild %d", errFixtureMissing, request.GuildID))
	}
	for _, space := range spaces {
		if err := space.set("owner_id", request.TargetOwner); err != nil {
			return nil, fmt.Errorf("scenario: spaces: %w", err)
		}
	}

	var channels []row
	if len(request.ChannelIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(request.ChannelIDs)), ",")
		args := make([]any, 0, len(request.ChannelIDs))
		for _, id := range request.ChannelIDs {
			args = append(args, id)
		}
		channels, err = readRows(conn, "SELECT * FROM channels WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, storeError(err)
		}
	}

	roles, err := readRows(conn, "SELECT * FROM roles WHERE space_id = ?", request.GuildID)
	if err != nil {
		return nil, storeError(err)
	}

	members, err := readRows(conn, "SELECT * FROM members WHERE guild_id = ? AND user_id = ?",
		request.GuildID, request.SourceOwner)
	if err != nil {
		return nil, storeError(err)
	}
	memberRoles, err := readRows(conn,
		`SELECT mr.user_id, mr.role_id FROM member_roles mr
		 JOIN roles r ON r.id = mr.role_id
		 WHERE mr.user_id = ? AND r.space_id = ?`,
		request.SourceOwner, request.GuildID)
	if err != nil {
		return nil, storeError(err)
	}
	for _, owned := range [][]row{members, memberRoles} {
		for _, membership := range owned {
			if err := membership.set("user_id", request.TargetOwner); err != nil {
				return nil, fmt.Errorf("scenario: memberships: %w", err)
			}
		}
	}

	return []tableRows{
		{table: "spaces", rows: spaces},
		{table: "channels", rows: channels},
		{table: "roles", rows: roles},
		{table: "members", rows: members},
		{table: "member_roles", rows: memberRoles},
	}, nil
}

func writeFixtures(ctx context.Context, path string, tables []tableRows) (err error) {
	pool, err := openStore(path, sqlitepool.ModeShared)
	if err != nil {
		return err
	}
	defer pool.Close()
	conn, err := pool.Take(ctx)
	if err != nil {
		return err
	}
	defer pool.Put(conn)

	defer sqlitex.Save(conn)(&err)
	for _, table := range tables {
		for _, fixture := range table.rows {
			quoted := make([]string, len(fixture.columns))
			for index, column := range fixture.columns {
				quoted[index] = quoteIdentifier(column)
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fixture.columns)), ",")
			query := "INSERT OR IGNORE INTO " + quoteIdentifier(table.table) +
				" (" + strings.Join(quoted, ", ") + ") VALUES (" + placeholders + ")"
			if err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: fixture.values}); err != nil {
				return storeError(fmt.Errorf("inserting into %s: %w", table.table, err))
			}
		}
	}
	return nil
}

// readRows returns every row of query with values typed by SQLite's
// storage class.
func readRows(conn *sqlite.Conn, query string, args ...any) ([]row, error) {
	var rows []row
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count := stmt.ColumnCount()
			result := row{columns: make([]string, count), values: make([]any, count)}
			for index := range count {
				result.columns[index] = stmt.ColumnName(index)
				switch stmt.ColumnType(index) {
				case sqlite.TypeInteger:
					result.values[index] = stmt.ColumnInt64(index)
				case sqlite.TypeFloat:
					result.values[index] = stmt.ColumnFloat(index)
				case sqlite.TypeText:
					result.values[index] = stmt.ColumnText(index)
				case sqlite.TypeBlob:
					buffer := make([]byte, stmt.ColumnLen(index))
					stmt.ColumnBytes(index, buffer)
					result.values[index] = buffer
				default:
					result.values[index] = nil
				}
			}
			rows = append(rows, result)
			return nil
		},
	})
	return rows, err
}

func openStore(path string, mode sqlitepool.Mode) (*sqlitepool.Pool, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{Path: path, Mode: mode, PoolSize: 1})
	if err != nil {
		if errors.Is(err, sqlitepool.ErrNotExist) {
			return nil, poll.NotReady(err)
		}
		return nil, err
	}
	return pool, nil
}

// storeError marks lock contention and schema not yet migrated as
// NotReady.
func storeError(err error) error {
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked:
		return poll.NotReady(err)
	}
	message := err.Error()
	if strings.Contains(message, "no such table") || strings.Contains(message, "no such column") {
		return poll.NotReady(err)
	}
	return fmt.Errorf("scenario: mirror: %w", err)
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
