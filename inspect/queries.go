// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"context"
	"strconv"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// RemoteUserID returns the federated identity of a user, as stored in
// federation_remote_users on peers: "@username:server".
func RemoteUserID(username, server string) string {
	return "@" + username + ":" + server
}

// MappedMessageContent returns the content of the local copy of a
// message that originated on origin with remoteID.
func (i *Inspector) MappedMessageContent(ctx context.Context, node, origin string, remoteID int64) (content string, found bool, err error) {
	err = i.query(ctx, node, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT m.content
			FROM federation_message_map fm
			JOIN messages m ON m.id = fm.local_message_id
			WHERE fm.origin_server = ? AND fm.remote_message_id = ?
			LIMIT 1`,
			&sqlitex.ExecOptions{
				Args: []any{origin, strconv.FormatInt(remoteID, 10)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					content = stmt.ColumnText(0)
					found = true
					return nil
				},
			})
	})
	return content, found, err
}

// MappedMessageAbsent reports whether a remote message has no live
// local copy: either it was never mapped or the mapped row is gone.
func (i *Inspector) MappedMessageAbsent(ctx context.Context, node, origin string, remoteID int64) (bool, error) {
	var absent bool
	err := i.query(ctx, node, func(conn *sqlite.Conn) error {
		localID, mapped, err := queryOptionalInt(conn,
			`SELECT local_message_id FROM federation_message_map WHERE origin_server = ? AND remote_message_id = ?`,
			origin, strconv.FormatInt(remoteID, 10))
		if err != nil {
			return err
		}
		if !mapped {
			absent = true
			return nil
		}
		count, err := queryInt(conn, `SELECT COUNT(*) FROM messages WHERE id = ?`, localID)
		absent = count == 0
		return err
	})
	return absent, err
}

// MessagePresent reports whether a message with content exists in a
// channel.
func (i *Inspector) MessagePresent(ctx context.Context, node string, channelID int64, content string) (bool, error) {
	var count int64
	err := i.query(ctx, node, func(conn *sqlite.Conn) error {
		var err error
		count, err = queryInt(conn, `SELECT COUNT(*) FROM messages WHERE channel_id = ? AND content = ?`, channelID, content)
		return err
	})
	return count > 0, err
}

// ReactionCount counts reactions with emoji on the local copy of a
// remote message.
func (i *Inspector) ReactionCount(ctx context.Context, node, origin string, remoteID int64, emoji string) (int, error) {
	var count int64
	err := i.query(ctx, node, func(conn *sqlite.Conn) error {
		var err error
		count, err = queryInt(conn, `
			SELECT COUNT(*)
			FROM reactions r
			JOIN federation_message_map fm ON fm.local_message_id = r.message_id
			WHERE fm.origin_server = ? AND fm.remote_message_id = ? AND r.emoji_name = ?`,
			origin, strconv.FormatInt(remoteID, 10), emoji)
		return err
	})
	return int(count), err
}

// RemoteUserLocalID returns the local account a remote user resolved to.
func (i *Inspector) RemoteUserLocalID(ctx context.Context, node, remoteUserID string) (localID int64, found bool, err error) {
	err = i.query(ctx, node, func(conn *sqlite.Conn) error {
		var err error
		localID, found, err = queryOptionalInt(conn,
			`SELECT local_user_id FROM federation_remote_users WHERE remote_user_id = ?`, remoteUserID)
		return err
	})
	return localID, found, err
}

// RemoteMemberPresent reports whether a remote user is a member of a
// guild. mapped is false when the remote user has no local account yet,
// in which case present is false too.
func (i *Inspector) RemoteMemberPresent(ctx context.Context, node, remoteUserID string, guildID int64) (present, mapped bool, err error) {
	err = i.query(ctx, node, func(conn *sqlite.Conn) error {
		localID, found, err := queryOptionalInt(conn,
			`SELECT local_user_id FROM federation_remote_users WHERE remote_user_id = ?`, remoteUserID)
		if err != nil || !found {
			return err
		}
		mapped = true
		count, err := queryInt(conn, `SELECT COUNT(*) FROM members WHERE user_id = ? AND guild_id = ?`, localID, guildID)
		present = count > 0
		return err
	})
	return present, mapped, err
}

// RemoteMemberAbsent reports whether a remote user that has been mapped
// is no longer a member of a guild. An unmapped user is not absent: the
// join was never observed, so the leave cannot have been either.
func (i *Inspector) RemoteMemberAbsent(ctx context.Context, node, remoteUserID string, guildID int64) (bool, error) {
	present, mapped, err := i.RemoteMemberPresent(ctx, node, remoteUserID, guildID)
	return mapped && !present, err
}

// DeliveryAttempts counts node's attempts to deliver eventID to
// destination.
func (i *Inspector) DeliveryAttempts(ctx context.Context, node, eventID, destination string) (int, error) {
	var count int64
	err := i.query(ctx, node, func(conn *sqlite.Conn) error {
		var err error
		count, err = queryInt(conn,
			`SELECT COUNT(*) FROM federation_delivery_attempts WHERE event_id = ? AND destination_server = ?`,
			eventID, destination)
		return err
	})
	return int(count), err
}

// IngestedEvents counts node's ingestion records for eventID.
func (i *Inspector) IngestedEvents(ctx context.Context, node, eventID string) (int, error) {
	var count int64
	err := i.query(ctx, node, func(conn *sqlite.Conn) error {
		var err error
		count, err = queryInt(conn, `SELECT COUNT(*) FROM federation_events WHERE event_id = ?`, eventID)
		return err
	})
	return int(count), err
}

// TrustedPeers returns the server names node trusts, sorted.
func (i *Inspector) TrustedPeers(ctx context.Context, node string) ([]string, error) {
	peers := []string{}
	err := i.query(ctx, node, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT server_name FROM federated_servers WHERE trusted = TRUE ORDER BY server_name`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					peers = append(peers, stmt.ColumnText(0))
					return nil
				},
			})
	})
	return peers, err
}

// LatestPollID returns the most recently created poll in a channel.
func (i *Inspector) LatestPollID(ctx context.Context, node string, channelID int64) (pollID int64, found bool, err error) {
	err = i.query(ctx, node, func(conn *sqlite.Conn) error {
		var err error
		pollID, found, err = queryOptionalInt(conn,
			`SELECT id FROM polls WHERE channel_id = ? ORDER BY created_at DESC LIMIT 1`, channelID)
		return err
	})
	return pollID, found, err
}
