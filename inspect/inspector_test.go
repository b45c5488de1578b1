// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package inspect

import (
	"path/filepath"
	"slices"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/lib/testutil"
)

// ledgerSchema is the subset of a node's schema the queries touch.
const ledgerSchema = `
CREATE TABLE messages (id INTEGER PRIMARY KEY, channel_id INTEGER NOT NULL, content TEXT NOT NULL);
CREATE TABLE reactions (message_id INTEGER NOT NULL, user_id INTEGER NOT NULL, emoji_name TEXT NOT NULL);
CREATE TABLE members (user_id INTEGER NOT NULL, guild_id INTEGER NOT NULL);
CREATE TABLE polls (id INTEGER PRIMARY KEY, channel_id INTEGER NOT NULL, created_at TEXT NOT NULL);
CREATE TABLE federation_message_map (origin_server TEXT NOT NULL, remote_message_id TEXT NOT NULL, local_message_id INTEGER NOT NULL);
CREATE TABLE federation_remote_users (remote_user_id TEXT PRIMARY KEY, local_user_id INTEGER NOT NULL);
CREATE TABLE federation_delivery_attempts (event_id TEXT NOT NULL, destination_server TEXT NOT NULL);
CREATE TABLE federation_events (event_id TEXT NOT NULL);
CREATE TABLE federated_servers (server_name TEXT PRIMARY KEY, trusted BOOLEAN NOT NULL);
`

// seed creates a WAL store at dir/name.db from script, held open by its
// owning pool until the test ends.
func seed(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name+".db")
	testutil.Store(t, path, script)
	return path
}

func newInspector(t *testing.T, stores map[string]string) *Inspector {
	t.Helper()
	inspector := New(Config{Stores: stores})
	t.Cleanup(func() {
		if err := inspector.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return inspector
}

func TestMessageQueries(t *testing.T) {
	path := seed(t, t.TempDir(), "b", ledgerSchema+`
INSERT INTO messages VALUES (501, 77, 'hello-edited');
INSERT INTO federation_message_map VALUES ('node-a.test', '9001', 501);
INSERT INTO federation_message_map VALUES ('node-a.test', '9002', 502);
INSERT INTO reactions VALUES (501, 1, '👍');
INSERT INTO reactions VALUES (501, 2, '👍');
INSERT INTO reactions VALUES (501, 2, '🎉');
`)
	inspector := newInspector(t, map[string]string{"b": path})
	ctx := t.Context()

	content, found, err := inspector.MappedMessageContent(ctx, "b", "node-a.test", 9001)
	if err != nil || !found || content != "hello-edited" {
		t.Errorf("MappedMessageContent = %q, %v, %v", content, found, err)
	}
	if _, found, err := inspector.MappedMessageContent(ctx, "b", "node-c.test", 9001); err != nil || found {
		t.Errorf("MappedMessageContent for another origin = found %v, %v", found, err)
	}

	absentTests := []struct {
		remoteID int64
		want     bool
	}{
		{9001, false}, // mapped and present
		{9002, true},  // mapped, local row deleted
		{9003, true},  // never mapped
	}
	for _, test := range absentTests {
		absent, err := inspector.MappedMessageAbsent(ctx, "b", "node-a.test", test.remoteID)
		if err != nil || absent != test.want {
			t.Errorf("MappedMessageAbsent(%d) = %v, %v; want %v", test.remoteID, absent, err, test.want)
		}
	}

	present, err := inspector.MessagePresent(ctx, "b", 77, "hello-edited")
	if err != nil || !present {
		t.Errorf("MessagePresent = %v, %v", present, err)
	}
	present, err = inspector.MessagePresent(ctx, "b", 78, "hello-edited")
	if err != nil || present {
		t.Errorf("MessagePresent in another channel = %v, %v", present, err)
	}

	count, err := inspector.ReactionCount(ctx, "b", "node-a.test", 9001, "👍")
	if err != nil || count != 2 {
		t.Errorf("ReactionCount = %d, %v; want 2", count, err)
	}
}

func TestMemberQueries(t *testing.T) {
	path := seed(t, t.TempDir(), "c", ledgerSchema+`
INSERT INTO federation_remote_users VALUES ('@guest_one:node-a.test', 301);
INSERT INTO federation_remote_users VALUES ('@guest_two:node-a.test', 302);
INSERT INTO members VALUES (301, 40);
`)
	inspector := newInspector(t, map[string]string{"c": path})
	ctx := t.Context()

	localID, found, err := inspector.RemoteUserLocalID(ctx, "c", RemoteUserID("guest_one", "node-a.test"))
	if err != nil || !found || localID != 301 {
		t.Errorf("RemoteUserLocalID = %d, %v, %v", localID, found, err)
	}

	tests := []struct {
		remote        string
		present, want bool
		mapped        bool
	}{
		{remote: "@guest_one:node-a.test", present: true, mapped: true, want: false},
		{remote: "@guest_two:node-a.test", present: false, mapped: true, want: true},
		{remote: "@nobody:node-a.test", present: false, mapped: false, want: false},
	}
	for _, test := range tests {
		present, mapped, err := inspector.RemoteMemberPresent(ctx, "c", test.remote, 40)
		if err != nil || present != test.present || mapped != test.mapped {
			t.Errorf("RemoteMemberPresent(%s) = %v, %v, %v", test.remote, present, mapped, err)
		}
		absent, err := inspector.RemoteMemberAbsent(ctx, "c", test.remote, 40)
		if err != nil || absent != test.want {
			t.Errorf("RemoteMemberAbsent(%s) = %v, %v; want %v", test.remote, absent, err, test.want)
		}
	}
}

func TestLedgerQueries(t *testing.T) {
	dir := t.TempDir()
	eventID := "$9001:node-a.test"
	stores := map[string]string{
		"a": seed(t, dir, "a", ledgerSchema+`
INSERT INTO federated_servers VALUES ('node-b.test', TRUE);
INSERT INTO federated_servers VALUES ('node-z.test', FALSE);
INSERT INTO federation_delivery_attempts VALUES ('$9001:node-a.test', 'node-b.test');
INSERT INTO polls VALUES (10, 77, '2026-01-01T00:00:00Z');
INSERT INTO polls VALUES (11, 77, '2026-01-01T00:00:05Z');
INSERT INTO polls VALUES (12, 78, '2026-01-01T00:00:09Z');
`),
		"b": seed(t, dir, "b", ledgerSchema+`
INSERT INTO federation_delivery_attempts VALUES ('$9001:node-a.test', 'node-c.test');
INSERT INTO federation_delivery_attempts VALUES ('$9001:node-a.test', 'node-c.test');
`),
		"c": seed(t, dir, "c", ledgerSchema+`
INSERT INTO federation_events VALUES ('$9001:node-a.test');
`),
	}
	inspector := newInspector(t, stores)
	ctx := t.Context()

	if nodes := inspector.Nodes(); !slices.Equal(nodes, []string{"a", "b", "c"}) {
		t.Errorf("Nodes = %v", nodes)
	}

	for _, test := range []struct {
		node, destination string
		want              int
	}{
		{"a", "node-c.test", 0},
		{"a", "node-b.test", 1},
		{"b", "node-c.test", 2},
	} {
		got, err := inspector.DeliveryAttempts(ctx, test.node, eventID, test.destination)
		if err != nil || got != test.want {
			t.Errorf("DeliveryAttempts(%s→%s) = %d, %v; want %d", test.node, test.destination, got, err, test.want)
		}
	}

	ingested, err := inspector.IngestedEvents(ctx, "c", eventID)
	if err != nil || ingested != 1 {
		t.Errorf("IngestedEvents = %d, %v", ingested, err)
	}

	peers, err := inspector.TrustedPeers(ctx, "a")
	if err != nil || !slices.Equal(peers, []string{"node-b.test"}) {
		t.Errorf("TrustedPeers = %v, %v", peers, err)
	}
	peers, err = inspector.TrustedPeers(ctx, "c")
	if err != nil || peers == nil || len(peers) != 0 {
		t.Errorf("TrustedPeers on a node with none = %#v, %v; want empty non-nil", peers, err)
	}

	pollID, found, err := inspector.LatestPollID(ctx, "a", 77)
	if err != nil || !found || pollID != 11 {
		t.Errorf("LatestPollID = %d, %v, %v; want 11", pollID, found, err)
	}
	if _, found, err := inspector.LatestPollID(ctx, "a", 79); err != nil || found {
		t.Errorf("LatestPollID for an empty channel = found %v, %v", found, err)
	}
}

func TestNotReadyConditions(t *testing.T) {
	dir := t.TempDir()
	stores := map[string]string{
		"missing": filepath.Join(dir, "missing.db"),
		"empty":   seed(t, dir, "empty", `CREATE TABLE unrelated (x INTEGER);`),
	}
	inspector := newInspector(t, stores)
	ctx := t.Context()

	_, err := inspector.IngestedEvents(ctx, "missing", "$1:node-a.test")
	if !poll.IsNotReady(err) {
		t.Errorf("missing store error = %v, want not ready", err)
	}
	_, err = inspector.IngestedEvents(ctx, "empty", "$1:node-a.test")
	if !poll.IsNotReady(err) {
		t.Errorf("missing table error = %v, want not ready", err)
	}

	// The store appears later; the next query sees it.
	seed(t, dir, "missing", ledgerSchema+`INSERT INTO federation_events VALUES ('$1:node-a.test');`)
	count, err := inspector.IngestedEvents(ctx, "missing", "$1:node-a.test")
	if err != nil || count != 1 {
		t.Errorf("IngestedEvents after creation = %d, %v", count, err)
	}

	_, err = inspector.IngestedEvents(ctx, "unknown", "$1:node-a.test")
	if err == nil || poll.IsNotReady(err) {
		t.Errorf("unknown node error = %v, want a hard failure", err)
	}
}

func TestQueryErrorsAreNotSwallowed(t *testing.T) {
	path := seed(t, t.TempDir(), "a", ledgerSchema)
	inspector := newInspector(t, map[string]string{"a": path})
	for _, test := range []struct {
		name  string
		query string
	}{
		{"syntax error", `SELEC 1`},
		{"unknown column", `SELECT edited_at FROM messages`},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := inspector.query(t.Context(), "a", func(conn *sqlite.Conn) error {
				return sqlitex.Execute(conn, test.query, nil)
			})
			if err == nil || poll.IsNotReady(err) {
				t.Errorf("%s = %v, want a hard failure", test.query, err)
			}
		})
	}
}

func TestMissingColumnIsSchemaMismatch(t *testing.T) {
	// messages exists but predates the content column.
	path := seed(t, t.TempDir(), "a", `CREATE TABLE messages (id INTEGER PRIMARY KEY, channel_id INTEGER NOT NULL);`)
	inspector := newInspector(t, map[string]string{"a": path})
	_, err := inspector.MessagePresent(t.Context(), "a", 77, "hello")
	if err == nil || poll.IsNotReady(err) {
		t.Errorf("MessagePresent on a table missing content = %v, want a hard failure", err)
	}
}
