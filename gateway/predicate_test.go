// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"testing"
	"time"
)

type stringer string

func (s stringer) String() string { return string(s) }

func dispatchOf(t *testing.T, eventType, data string) Dispatch {
	t.Helper()
	return newDispatch(frame{Op: OpDispatch, Type: eventType, Data: json.RawMessage(data)}, time.Time{})
}

func TestPredicates(t *testing.T) {
	dispatch := dispatchOf(t, "MEMBER_ADD", `{"guild_id":"9","user":{"id":77,"bot":false},"roles":["1"],"channel_id":null}`)

	tests := []struct {
		name      string
		predicate Predicate
		want      bool
	}{
		{"string field", Where("guild_id", "9"), true},
		{"nested number", Where("user.id", "77"), true},
		{"stringer", Where("user.id", stringer("77")), true},
		{"bool", Where("user.bot", false), true},
		{"mismatch", Where("guild_id", "10"), false},
		{"missing", Where("user.name", "x"), false},
		{"path through scalar", Where("guild_id.x", "9"), false},
		{"non-scalar field", Where("roles", "1"), false},
		{"non-scalar want", Where("guild_id", []string{"9"}), false},
		{"has", Has("user.id"), true},
		{"has missing", Has("user.email"), false},
		{"all", All(Where("guild_id", "9"), Where("user.id", 77)), true},
		{"all one fails", All(Where("guild_id", "9"), Where("user.id", 78)), false},
		{"all empty", All(), true},
		{"any", Any(Where("guild_id", "10"), Where("user.id", 77)), true},
		{"any none", Any(Where("guild_id", "10")), false},
		{"any empty", Any(), false},
		{"null value", Null("channel_id"), true},
		{"null absent", Null("self_stream"), true},
		{"null present", Null("guild_id"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.predicate(dispatch); got != test.want {
				t.Errorf("predicate = %v, want %v", got, test.want)
			}
		})
	}
}

func TestBacklogTake(t *testing.T) {
	var queue backlog
	queue.push(dispatchOf(t, "A", `{"n":1}`))
	queue.push(dispatchOf(t, "B", `{"n":2}`))
	queue.push(dispatchOf(t, "A", `{"n":3}`))
	queue.push(dispatchOf(t, "A", `"scalar"`))

	if _, ok := queue.take("C", nil); ok {
		t.Fatal("took a dispatch of an absent type")
	}
	got, ok := queue.take("A", Where("n", 3))
	if !ok || got.String("n") != "3" {
		t.Fatalf("take(A, n=3) = %v, %v", got.String("n"), ok)
	}
	got, ok = queue.take("A", nil)
	if !ok || got.String("n") != "1" {
		t.Fatalf("take(A) = %v, %v", got.String("n"), ok)
	}
	// The scalar-payload A never matches.
	if _, ok := queue.take("A", nil); ok {
		t.Fatal("took a dispatch with a non-object payload")
	}
	if queue.len() != 2 {
		t.Errorf("len = %d, want 2", queue.len())
	}
}

func TestRecentTypes(t *testing.T) {
	var recent recentTypes
	for index := range recentLimit + 3 {
		recent.add(string(rune('a' + index)))
	}
	list := recent.list()
	if len(list) != recentLimit || list[0] != "d" {
		t.Errorf("list = %v", list)
	}
}

func TestParseKeepaliveMode(t *testing.T) {
	for text, want := range map[string]KeepaliveMode{
		"":           KeepalivePiggyback,
		"piggyback":  KeepalivePiggyback,
		"background": KeepaliveBackground,
	} {
		got, err := ParseKeepaliveMode(text)
		if err != nil || got != want {
			t.Errorf("ParseKeepaliveMode(%q) = %v, %v", text, got, err)
		}
	}
	if _, err := ParseKeepaliveMode("timer"); err == nil {
		t.Error("ParseKeepaliveMode(timer) succeeded")
	}
}
