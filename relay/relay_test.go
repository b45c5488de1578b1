// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paracord-chat/fedcheck/lib/poll"
)

var chain = Route{
	EventID:     EventID(9001, "node-a.test"),
	Origin:      Hop{Node: "a", Server: "node-a.test"},
	Relay:       Hop{Node: "b", Server: "node-b.test"},
	Destination: Hop{Node: "c", Server: "node-c.test"},
}

// fakeLedger answers from in-memory counts. Each query increments
// reads; grow, if set, runs before every read so tests can make
// evidence appear over time.
type fakeLedger struct {
	mu        sync.Mutex
	attempts  map[string]int // "node→server"
	ingested  map[string]int
	failNode  string
	notReady  bool
	reads     int
	growAfter int
	grow      func(*fakeLedger)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{attempts: map[string]int{}, ingested: map[string]int{}}
}

func (l *fakeLedger) tick() {
	l.reads++
	if l.grow != nil && l.reads > l.growAfter {
		l.grow(l)
		l.grow = nil
	}
}

func (l *fakeLedger) DeliveryAttempts(_ context.Context, node, eventID, destination string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tick()
	if node == l.failNode {
		err := fmt.Errorf("store for %s unavailable", node)
		if l.notReady {
			return 0, poll.NotReady(err)
		}
		return 0, err
	}
	return l.attempts[node+"→"+destination], nil
}

func (l *fakeLedger) IngestedEvents(_ context.Context, node, eventID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tick()
	return l.ingested[node], nil
}

func TestEventID(t *testing.T) {
	if got := EventID(9001, "node-a.test"); got != "$9001:node-a.test" {
		t.Errorf("EventID = %q", got)
	}
}

func TestVerifyStrict(t *testing.T) {
	tests := []struct {
		name     string
		evidence Evidence
		wantOK   bool
		want     []string
	}{
		{"proven", Evidence{RelayAttempts: 1, Ingested: 1}, true, nil},
		{"direct delivery", Evidence{DirectAttempts: 1, RelayAttempts: 1, Ingested: 1}, false, []string{"direct delivery"}},
		{"ingestion alone", Evidence{Ingested: 3}, false, []string{"no delivery attempt"}},
		{"relay attempt alone", Evidence{RelayAttempts: 2}, false, []string{"not ingested"}},
		{"nothing", Evidence{}, false, []string{"no delivery attempt", "not ingested"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.evidence.Route = chain
			err := test.evidence.Verify(PolicyStrict)
			if test.wantOK {
				if err != nil {
					t.Fatalf("Verify: %v", err)
				}
				return
			}
			var proofErr *ProofError
			if !errors.As(err, &proofErr) {
				t.Fatalf("Verify error = %v, want *ProofError", err)
			}
			if len(proofErr.Violations) != len(test.want) {
				t.Fatalf("Violations = %v, want %d", proofErr.Violations, len(test.want))
			}
			for index, fragment := range test.want {
				if !strings.Contains(proofErr.Violations[index], fragment) {
					t.Errorf("violation %d = %q, want containing %q", index, proofErr.Violations[index], fragment)
				}
			}
		})
	}
}

func TestVerifyReachability(t *testing.T) {
	direct := Evidence{Route: chain, DirectAttempts: 1, Ingested: 1}
	if err := direct.Verify(PolicyReachability); err != nil {
		t.Errorf("reachability rejected direct delivery: %v", err)
	}
	if err := direct.Verify(PolicyStrict); err == nil {
		t.Error("strict accepted direct delivery")
	}
	ingestedOnly := Evidence{Route: chain, Ingested: 1}
	if err := ingestedOnly.Verify(PolicyReachability); !IsProofError(err) {
		t.Errorf("reachability accepted ingestion alone: %v", err)
	}
}

func TestCollect(t *testing.T) {
	ledger := newFakeLedger()
	ledger.attempts["a→node-b.test"] = 4 // not part of the a→c evidence
	ledger.attempts["b→node-c.test"] = 2
	ledger.ingested["c"] = 1

	evidence, err := Collect(t.Context(), ledger, chain)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if evidence.DirectAttempts != 0 || evidence.RelayAttempts != 2 || evidence.Ingested != 1 {
		t.Errorf("evidence = %+v", evidence)
	}

	ledger.failNode = "b"
	if _, err := Collect(t.Context(), ledger, chain); err == nil || !strings.Contains(err.Error(), "b delivery ledger") {
		t.Errorf("Collect error = %v", err)
	}
}

var fastPoll = poll.Options{Timeout: 2 * time.Second, Interval: time.Millisecond}

func TestProveWaitsForEvidence(t *testing.T) {
	ledger := newFakeLedger()
	ledger.growAfter = 9
	ledger.grow = func(l *fakeLedger) {
		l.attempts["b→node-c.test"] = 1
		l.ingested["c"] = 1
	}

	evidence, err := Prove(t.Context(), ledger, chain, PolicyStrict, fastPoll)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if evidence.RelayAttempts != 1 || evidence.Ingested != 1 {
		t.Errorf("evidence = %+v", evidence)
	}
}

func TestProveFailsFastOnDirectDelivery(t *testing.T) {
	ledger := newFakeLedger()
	ledger.attempts["a→node-c.test"] = 1

	_, err := Prove(t.Context(), ledger, chain, PolicyStrict, poll.Options{Timeout: time.Hour, Interval: time.Millisecond})
	var proofErr *ProofError
	if !errors.As(err, &proofErr) || !proofErr.Direct() {
		t.Fatalf("Prove error = %v, want direct-delivery proof error", err)
	}
	if poll.IsTimeout(err) {
		t.Error("direct delivery waited for the deadline")
	}
}

func TestProveTimesOutWithProofError(t *testing.T) {
	ledger := newFakeLedger()
	ledger.ingested["c"] = 1

	_, err := Prove(t.Context(), ledger, chain, PolicyStrict, poll.Options{Timeout: 50 * time.Millisecond, Interval: time.Millisecond})
	if !poll.IsTimeout(err) {
		t.Fatalf("Prove error = %v, want timeout", err)
	}
	if !IsProofError(err) {
		t.Errorf("timeout does not carry the last proof error: %v", err)
	}
}

func TestProveRetriesNotReadyStores(t *testing.T) {
	ledger := newFakeLedger()
	ledger.failNode = "b"
	ledger.notReady = true
	ledger.growAfter = 5
	ledger.grow = func(l *fakeLedger) {
		l.failNode = ""
		l.attempts["b→node-c.test"] = 1
		l.ingested["c"] = 1
	}
	if _, err := Prove(t.Context(), ledger, chain, PolicyStrict, fastPoll); err != nil {
		t.Fatalf("Prove: %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for text, want := range map[string]Policy{"": PolicyStrict, "strict": PolicyStrict, "reachability": PolicyReachability} {
		got, err := ParsePolicy(text)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", text, got, err)
		}
	}
	if _, err := ParsePolicy("loose"); err == nil {
		t.Error("ParsePolicy(loose) succeeded")
	}
}
