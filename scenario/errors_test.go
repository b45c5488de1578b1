// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/gateway"
	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/relay"
)

func TestClassify(t *testing.T) {
	proof := &relay.ProofError{Policy: relay.PolicyStrict, Violations: []string{"no relay attempt"}}
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"handshake", &gateway.HandshakeError{URL: "ws://x", Stage: "hello", Reason: "no HELLO"}, KindHandshake},
		{"handshake wrapping ready timeout", &gateway.HandshakeError{Stage: "ready", Err: &gateway.TimeoutError{EventType: "READY"}}, KindHandshake},
		{"realtime timeout", fmt.Errorf("message create: %w", &gateway.TimeoutError{EventType: "MESSAGE_CREATE"}), KindRealtimeTimeout},
		{"convergence timeout", &poll.TimeoutError{Description: "mapped content on c"}, KindConvergenceTimeout},
		{"relay proof", fmt.Errorf("message create: %w", proof), KindRelayProof},
		{"relay proof timeout", &poll.TimeoutError{LastErr: poll.NotReady(proof)}, KindRelayProof},
		{"unexpected status", &controlplane.UnexpectedStatusError{StatusCode: 500}, KindUnexpectedStatus},
		{"assertion", fmt.Errorf("poll: members: %w", Failf("member list", "have 2, want 3")), KindAssertion},
		{"cancelled", fmt.Errorf("poll: x: %w", context.Canceled), KindCancelled},
		{"other", errors.New("boom"), KindOther},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.want {
				t.Errorf("Classify(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestAssertionErrorMessage(t *testing.T) {
	err := Failf("settings", "%s = %v, want %v", "theme", "dark", "light")
	if got, want := err.Error(), "assertion failed: settings: theme = dark, want light"; got != want {
		t.Errorf("Error = %q, want %q", got, want)
	}
}
