// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/gateway"
	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/relay"
)

// AssertionError is a check that read a definite, wrong answer: a
// member count off by one, a poll without options, a trust set with an
// unexpected peer.
type AssertionError struct {
	Check   string
	Message string
}

func (e *AssertionError) Error() string {
	return "assertion failed: " + e.Check + ": " + e.Message
}

// Failf returns an *AssertionError for check.
func Failf(check, format string, args ...any) error {
	return &AssertionError{Check: check, Message: fmt.Sprintf(format, args...)}
}

// IsAssertion reports whether err is an *AssertionError.
func IsAssertion(err error) bool {
	var target *AssertionError
	return errors.As(err, &target)
}

// Kind classifies why a run failed.
type Kind int

const (
	KindNone Kind = iota
	KindHandshake
	KindRealtimeTimeout
	KindConvergenceTimeout
	KindUnexpectedStatus
	KindRelayProof
	KindAssertion
	KindCancelled
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindHandshake:
		return "gateway-handshake"
	case KindRealtimeTimeout:
		return "realtime-timeout"
	case KindConvergenceTimeout:
		return "convergence-timeout"
	case KindUnexpectedStatus:
		return "unexpected-status"
	case KindRelayProof:
		return "relay-proof"
	case KindAssertion:
		return "assertion"
	case KindCancelled:
		return "cancelled"
	case KindOther:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Classify maps err to a Kind. More specific kinds win: a handshake
// that timed out waiting for READY is a handshake failure, and a relay
// proof that timed out is a relay proof failure.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case relay.IsProofError(err):
		return KindRelayProof
	case gateway.IsHandshake(err):
		return KindHandshake
	case gateway.IsTimeout(err):
		return KindRealtimeTimeout
	case poll.IsTimeout(err):
		return KindConvergenceTimeout
	case controlplane.IsUnexpectedStatus(err):
		return KindUnexpectedStatus
	case IsAssertion(err):
		return KindAssertion
	default:
		return KindOther
	}
}
