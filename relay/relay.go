// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paracord-chat/fedcheck/lib/poll"
)

// Policy selects what counts as proof.
type Policy int

const (
	// PolicyStrict requires no direct attempt, a relay attempt, and
	// ingestion at the destination.
	PolicyStrict Policy = iota

	// PolicyReachability requires ingestion and an attempt from either
	// the origin or the relay. It does not prove routing.
	PolicyReachability
)

func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyReachability:
		return "reachability"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "strict" or "reachability".
func ParsePolicy(text string) (Policy, error) {
	switch text {
	case "", "strict":
		return PolicyStrict, nil
	case "reachability":
		return PolicyReachability, nil
	default:
		return 0, fmt.Errorf("relay: unknown policy %q", text)
	}
}

// EventID returns the federation event ID of a message created on
// server: "$<message id>:<server>".
func EventID(messageID int64, server string) string {
	return "$" + strconv.FormatInt(messageID, 10) + ":" + server
}

// Hop names a node by its key (for store lookups) and server name (as
// recorded in delivery ledgers).
type Hop struct {
	Node   string
	Server string
}

func (h Hop) String() string { return h.Node + " (" + h.Server + ")" }

// Route is the path an event must take.
type Route struct {
	EventID     string
	Origin      Hop
	Relay       Hop
	Destination Hop
}

func (r Route) String() string {
	return fmt.Sprintf("%s: %s → %s → %s", r.EventID, r.Origin.Node, r.Relay.Node, r.Destination.Node)
}

// Ledger reads delivery and ingestion records from node stores.
// *inspect.Inspector implements it.
type Ledger interface {
	DeliveryAttempts(ctx context.Context, node, eventID, destination string) (int, error)
	IngestedEvents(ctx context.Context, node, eventID string) (int, error)
}

// Evidence is what the stores record about one route.
type Evidence struct {
	Route Route

	// DirectAttempts counts origin's attempts to deliver to destination.
	DirectAttempts int

	// RelayAttempts counts relay's attempts to deliver to destination.
	RelayAttempts int

	// Ingested counts destination's ingestion records.
	Ingested int
}

// Collect reads the evidence for route.
func Collect(ctx context.Context, ledger Ledger, route Route) (Evidence, error) {
	evidence := Evidence{Route: route}
	var err error
	evidence.DirectAttempts, err = ledger.DeliveryAttempts(ctx, route.Origin.Node, route.EventID, route.Destination.Server)
	if err != nil {
		return evidence, fmt.Errorf("relay: reading %s delivery ledger: %w", route.Origin.Node, err)
	}
	evidence.RelayAttempts, err = ledger.DeliveryAttempts(ctx, route.Relay.Node, route.EventID, route.Destination.Server)
	if err != nil {
		return evidence, fmt.Errorf("relay: reading %s delivery ledger: %w", route.Relay.Node, err)
	}
	evidence.Ingested, err = ledger.IngestedEvents(ctx, route.Destination.Node, route.EventID)
	if err != nil {
		return evidence, fmt.Errorf("relay: reading %s ingestion ledger: %w", route.Destination.Node, err)
	}
	return evidence, nil
}

// Verify checks the evidence against policy. The error is a
// *ProofError listing every unmet obligation.
func (e Evidence) Verify(policy Policy) error {
	var violations []string
	switch policy {
	case PolicyStrict:
		if e.DirectAttempts != 0 {
			violations = append(violations, fmt.Sprintf("%s attempted direct delivery to %s %d time(s)",
				e.Route.Origin.Node, e.Route.Destination.Node, e.DirectAttempts))
		}
		if e.RelayAttempts == 0 {
			violations = append(violations, fmt.Sprintf("%s recorded no delivery attempt to %s",
				e.Route.Relay.Node, e.Route.Destination.Node))
		}
	case PolicyReachability:
		if e.DirectAttempts == 0 && e.RelayAttempts == 0 {
			violations = append(violations, fmt.Sprintf("neither %s nor %s recorded a delivery attempt to %s",
				e.Route.Origin.Node, e.Route.Relay.Node, e.Route.Destination.Node))
		}
	default:
		return fmt.Errorf("relay: unknown policy %v", policy)
	}
	if e.Ingested == 0 {
		violations = append(violations, fmt.Sprintf("%s has not ingested the event", e.Route.Destination.Node))
	}
	if len(violations) == 0 {
		return nil
	}
	return &ProofError{Evidence: e, Policy: policy, Violations: violations}
}

// ProofError reports an unmet relay proof.
type ProofError struct {
	Evidence   Evidence
	Policy     Policy
	Violations []string
}

func (e *ProofError) Error() string {
	return fmt.Sprintf("relay: %s proof failed for %s: %s (direct=%d relay=%d ingested=%d)",
		e.Policy, e.Evidence.Route, strings.Join(e.Violations, "; "),
		e.Evidence.DirectAttempts, e.Evidence.RelayAttempts, e.Evidence.Ingested)
}

// Direct reports whether the proof failed because the origin delivered
// directly. More waiting cannot fix that.
func (e *ProofError) Direct() bool {
	return e.Policy == PolicyStrict && e.Evidence.DirectAttempts != 0
}

// IsProofError reports whether err is or wraps a *ProofError.
func IsProofError(err error) bool {
	var target *ProofError
	return errors.As(err, &target)
}

// Prove polls the ledgers until the proof holds. A direct delivery
// under PolicyStrict fails immediately; missing positive evidence is
// retried until options.Timeout.
func Prove(ctx context.Context, ledger Ledger, route Route, policy Policy, options poll.Options) (Evidence, error) {
	var evidence Evidence
	err := poll.Until(ctx, "relay proof for "+route.String(), func(ctx context.Context) (bool, error) {
		collected, err := Collect(ctx, ledger, route)
		if err != nil {
			return false, err
		}
		evidence = collected
		err = evidence.Verify(policy)
		var proofErr *ProofError
		switch {
		case err == nil:
			return true, nil
		case errors.As(err, &proofErr) && !proofErr.Direct():
			return false, poll.NotReady(err)
		default:
			return false, err
		}
	}, options)
	return evidence, err
}
