// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import "fmt"

// Stage is where a run is within the scenario lifecycle.
type Stage int

const (
	StageProvisioning Stage = iota
	StageTrustLinking
	StageActing
	StageAwaitingRealtime
	StageAwaitingConvergence
	StageVerifyingRelay
	StagePassed
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageProvisioning:
		return "provisioning"
	case StageTrustLinking:
		return "trust-linking"
	case StageActing:
		return "acting"
	case StageAwaitingRealtime:
		return "awaiting-realtime"
	case StageAwaitingConvergence:
		return "awaiting-convergence"
	case StageVerifyingRelay:
		return "verifying-relay"
	case StagePassed:
		return "passed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Terminal reports whether s ends a run.
func (s Stage) Terminal() bool { return s == StagePassed || s == StageFailed }

// Position is a point in a run: a step (numbered from 1; 0 before the
// first step) and a stage within it.
type Position struct {
	Step  int
	Stage Stage
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	if p.Stage.Terminal() {
		return false
	}
	if q.Stage.Terminal() {
		return true
	}
	if p.Step != q.Step {
		return p.Step < q.Step
	}
	return p.Stage < q.Stage
}

func (p Position) String() string {
	if p.Step == 0 {
		return p.Stage.String()
	}
	return fmt.Sprintf("step %d %s", p.Step, p.Stage)
}

// tracker enforces forward-only movement through positions.
type tracker struct {
	current Position
	// last is the most recent non-terminal position, kept so a
	// failed run can report where it stopped.
	last    Position
	history []Position
}

func newTracker() *tracker {
	start := Position{Stage: StageProvisioning}
	return &tracker{current: start, last: start, history: []Position{start}}
}

// advance moves to next. Moving backwards, sideways, or out of a
// terminal stage is a programming error in the runner.
func (t *tracker) advance(next Position) error {
	if !t.current.Before(next) {
		return fmt.Errorf("scenario: illegal stage transition from %s to %s", t.current, next)
	}
	t.current = next
	if !next.Stage.Terminal() {
		t.last = next
	}
	t.history = append(t.history, next)
	return nil
}

// fail moves to the failed stage from any non-terminal position.
func (t *tracker) fail() {
	if t.current.Stage.Terminal() {
		return
	}
	t.current = Position{Step: t.current.Step, Stage: StageFailed}
	t.history = append(t.history, t.current)
}
