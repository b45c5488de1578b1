// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paracord-chat/fedcheck/lib/clock"
	"github.com/paracord-chat/fedcheck/lib/testutil"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// trueAfter returns a condition that is false before start+at and true
// from then on, measured on fake.
func trueAfter(fake *clock.FakeClock, at time.Duration) Condition {
	becomesTrue := fake.Now().Add(at)
	return func(context.Context) (bool, error) {
		return !fake.Now().Before(becomesTrue), nil
	}
}

// drive advances fake one interval at a time until the wait returns.
// Each step waits for Until to register its next sleep, so no advance
// is lost to a waiter that does not exist yet.
func drive(t *testing.T, fake *clock.FakeClock, interval time.Duration, result <-chan error) error {
	t.Helper()
	for {
		registered := make(chan struct{})
		go func() {
			fake.WaitForTimers(1)
			close(registered)
		}()
		select {
		case err := <-result:
			// Release the helper still blocked in WaitForTimers.
			fake.After(time.Hour)
			return err
		case <-registered:
			fake.Advance(interval)
		}
	}
}

func TestUntilSucceedsWhenTimeoutExceedsConvergence(t *testing.T) {
	fake := clock.Fake(epoch)
	options := Options{Timeout: 10 * time.Second, Interval: time.Second, Clock: fake}
	condition := trueAfter(fake, 4*time.Second)

	result := make(chan error, 1)
	go func() { result <- Until(t.Context(), "replicated", condition, options) }()

	if err := drive(t, fake, options.Interval, result); err != nil {
		t.Fatalf("Until: %v", err)
	}
	if elapsed := fake.Now().Sub(epoch); elapsed < 4*time.Second {
		t.Errorf("returned after %s, before the condition became true", elapsed)
	}
}

func TestUntilTimesOutWhenConvergenceIsLate(t *testing.T) {
	fake := clock.Fake(epoch)
	options := Options{Timeout: 3 * time.Second, Interval: time.Second, Clock: fake}
	condition := trueAfter(fake, 5*time.Second)

	result := make(chan error, 1)
	go func() { result <- Until(t.Context(), "replicated", condition, options) }()

	err := drive(t, fake, options.Interval, result)
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Until error = %v, want *TimeoutError", err)
	}
	if timeoutErr.Description != "replicated" {
		t.Errorf("Description = %q, want %q", timeoutErr.Description, "replicated")
	}
	if timeoutErr.Waited != 3*time.Second {
		t.Errorf("Waited = %s, want 3s", timeoutErr.Waited)
	}
}

func TestUntilFinalEvaluationAtDeadline(t *testing.T) {
	fake := clock.Fake(epoch)
	// Interval does not divide the timeout: the last sleep is clipped
	// to the deadline and the condition is evaluated there.
	options := Options{Timeout: 2500 * time.Millisecond, Interval: time.Second, Clock: fake}
	condition := trueAfter(fake, 2500*time.Millisecond)

	result := make(chan error, 1)
	go func() { result <- Until(t.Context(), "at deadline", condition, options) }()

	for _, step := range []time.Duration{time.Second, time.Second, 500 * time.Millisecond} {
		fake.WaitForTimers(1)
		fake.Advance(step)
	}
	if err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for Until"); err != nil {
		t.Fatalf("Until: %v", err)
	}
}

func TestUntilSwallowsNotReadyErrors(t *testing.T) {
	fake := clock.Fake(epoch)
	options := Options{Timeout: 2 * time.Second, Interval: 500 * time.Millisecond, Clock: fake}
	storeMissing := errors.New("unable to open database file")
	attempts := 0
	condition := func(context.Context) (bool, error) {
		attempts++
		return false, NotReady(storeMissing)
	}

	result := make(chan error, 1)
	go func() { result <- Until(t.Context(), "store exists", condition, options) }()

	err := drive(t, fake, options.Interval, result)
	if !IsTimeout(err) {
		t.Fatalf("Until error = %v, want timeout", err)
	}
	if !errors.Is(err, storeMissing) {
		t.Errorf("timeout does not carry the last error: %v", err)
	}
	if attempts != 5 {
		t.Errorf("attempts = %d, want 5 (t=0, 0.5, 1, 1.5, 2)", attempts)
	}
}

func TestUntilPropagatesOtherErrors(t *testing.T) {
	broken := errors.New("no such column: contnet")
	err := Until(t.Context(), "query", func(context.Context) (bool, error) {
		return false, broken
	}, Options{Timeout: time.Hour, Clock: clock.Fake(epoch)})

	if !errors.Is(err, broken) {
		t.Fatalf("Until error = %v, want %v", err, broken)
	}
	if IsTimeout(err) {
		t.Error("a non-transient error must not be reported as a timeout")
	}
}

func TestUntilContextCancelled(t *testing.T) {
	fake := clock.Fake(epoch)
	ctx, cancel := context.WithCancel(t.Context())

	result := make(chan error, 1)
	go func() {
		result <- Until(ctx, "never", func(context.Context) (bool, error) { return false, nil },
			Options{Timeout: time.Hour, Clock: fake})
	}()

	fake.WaitForTimers(1)
	cancel()
	err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for cancelled Until")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Until error = %v, want context.Canceled", err)
	}
}

func TestNotReadyNil(t *testing.T) {
	if NotReady(nil) != nil {
		t.Error("NotReady(nil) should be nil")
	}
}
