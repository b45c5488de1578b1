// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paracord-chat/fedcheck/lib/clock"
)

const (
	// DefaultTimeout bounds a wait when Options.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	// DefaultInterval is the gap between evaluations when
	// Options.Interval is zero.
	DefaultInterval = 400 * time.Millisecond
)

// Condition reports whether the awaited state has been reached.
type Condition func(ctx context.Context) (bool, error)

// Options tunes a single wait. The zero value is usable.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger receives one debug record per failed evaluation. Nil
	// disables logging.
	Logger *slog.Logger
}

// TimeoutError is returned by Until when the deadline passes without
// the condition becoming true.
type TimeoutError struct {
	Description string
	Waited      time.Duration
	Attempts    int
	// LastErr is the most recent NotReady error, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("timed out after %s waiting for: %s (last error: %v)", e.Waited, e.Description, e.LastErr)
	}
	return fmt.Sprintf("timed out after %s waiting for: %s", e.Waited, e.Description)
}

// Timeout reports true. It lets callers classify the error alongside
// net.Error and gateway timeouts.
func (e *TimeoutError) Timeout() bool { return true }

func (e *TimeoutError) Unwrap() error { return e.LastErr }

type notReadyError struct{ err error }

func (e *notReadyError) Error() string { return "not ready: " + e.err.Error() }
func (e *notReadyError) Unwrap() error { return e.err }

// NotReady marks err as a transient "state not there yet" condition
// that Until treats as false. NotReady(nil) returns nil.
func NotReady(err error) error {
	if err == nil {
		return nil
	}
	return &notReadyError{err: err}
}

// IsNotReady reports whether err, or anything it wraps, was marked
// with NotReady.
func IsNotReady(err error) bool {
	var target *notReadyError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is a *TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// Until blocks until condition returns true, the deadline passes, or
// ctx is done.
func Until(ctx context.Context, description string, condition Condition, options Options) error {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := options.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeSource := options.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}

	start := timeSource.Now()
	deadline := start.Add(timeout)
	var lastErr error
	attempts := 0

	for {
		attempts++
		done, err := condition(ctx)
		switch {
		case err == nil && done:
			return nil
		case err != nil && !IsNotReady(err):
			return fmt.Errorf("poll: %s: %w", description, err)
		case err != nil:
			lastErr = err
			if options.Logger != nil {
				options.Logger.Debug("condition not ready",
					"condition", description,
					"attempt", attempts,
					"error", err,
				)
			}
		}

		now := timeSource.Now()
		if !now.Before(deadline) {
			return &TimeoutError{
				Description: description,
				Waited:      now.Sub(start),
				Attempts:    attempts,
				LastErr:     lastErr,
			}
		}

		select {
		case <-timeSource.After(min(interval, deadline.Sub(now))):
		case <-ctx.Done():
			return fmt.Errorf("poll: %s: %w", description, ctx.Err())
		}
	}
}
