// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// HandshakeError reports a failed HELLO/IDENTIFY/READY exchange.
type HandshakeError struct {
	URL    string
	Stage  string
	Reason string
	Err    error
}

func (e *HandshakeError) Error() string {
	message := fmt.Sprintf("gateway: handshake with %s failed during %s: %s", e.URL, e.Stage, e.Reason)
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// TimeoutError reports an Await that found no matching dispatch.
type TimeoutError struct {
	Session   string
	EventType string
	Waited    time.Duration

	// Seen lists the most recent dispatch types observed during the
	// wait, oldest first.
	Seen []string

	// Backlog is the number of unclaimed dispatches left on the session.
	Backlog int
}

func (e *TimeoutError) Error() string {
	seen := "none"
	if len(e.Seen) > 0 {
		seen = strings.Join(e.Seen, ", ")
	}
	return fmt.Sprintf("gateway: %s: timed out after %s waiting for %s; recently seen: [%s]; backlog %d",
		e.Session, e.Waited, e.EventType, seen, e.Backlog)
}

// Timeout reports true.
func (e *TimeoutError) Timeout() bool { return true }

// ErrClosed is returned by Await after Close.
var ErrClosed = errors.New("gateway: session closed")

// IsHandshake reports whether err is or wraps a *HandshakeError.
func IsHandshake(err error) bool {
	var target *HandshakeError
	return errors.As(err, &target)
}

// IsTimeout reports whether err is or wraps a *TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}
