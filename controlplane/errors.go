// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"errors"
	"fmt"
	"slices"
)

// UnexpectedStatusError is returned when a node answers with a status
// outside the operation's accepted set.
type UnexpectedStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Accepted   []int
	// Body is at most netutil.MaxErrorBody bytes of the response.
	Body string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d (want %v): %s",
		e.Method, e.URL, e.StatusCode, e.Accepted, e.Body)
}

// IsUnexpectedStatus reports whether err is an UnexpectedStatusError.
// With codes given, it also requires the status to be one of them.
func IsUnexpectedStatus(err error, codes ...int) bool {
	var statusErr *UnexpectedStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return len(codes) == 0 || slices.Contains(codes, statusErr.StatusCode)
}
