// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader("forbidden")); got != "forbidden" {
		t.Errorf("ErrorBody = %q, want %q", got, "forbidden")
	}

	long := strings.Repeat("x", MaxErrorBody*2)
	if got := ErrorBody(strings.NewReader(long)); len(got) != MaxErrorBody {
		t.Errorf("len(ErrorBody) = %d, want %d", len(got), MaxErrorBody)
	}

	// A three-byte rune straddling the limit is dropped, not split.
	straddle := strings.Repeat("a", MaxErrorBody-1) + "€"
	got := ErrorBody(strings.NewReader(straddle))
	if got != strings.Repeat("a", MaxErrorBody-1) {
		t.Errorf("ErrorBody kept a partial rune: tail %q", got[len(got)-4:])
	}

	if got := ErrorBody(failReader{}); got != "" {
		t.Errorf("ErrorBody on read failure = %q, want empty", got)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"EOF", io.EOF, true},
		{"wrapped EOF", fmt.Errorf("reading frame: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"broken pipe", syscall.EPIPE, true},
		{"refused", syscall.ECONNREFUSED, false},
		{"other", errors.New("bad frame"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
