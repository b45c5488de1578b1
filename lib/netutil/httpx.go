// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the HTTP and connection helpers shared by the
// control-plane client and the gateway client.
//
// Response helpers bound every body read at [MaxResponseSize]. Node
// responses are small JSON documents; the bound only matters when a
// misbehaving node streams garbage at the harness. [ErrorBody] further
// truncates what it returns to [MaxErrorBody] so an HTML error page does
// not swamp a failure report.
//
// [IsExpectedCloseError] classifies errors seen when a connection is
// torn down on purpose.
package netutil

import (
	"io"
	"unicode/utf8"
)

// MaxResponseSize bounds JSON response body reads: 32 MB.
const MaxResponseSize int64 = 32 << 20

// MaxErrorBody is how much of an unexpected response body ErrorBody
// keeps for diagnostics.
const MaxErrorBody = 2048

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// ErrorBody reads at most MaxErrorBody bytes of body for an error
// message. Read errors are ignored: a partial body is still useful.
// A multi-byte rune cut by the limit is dropped.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBody))
	for len(data) > 0 && !utf8.Valid(data) {
		data = data[:len(data)-1]
	}
	return string(data)
}
