// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package controlplane is the harness's client for a node's HTTP/JSON
// control API.
//
// A [Client] holds one node's base URL and HTTP transport. Registering
// an account returns a [Session] that carries the bearer token; every
// authenticated operation hangs off a Session. The client is stateless
// beyond that: no retries, no caching, no token refresh.
//
// Every operation declares the exact set of HTTP statuses it accepts.
// Anything else, including a 2xx outside the set, is returned as an
// [*UnexpectedStatusError] carrying the method, URL, status, and a
// bounded excerpt of the body, so a failure report shows what the node
// actually said:
//
//	var statusErr *controlplane.UnexpectedStatusError
//	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden { ... }
//
// Resource identifiers are snowflakes that nodes render as either JSON
// numbers or strings; [ID] accepts both and always compares as a
// decimal string, which is also how gateway payloads carry them.
package controlplane
