// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// KeepaliveMode selects who sends heartbeats.
type KeepaliveMode int

const (
	// KeepalivePiggyback sends heartbeats from Await.
	KeepalivePiggyback KeepaliveMode = iota

	// KeepaliveBackground sends heartbeats from a goroutine owned by the
	// session, so idle sessions stay connected.
	KeepaliveBackground
)

func (m KeepaliveMode) String() string {
	switch m {
	case KeepalivePiggyback:
		return "piggyback"
	case KeepaliveBackground:
		return "background"
	default:
		return fmt.Sprintf("KeepaliveMode(%d)", int(m))
	}
}

// ParseKeepaliveMode parses "piggyback" or "background".
func ParseKeepaliveMode(text string) (KeepaliveMode, error) {
	switch text {
	case "", "piggyback":
		return KeepalivePiggyback, nil
	case "background":
		return KeepaliveBackground, nil
	default:
		return 0, fmt.Errorf("gateway: unknown keepalive mode %q", text)
	}
}

const (
	// DefaultHeartbeatInterval applies when HELLO omits the interval.
	DefaultHeartbeatInterval = 41250 * time.Millisecond

	// MinHeartbeatInterval clamps intervals announced by the server.
	MinHeartbeatInterval = time.Second
)

// helloInterval reads the heartbeat interval (milliseconds) from
// HELLO's payload. A payload that is not an object, or has no
// heartbeat_interval, gets DefaultHeartbeatInterval. A field that is
// present but not a number is an error.
func helloInterval(data json.RawMessage) (time.Duration, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return DefaultHeartbeatInterval, nil
	}
	raw, ok := fields["heartbeat_interval"]
	if !ok {
		return DefaultHeartbeatInterval, nil
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, fmt.Errorf("heartbeat_interval is null")
	}
	var milliseconds float64
	if err := json.Unmarshal(raw, &milliseconds); err != nil {
		return 0, fmt.Errorf("heartbeat_interval %s is not a number", raw)
	}
	interval := time.Duration(milliseconds * float64(time.Millisecond))
	return max(interval, MinHeartbeatInterval), nil
}

// keepalive tracks the heartbeat schedule. It is shared between Await
// and the background goroutine.
type keepalive struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	sent     int
}

// threshold is the elapsed time after which a heartbeat is due.
func (k *keepalive) threshold() time.Duration {
	return k.interval * 9 / 10
}

// untilDue returns how long until the next heartbeat is due, zero when
// it already is.
func (k *keepalive) untilDue(now time.Time) time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	return max(k.last.Add(k.threshold()).Sub(now), 0)
}

// beatIfDue calls send when a heartbeat is due and records now as the
// last heartbeat if send succeeds. It reports whether send was called.
// The lock is held across send so concurrent callers cannot both fire.
func (k *keepalive) beatIfDue(now time.Time, send func() error) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if now.Sub(k.last) < k.threshold() {
		return false, nil
	}
	if err := send(); err != nil {
		return true, err
	}
	if now.After(k.last) {
		k.last = now
	}
	k.sent++
	return true, nil
}

func (k *keepalive) snapshot() (last time.Time, sent int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.last, k.sent
}
