// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Gateway opcodes.
const (
	OpDispatch     = 0
	OpHeartbeat    = 1
	OpIdentify     = 2
	OpHello        = 10
	OpHeartbeatAck = 11
)

// EventReady is the dispatch that completes the handshake.
const EventReady = "READY"

// frame is the envelope of every gateway message.
type frame struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d"`
	Sequence *int64          `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

type identifyData struct {
	Token string `json:"token"`
}

// outgoing is a frame sent by the client. Data is marshaled as-is, so
// a nil Data produces "d": null.
type outgoing struct {
	Op   int `json:"op"`
	Data any `json:"d"`
}

// Dispatch is one DISPATCH frame.
type Dispatch struct {
	// Type is the event name, e.g. "MESSAGE_CREATE".
	Type string

	// Sequence is the server's sequence number, or 0 when absent.
	Sequence int64

	// Raw is the undecoded "d" field.
	Raw json.RawMessage

	// Data is "d" decoded as an object. It is nil when "d" is not a
	// JSON object; predicates never match such dispatches. Numbers are
	// json.Number so snowflake IDs keep full precision.
	Data map[string]any

	ReceivedAt time.Time
}

func newDispatch(f frame, receivedAt time.Time) Dispatch {
	dispatch := Dispatch{
		Type:       f.Type,
		Raw:        f.Data,
		ReceivedAt: receivedAt,
	}
	if f.Sequence != nil {
		dispatch.Sequence = *f.Sequence
	}
	decoder := json.NewDecoder(bytes.NewReader(f.Data))
	decoder.UseNumber()
	var data map[string]any
	if err := decoder.Decode(&data); err == nil {
		dispatch.Data = data
	}
	return dispatch
}

// Lookup returns the value at a dotted path such as "user.id".
func (d Dispatch) Lookup(path string) (any, bool) {
	if d.Data == nil {
		return nil, false
	}
	var current any = d.Data
	for _, key := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = object[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns the value at path rendered as a string, or "" when
// absent or not a scalar. IDs compare equal whether the server sent
// them as strings or numbers.
func (d Dispatch) String(path string) string {
	value, ok := d.Lookup(path)
	if !ok {
		return ""
	}
	text, _ := scalarString(value)
	return text
}

func scalarString(value any) (string, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	case bool:
		return fmt.Sprint(typed), true
	case fmt.Stringer:
		return typed.String(), true
	case int, int32, int64, uint, uint32, uint64, float64:
		return fmt.Sprint(typed), true
	default:
		return "", false
	}
}
