// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

// backlog holds dispatches that arrived while no Await wanted them, in
// arrival order.
type backlog struct {
	events []Dispatch
}

// take removes and returns the oldest dispatch matching eventType and
// predicate.
func (b *backlog) take(eventType string, predicate Predicate) (Dispatch, bool) {
	for index, dispatch := range b.events {
		if matches(dispatch, eventType, predicate) {
			b.events = append(b.events[:index], b.events[index+1:]...)
			return dispatch, true
		}
	}
	return Dispatch{}, false
}

func (b *backlog) push(dispatch Dispatch) {
	b.events = append(b.events, dispatch)
}

func (b *backlog) len() int { return len(b.events) }

func matches(dispatch Dispatch, eventType string, predicate Predicate) bool {
	if dispatch.Type != eventType || dispatch.Data == nil {
		return false
	}
	return predicate == nil || predicate(dispatch)
}

// recentLimit bounds the event types reported by a TimeoutError.
const recentLimit = 15

// recentTypes keeps the last recentLimit event types seen.
type recentTypes struct {
	types []string
}

func (r *recentTypes) add(eventType string) {
	r.types = append(r.types, eventType)
	if len(r.types) > recentLimit {
		r.types = r.types[len(r.types)-recentLimit:]
	}
}

func (r *recentTypes) list() []string {
	return append([]string(nil), r.types...)
}
