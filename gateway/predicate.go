// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

// Predicate selects dispatches in Await. A nil Predicate matches every
// dispatch whose payload is an object.
type Predicate func(Dispatch) bool

// Where matches dispatches whose field at path equals value. Scalars
// are compared by their string form, so Where("id", controlplane.ID("7"))
// matches both {"id":"7"} and {"id":7}.
func Where(path string, value any) Predicate {
	want, ok := scalarString(value)
	return func(dispatch Dispatch) bool {
		if !ok {
			return false
		}
		got, present := dispatch.Lookup(path)
		if !present {
			return false
		}
		text, scalar := scalarString(got)
		return scalar && text == want
	}
}

// Has matches dispatches that carry a field at path.
func Has(path string) Predicate {
	return func(dispatch Dispatch) bool {
		_, present := dispatch.Lookup(path)
		return present
	}
}

// All matches when every predicate matches. All() matches everything.
func All(predicates ...Predicate) Predicate {
	return func(dispatch Dispatch) bool {
		for _, predicate := range predicates {
			if predicate != nil && !predicate(dispatch) {
				return false
			}
		}
		return true
	}
}

// Any matches when at least one predicate matches.
func Any(predicates ...Predicate) Predicate {
	return func(dispatch Dispatch) bool {
		for _, predicate := range predicates {
			if predicate == nil || predicate(dispatch) {
				return true
			}
		}
		return false
	}
}

// Null matches dispatches whose field at path is absent or JSON null.
func Null(path string) Predicate {
	return func(dispatch Dispatch) bool {
		value, present := dispatch.Lookup(path)
		return !present || value == nil
	}
}
