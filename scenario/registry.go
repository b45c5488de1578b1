// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"fmt"
	"slices"
	"strings"
)

var registry = map[string]func() *Scenario{
	"federation":   Federation,
	"fundamentals": Fundamentals,
}

// Names returns the registered scenario names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns a fresh instance of the named scenario.
func Lookup(name string) (*Scenario, error) {
	constructor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("scenario: unknown scenario %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return constructor(), nil
}
