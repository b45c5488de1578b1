// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"
)

// teardown closes gateway sessions, stops every node the run started
// (in reverse start order), and closes the inspector. It runs once;
// later calls return the first call's result. Failures are collected,
// not short-circuited, so one stuck node does not leak the others.
func (e *Env) teardown(ctx context.Context) error {
	e.teardownOnce.Do(func() {
		e.mu.Lock()
		sessions := slices.Clone(e.sessions)
		instances := slices.Clone(e.instances)
		e.mu.Unlock()

		for _, session := range slices.Backward(sessions) {
			session.Close()
		}

		var err error
		for _, instance := range slices.Backward(instances) {
			if stopErr := instance.Stop(ctx); stopErr != nil {
				err = multierr.Append(err, fmt.Errorf("stopping %s: %w", instance.Key(), stopErr))
			}
		}
		if e.Inspector != nil {
			err = multierr.Append(err, e.Inspector.Close())
		}
		e.teardownErr = err
		e.logger.Info("teardown finished",
			"run_id", e.RunID,
			"sessions", len(sessions),
			"nodes", len(instances),
			"clean", err == nil,
		)
	})
	return e.teardownErr
}
