// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/paracord-chat/fedcheck/launcher"
	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/lib/signingkey"
)

// adminUsername is the admin account provisioned on node.
func adminUsername(node string) string { return "admin_" + node }

// provision prepares signing keys, starts every node, waits for each
// to report healthy, and registers one admin account per node. Nodes
// that started before a failure are recorded on env so teardown stops
// them.
func (r *Runner) provision(ctx context.Context, env *Env) error {
	cfg := r.Config
	env.Note("provisioning %s", describeNodes(env.Topology))

	for _, node := range cfg.Nodes {
		if node.SigningKeyPath == "" {
			continue
		}
		key, created, err := signingkey.Ensure(node.SigningKeyPath)
		if err != nil {
			return fmt.Errorf("scenario: signing key for %s: %w", node.Key, err)
		}
		if created {
			env.Note("generated signing key for %s (fingerprint %s)", node.Key, key.Fingerprint())
		} else {
			env.Note("using signing key for %s (fingerprint %s)", node.Key, key.Fingerprint())
		}
	}

	starter := r.Launcher
	if starter == nil {
		starter = launcher.New(launcher.Config{
			StopGrace: cfg.Timeouts.StopGrace.Std(),
			Clock:     env.clock,
			Logger:    env.logger,
		})
	}

	instances := make(map[string]launcher.Instance, len(cfg.Nodes))
	group, groupCtx := errgroup.WithContext(ctx)
	for _, node := range cfg.Nodes {
		group.Go(func() error {
			instance, err := starter.Start(groupCtx, launcher.Spec{
				Key:     node.Key,
				Command: node.Command,
				Dir:     node.Dir,
				Env:     node.Env,
				LogPath: node.LogPath,
			})
			if err != nil {
				return err
			}
			env.addInstance(instance)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	for _, instance := range env.instances {
		instances[instance.Key()] = instance
	}

	healthTimeout := cfg.Timeouts.Health.Std()
	group, groupCtx = errgroup.WithContext(ctx)
	for _, node := range cfg.Nodes {
		instance := instances[node.Key]
		client := env.Client(node.Key)
		group.Go(func() error {
			return poll.Until(groupCtx, node.Key+" health", func(ctx context.Context) (bool, error) {
				if !instance.Alive() {
					return false, fmt.Errorf("node %s exited before becoming healthy (see %s)", node.Key, node.LogPath)
				}
				if err := client.Health(ctx); err != nil {
					return false, poll.NotReady(err)
				}
				return true, nil
			}, env.pollOptions(healthTimeout))
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	env.Note("all %d nodes healthy", len(cfg.Nodes))

	group, groupCtx = errgroup.WithContext(ctx)
	for _, node := range cfg.Nodes {
		group.Go(func() error {
			account, err := env.Register(groupCtx, node.Key, adminUsername(node.Key))
			if err != nil {
				return err
			}
			env.setAdmin(node.Key, account)
			return nil
		})
	}
	return group.Wait()
}
