// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"

	"github.com/paracord-chat/fedcheck/controlplane"
)

// Federation is the relay scenario: a message created on the origin
// must reach the destination only through the relay, and its edit,
// reactions, deletion, and a remote member's join and leave must
// converge on every other node.
func Federation() *Scenario {
	fixture := &guildFixture{}
	var joiner *controlplane.Session

	return &Scenario{
		Name:          "federation",
		Description:   "message lifecycle and membership across a relay chain, with relay proof",
		RequiresRelay: true,
		Setup: func(ctx context.Context, env *Env) error {
			origin := env.Roles.Origin
			observer, err := env.Register(ctx, origin, "guest_one")
			if err != nil {
				return err
			}
			if joiner, err = env.Register(ctx, origin, "guest_a"); err != nil {
				return err
			}
			if err := fixture.createGuild(ctx, env, "Federation E2E Guild"); err != nil {
				return err
			}
			if err := fixture.join(ctx, observer); err != nil {
				return err
			}
			if fixture.adminGateway, err = env.Connect(ctx, origin, fixture.admin); err != nil {
				return err
			}
			fixture.observer, err = env.Connect(ctx, origin, observer)
			return err
		},
		Steps: []Step{
			createMessageStep(fixture, "hello"),
			editMessageStep(fixture, "hello-edited"),
			addReactionStep(fixture, "thumbsup"),
			removeReactionStep(fixture, "thumbsup"),
			remoteMemberStep(fixture, func() *controlplane.Session { return joiner }, true),
			remoteMemberStep(fixture, func() *controlplane.Session { return joiner }, false),
			deleteMessageStep(fixture),
			trustUnchangedStep(),
		},
	}
}
