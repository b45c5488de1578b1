// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/lib/poll"
)

// linkTrust adds every configured edge through the control plane and
// waits until each node's store reports exactly its configured peers.
func linkTrust(ctx context.Context, env *Env, requiresRelay bool) error {
	if requiresRelay {
		if err := checkRelayChain(env); err != nil {
			return err
		}
	}

	for _, edge := range env.Topology.Edges() {
		peer, _ := env.Topology.Node(edge.To)
		admin := env.Admin(edge.From)
		if admin == nil {
			return fmt.Errorf("scenario: no admin provisioned on %s", edge.From)
		}
		err := admin.AddTrustedPeer(ctx, controlplane.TrustedPeer{
			ServerName:         peer.ServerName,
			Domain:             peer.ServerName,
			FederationEndpoint: peer.FederationEndpoint(),
			Trusted:            true,
			Discover:           edge.Discover,
		})
		if err != nil {
			return err
		}
		env.Note("%s now trusts %s", edge.From, edge.To)
	}

	for _, node := range env.Topology.Nodes() {
		want := env.Topology.PeerServerNames(node.Key)
		err := env.Converge(ctx, fmt.Sprintf("%s trusted peers = [%s]", node.Key, strings.Join(want, ", ")),
			func(ctx context.Context) (bool, error) {
				return trustedPeersMatch(ctx, env, node.Key, want)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// trustedPeersMatch compares node's stored trusted-peer set with want.
// A peer outside want never goes away by waiting, so it fails the check
// outright.
func trustedPeersMatch(ctx context.Context, env *Env, node string, want []string) (bool, error) {
	got, err := env.Inspector.TrustedPeers(ctx, node)
	if err != nil {
		// A node with no configured peers may never create the table.
		if len(want) == 0 && poll.IsNotReady(err) {
			return true, nil
		}
		return false, err
	}
	for _, peer := range got {
		if !slices.Contains(want, peer) {
			return false, Failf("trusted peers on "+node, "unexpected peer %s (have [%s], want [%s])",
				peer, strings.Join(got, ", "), strings.Join(want, ", "))
		}
	}
	return slices.Equal(got, want), nil
}

// checkRelayChain verifies the graph forces traffic from origin to
// destination through the configured relay.
func checkRelayChain(env *Env) error {
	roles := env.Roles
	for _, node := range []string{roles.Origin, roles.Relay, roles.Destination} {
		if _, ok := env.Topology.Node(node); !ok {
			return Failf("relay chain", "scenario role node %q is not in the topology", node)
		}
	}
	if env.Topology.IsFullMesh() {
		return Failf("relay chain", "trust graph is a full mesh, so no event needs a relay")
	}
	if env.Topology.HasEdge(roles.Origin, roles.Destination) {
		return Failf("relay chain", "%s trusts %s directly", roles.Origin, roles.Destination)
	}
	if !env.Topology.HasEdge(roles.Origin, roles.Relay) || !env.Topology.HasEdge(roles.Relay, roles.Destination) {
		if alternative, ok := env.Topology.RelayFor(roles.Origin, roles.Destination); ok {
			return Failf("relay chain", "%s reaches %s through %s, not the configured relay %s",
				roles.Origin, roles.Destination, alternative, roles.Relay)
		}
		return Failf("relay chain", "no path from %s through %s to %s", roles.Origin, roles.Relay, roles.Destination)
	}
	env.Note("relay chain %s → %s → %s verified", roles.Origin, roles.Relay, roles.Destination)
	return nil
}

// trustUnchanged is a single read that every node still reports
// exactly its configured peers.
func trustUnchanged(ctx context.Context, env *Env) error {
	for _, node := range env.Topology.Nodes() {
		want := env.Topology.PeerServerNames(node.Key)
		ok, err := trustedPeersMatch(ctx, env, node.Key, want)
		if err != nil {
			return err
		}
		if !ok {
			got, _ := env.Inspector.TrustedPeers(ctx, node.Key)
			return Failf("trusted peers on "+node.Key, "have [%s], want [%s]",
				strings.Join(got, ", "), strings.Join(want, ", "))
		}
	}
	env.Note("trust sets unchanged on every node")
	return nil
}
