// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

// Package topology describes the nodes under test and the directed
// trust graph between them.
//
// A [Topology] is an immutable value built once per run and passed to
// everything that needs to know which node trusts which. The harness
// deliberately builds graphs that are not full meshes: a relay proof
// needs an origin and destination with no edge between them and a
// third node trusted by the origin that trusts the destination.
package topology

import (
	"errors"
	"fmt"
	"slices"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/lib/config"
)

// Node is one instance of the system under test.
type Node struct {
	Key            string
	ServerName     string
	ControlURL     string
	GatewayURL     string
	StorePath      string
	SigningKeyPath string
}

// FederationEndpoint returns the URL peers use to reach the node.
func (n Node) FederationEndpoint() string {
	return n.ControlURL + controlplane.FederationPath
}

// Edge is a directed trust link: From trusts To.
type Edge struct {
	From     string
	To       string
	Discover bool
}

func (e Edge) String() string { return e.From + "→" + e.To }

// Topology is a validated set of nodes and trust edges.
type Topology struct {
	nodes []Node
	byKey map[string]int
	edges []Edge
	out   map[string][]string
}

// New validates nodes and edges. Node keys and server names must be
// unique, edges must connect known, distinct nodes, and no edge may
// appear twice.
func New(nodes []Node, edges []Edge) (*Topology, error) {
	var errs []error
	topology := &Topology{
		byKey: make(map[string]int, len(nodes)),
		out:   make(map[string][]string, len(nodes)),
	}
	serverNames := make(map[string]string, len(nodes))
	for index, node := range nodes {
		if node.Key == "" {
			errs = append(errs, fmt.Errorf("node %d has no key", index))
			continue
		}
		if _, duplicate := topology.byKey[node.Key]; duplicate {
			errs = append(errs, fmt.Errorf("duplicate node key %q", node.Key))
			continue
		}
		if node.ServerName == "" {
			errs = append(errs, fmt.Errorf("node %q has no server name", node.Key))
		} else if other, duplicate := serverNames[node.ServerName]; duplicate {
			errs = append(errs, fmt.Errorf("nodes %q and %q share server name %q", other, node.Key, node.ServerName))
		}
		serverNames[node.ServerName] = node.Key
		topology.byKey[node.Key] = len(topology.nodes)
		topology.nodes = append(topology.nodes, node)
	}

	seen := make(map[Edge]bool, len(edges))
	for _, edge := range edges {
		key := Edge{From: edge.From, To: edge.To}
		switch {
		case edge.From == edge.To:
			errs = append(errs, fmt.Errorf("edge %s is a self-loop", edge))
		case !topology.has(edge.From):
			errs = append(errs, fmt.Errorf("edge %s: unknown node %q", edge, edge.From))
		case !topology.has(edge.To):
			errs = append(errs, fmt.Errorf("edge %s: unknown node %q", edge, edge.To))
		case seen[key]:
			errs = append(errs, fmt.Errorf("edge %s appears twice", edge))
		default:
			seen[key] = true
			topology.edges = append(topology.edges, edge)
			topology.out[edge.From] = append(topology.out[edge.From], edge.To)
		}
	}
	for from := range topology.out {
		slices.Sort(topology.out[from])
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("topology: %w", errors.Join(errs...))
	}
	return topology, nil
}

// FromConfig builds the Topology described by cfg.
func FromConfig(cfg *config.Config) (*Topology, error) {
	nodes := make([]Node, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		nodes = append(nodes, Node{
			Key:            node.Key,
			ServerName:     node.ServerName,
			ControlURL:     node.ControlURL,
			GatewayURL:     node.GatewayURL,
			StorePath:      node.StorePath,
			SigningKeyPath: node.SigningKeyPath,
		})
	}
	edges := make([]Edge, 0, len(cfg.Trust))
	for _, edge := range cfg.Trust {
		edges = append(edges, Edge{From: edge.From, To: edge.To, Discover: edge.DiscoverEnabled()})
	}
	return New(nodes, edges)
}

func (t *Topology) has(key string) bool {
	_, ok := t.byKey[key]
	return ok
}

// Nodes returns the nodes in declaration order.
func (t *Topology) Nodes() []Node { return slices.Clone(t.nodes) }

// Node returns the node with key.
func (t *Topology) Node(key string) (Node, bool) {
	index, ok := t.byKey[key]
	if !ok {
		return Node{}, false
	}
	return t.nodes[index], true
}

// Edges returns the edges in declaration order.
func (t *Topology) Edges() []Edge { return slices.Clone(t.edges) }

// HasEdge reports whether from trusts to.
func (t *Topology) HasEdge(from, to string) bool {
	return slices.Contains(t.out[from], to)
}

// Peers returns the keys of the nodes key trusts, sorted.
func (t *Topology) Peers(key string) []string {
	return slices.Clone(t.out[key])
}

// PeerServerNames returns the server names key trusts, sorted. This is
// the exact trusted-peer set the node's store must report.
func (t *Topology) PeerServerNames(key string) []string {
	names := make([]string, 0, len(t.out[key]))
	for _, peer := range t.out[key] {
		node, _ := t.Node(peer)
		names = append(names, node.ServerName)
	}
	slices.Sort(names)
	return names
}

// IsFullMesh reports whether every ordered pair of distinct nodes has
// an edge.
func (t *Topology) IsFullMesh() bool {
	for _, from := range t.nodes {
		for _, to := range t.nodes {
			if from.Key != to.Key && !t.HasEdge(from.Key, to.Key) {
				return false
			}
		}
	}
	return true
}

// RelayFor returns a node that can carry events from origin to
// destination when origin does not trust destination directly: origin
// trusts it and it trusts destination. Ties resolve to the smallest key.
func (t *Topology) RelayFor(origin, destination string) (string, bool) {
	if origin == destination || t.HasEdge(origin, destination) {
		return "", false
	}
	for _, candidate := range t.out[origin] {
		if candidate != destination && t.HasEdge(candidate, destination) {
			return candidate, true
		}
	}
	return "", false
}
