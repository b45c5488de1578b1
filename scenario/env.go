// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/gateway"
	"github.com/paracord-chat/fedcheck/inspect"
	"github.com/paracord-chat/fedcheck/launcher"
	"github.com/paracord-chat/fedcheck/lib/clock"
	"github.com/paracord-chat/fedcheck/lib/config"
	"github.com/paracord-chat/fedcheck/lib/poll"
	"github.com/paracord-chat/fedcheck/relay"
	"github.com/paracord-chat/fedcheck/topology"
)

// Roles names the nodes a relay scenario assigns to each position.
type Roles struct {
	Origin      string
	Relay       string
	Destination string
}

// Entry is one line of a run's trail.
type Entry struct {
	At       time.Time
	Position Position
	Message  string
}

// Env is what a scenario's setup and steps act on. It owns every
// resource the run acquires and releases them in teardown.
type Env struct {
	RunID     string
	Config    *config.Config
	Topology  *topology.Topology
	Roles     Roles
	Policy    relay.Policy
	Inspector *inspect.Inspector

	clock     clock.Clock
	logger    *slog.Logger
	keepalive gateway.KeepaliveMode

	mu        sync.Mutex
	clients   map[string]*controlplane.Client
	admins    map[string]*controlplane.Session
	instances []launcher.Instance
	sessions  []*gateway.Session
	trail     []Entry
	position  Position

	teardownOnce sync.Once
	teardownErr  error
}

// Client returns the control-plane client for node, or nil for an
// unknown node.
func (e *Env) Client(node string) *controlplane.Client {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clients[node]
}

// Admin returns the admin account registered on node during
// provisioning.
func (e *Env) Admin(node string) *controlplane.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.admins[node]
}

// Server returns node's server name.
func (e *Env) Server(node string) string {
	described, _ := e.Topology.Node(node)
	return described.ServerName
}

// Others returns every node except node, in declaration order.
func (e *Env) Others(node string) []string {
	var keys []string
	for _, described := range e.Topology.Nodes() {
		if described.Key != node {
			keys = append(keys, described.Key)
		}
	}
	return keys
}

// Register creates username on node with the configured password. The
// email is derived from the username.
func (e *Env) Register(ctx context.Context, node, username string) (*controlplane.Session, error) {
	client := e.Client(node)
	if client == nil {
		return nil, fmt.Errorf("scenario: unknown node %q", node)
	}
	account, err := client.Register(ctx, controlplane.RegisterRequest{
		Email:    strings.ReplaceAll(username, "_", "-") + "@example.test",
		Username: username,
		Password: e.Config.Password,
	})
	if err != nil {
		return nil, err
	}
	e.Note("registered %s on %s as user %s", username, node, account.UserID())
	return account, nil
}

// Connect opens a gateway session on node for account. The session is
// closed in teardown.
func (e *Env) Connect(ctx context.Context, node string, account *controlplane.Session) (*gateway.Session, error) {
	described, ok := e.Topology.Node(node)
	if !ok {
		return nil, fmt.Errorf("scenario: unknown node %q", node)
	}
	var transcriptDir string
	if e.Config.Gateway.Transcripts {
		transcriptDir = filepath.Join(e.Config.RunDir, "transcripts", e.RunID)
	}
	session, err := gateway.Dial(ctx, gateway.Config{
		Name:          node + "/" + account.Username(),
		URL:           described.GatewayURL,
		Token:         account.Token(),
		Origin:        e.Config.Gateway.Origin,
		HelloTimeout:  e.Config.Timeouts.Handshake.Std(),
		ReadyTimeout:  e.Config.Timeouts.Ready.Std(),
		Keepalive:     e.keepalive,
		TranscriptDir: transcriptDir,
		Clock:         e.clock,
		Logger:        e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.sessions = append(e.sessions, session)
	e.mu.Unlock()
	e.Note("gateway session %s ready (heartbeat every %s)", session.Name(), session.HeartbeatInterval())
	return session, nil
}

// Await waits on session for a dispatch of eventType matching
// predicate, bounded by the realtime timeout.
func (e *Env) Await(ctx context.Context, session *gateway.Session, eventType string, predicate gateway.Predicate) (gateway.Dispatch, error) {
	dispatch, err := session.Await(ctx, eventType, predicate, e.Config.Timeouts.Realtime.Std())
	if err != nil {
		return dispatch, err
	}
	e.Note("%s observed %s (seq %d)", session.Name(), eventType, dispatch.Sequence)
	return dispatch, nil
}

// Converge polls condition until it holds, bounded by the convergence
// timeout.
func (e *Env) Converge(ctx context.Context, description string, condition poll.Condition) error {
	if err := poll.Until(ctx, description, condition, e.pollOptions(e.Config.Timeouts.Convergence.Std())); err != nil {
		return err
	}
	e.Note("converged: %s", description)
	return nil
}

// ConvergeOn runs Converge for each node in turn. The description is
// suffixed with the node key.
func (e *Env) ConvergeOn(ctx context.Context, nodes []string, description string, condition func(ctx context.Context, node string) (bool, error)) error {
	for _, node := range nodes {
		err := e.Converge(ctx, description+" on "+node, func(ctx context.Context) (bool, error) {
			return condition(ctx, node)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Route returns the origin → relay → destination route for eventID.
func (e *Env) Route(eventID string) relay.Route {
	hop := func(node string) relay.Hop {
		return relay.Hop{Node: node, Server: e.Server(node)}
	}
	return relay.Route{
		EventID:     eventID,
		Origin:      hop(e.Roles.Origin),
		Relay:       hop(e.Roles.Relay),
		Destination: hop(e.Roles.Destination),
	}
}

// ProveRelay waits for the ledgers to prove eventID took the relay
// route under the run's policy.
func (e *Env) ProveRelay(ctx context.Context, eventID string) (relay.Evidence, error) {
	route := e.Route(eventID)
	evidence, err := relay.Prove(ctx, e.Inspector, route, e.Policy, e.pollOptions(e.Config.Timeouts.Convergence.Std()))
	if err != nil {
		return evidence, err
	}
	e.Note("relay proven (%s) for %s: direct=%d relay=%d ingested=%d",
		e.Policy, route, evidence.DirectAttempts, evidence.RelayAttempts, evidence.Ingested)
	return evidence, nil
}

// Note appends a line to the trail and logs it.
func (e *Env) Note(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	e.mu.Lock()
	position := e.position
	e.trail = append(e.trail, Entry{At: e.clock.Now(), Position: position, Message: message})
	e.mu.Unlock()
	e.logger.Info(message, "run_id", e.RunID, "position", position.String())
}

// Trail returns a copy of the trail so far.
func (e *Env) Trail() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Entry(nil), e.trail...)
}

func (e *Env) setPosition(position Position) {
	e.mu.Lock()
	e.position = position
	e.mu.Unlock()
}

func (e *Env) addInstance(instance launcher.Instance) {
	e.mu.Lock()
	e.instances = append(e.instances, instance)
	e.mu.Unlock()
}

func (e *Env) setAdmin(node string, account *controlplane.Session) {
	e.mu.Lock()
	e.admins[node] = account
	e.mu.Unlock()
}

func (e *Env) pollOptions(timeout time.Duration) poll.Options {
	return poll.Options{
		Timeout:  timeout,
		Interval: e.Config.Timeouts.PollInterval.Std(),
		Clock:    e.clock,
		Logger:   e.logger,
	}
}

// localID converts a control-plane ID to the integer key stores use.
func localID(id controlplane.ID) (int64, error) {
	value, err := id.Int64()
	if err != nil {
		return 0, fmt.Errorf("scenario: id %q is not numeric: %w", id, err)
	}
	return value, nil
}
