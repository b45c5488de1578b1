// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/gateway"
	"github.com/paracord-chat/fedcheck/inspect"
	"github.com/paracord-chat/fedcheck/launcher"
	"github.com/paracord-chat/fedcheck/lib/clock"
	"github.com/paracord-chat/fedcheck/lib/config"
	"github.com/paracord-chat/fedcheck/relay"
	"github.com/paracord-chat/fedcheck/topology"
)

// Scenario is a named sequence of steps run against a topology.
// Constructors return a fresh Scenario per run; steps keep their
// shared state in the closure.
type Scenario struct {
	Name        string
	Description string

	// RequiresRelay makes trust linking verify that the configured
	// origin, relay, and destination form a relay chain in a graph that
	// is not a full mesh.
	RequiresRelay bool

	// Setup runs after trust is linked and before the first step.
	Setup func(ctx context.Context, env *Env) error

	Steps []Step
}

// Step is one mutation and the checks that follow it. Nil stage
// functions are skipped; the stage is still entered.
type Step struct {
	Name     string
	Act      func(ctx context.Context, env *Env) error
	Realtime func(ctx context.Context, env *Env) error
	Converge func(ctx context.Context, env *Env) error
	Relay    func(ctx context.Context, env *Env) error
}

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Scenario string
	Passed   bool

	// Position is the last stage the run entered before passing or
	// failing, and StepName the name of its step ("" before the first
	// step).
	Position Position
	StepName string

	Err  error
	Kind Kind

	// CleanupErr collects teardown failures. It does not affect Passed.
	CleanupErr error

	Trail    []Entry
	Started  time.Time
	Duration time.Duration
}

// Summary is a one-line description of the result: the verdict
// followed by the detail.
func (r *Result) Summary() string {
	return r.Verdict() + " " + r.Detail()
}

// Verdict is "PASS" or "FAIL".
func (r *Result) Verdict() string {
	if r.Passed {
		return "PASS"
	}
	return "FAIL"
}

// Detail names the scenario and how long it took, or where and why it
// failed.
func (r *Result) Detail() string {
	if r.Passed {
		return fmt.Sprintf("%s in %s", r.Scenario, r.Duration.Round(time.Millisecond))
	}
	where := r.Position.String()
	if r.StepName != "" {
		where = fmt.Sprintf("step %d (%s) %s", r.Position.Step, r.StepName, r.Position.Stage)
	}
	return fmt.Sprintf("%s at %s [%s]: %v", r.Scenario, where, r.Kind, r.Err)
}

// Runner executes scenarios.
type Runner struct {
	Config *config.Config

	// Launcher starts nodes. Defaults to a launcher.Process with the
	// configured stop grace.
	Launcher launcher.Launcher

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Run executes scenario and releases every resource it acquired before
// returning. It never panics on a failed check; the failure is on the
// Result.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) *Result {
	timeSource := r.Clock
	if timeSource == nil {
		timeSource = clock.Real()
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runID := uuid.NewString()
	logger = logger.With("scenario", scenario.Name)
	result := &Result{
		RunID:    runID,
		Scenario: scenario.Name,
		Started:  timeSource.Now(),
	}
	track := newTracker()

	env, err := r.newEnv(runID, timeSource, logger)
	if err == nil {
		err = r.execute(ctx, env, scenario, track)

		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.teardownTimeout())
		result.CleanupErr = env.teardown(cleanupCtx)
		cancel()
		result.Trail = env.Trail()
	}

	if err != nil {
		track.fail()
		result.Err = err
		result.Kind = Classify(err)
	} else {
		result.Passed = true
	}
	result.Position = track.last
	if step := track.last.Step; step > 0 && step <= len(scenario.Steps) {
		result.StepName = scenario.Steps[step-1].Name
	}
	result.Duration = timeSource.Now().Sub(result.Started)

	if result.Passed {
		logger.Info("scenario passed", "run_id", runID, "duration", result.Duration)
	} else {
		logger.Error("scenario failed",
			"run_id", runID,
			"position", result.Position.String(),
			"step", result.StepName,
			"kind", result.Kind.String(),
			"error", result.Err,
		)
	}
	if result.CleanupErr != nil {
		logger.Warn("teardown incomplete", "run_id", runID, "error", result.CleanupErr)
	}
	return result
}

func (r *Runner) execute(ctx context.Context, env *Env, scenario *Scenario, track *tracker) error {
	if err := r.provision(ctx, env); err != nil {
		return err
	}

	if err := r.enter(env, track, Position{Stage: StageTrustLinking}); err != nil {
		return err
	}
	if err := linkTrust(ctx, env, scenario.RequiresRelay); err != nil {
		return err
	}
	if scenario.Setup != nil {
		if err := scenario.Setup(ctx, env); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}

	for index, step := range scenario.Steps {
		number := index + 1
		stages := []struct {
			stage Stage
			run   func(context.Context, *Env) error
		}{
			{StageActing, step.Act},
			{StageAwaitingRealtime, step.Realtime},
			{StageAwaitingConvergence, step.Converge},
			{StageVerifyingRelay, step.Relay},
		}
		for _, current := range stages {
			if err := r.enter(env, track, Position{Step: number, Stage: current.stage}); err != nil {
				return err
			}
			if current.run == nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := current.run(ctx, env); err != nil {
				return fmt.Errorf("%s: %w", step.Name, err)
			}
		}
	}
	return track.advance(Position{Stage: StagePassed})
}

func (r *Runner) enter(env *Env, track *tracker, position Position) error {
	if err := track.advance(position); err != nil {
		return err
	}
	env.setPosition(position)
	return nil
}

// teardownTimeout bounds cleanup: two stop graces cover a TERM wait
// followed by a KILL wait, plus slack for sessions and stores.
func (r *Runner) teardownTimeout() time.Duration {
	return 2*r.Config.Timeouts.StopGrace.Std() + 10*time.Second
}

func (r *Runner) newEnv(runID string, timeSource clock.Clock, logger *slog.Logger) (*Env, error) {
	cfg := r.Config
	if cfg == nil {
		return nil, fmt.Errorf("scenario: Runner.Config is required")
	}
	graph, err := topology.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := relay.ParsePolicy(cfg.Relay.Policy)
	if err != nil {
		return nil, err
	}
	keepalive, err := gateway.ParseKeepaliveMode(cfg.Gateway.Keepalive)
	if err != nil {
		return nil, err
	}

	env := &Env{
		RunID:    runID,
		Config:   cfg,
		Topology: graph,
		Roles: Roles{
			Origin:      cfg.Scenario.Origin,
			Relay:       cfg.Scenario.Relay,
			Destination: cfg.Scenario.Destination,
		},
		Policy:    policy,
		clock:     timeSource,
		logger:    logger,
		keepalive: keepalive,
		clients:   make(map[string]*controlplane.Client),
		admins:    make(map[string]*controlplane.Session),
	}

	stores := make(map[string]string)
	for _, node := range graph.Nodes() {
		client, err := controlplane.New(controlplane.Config{
			BaseURL:        node.ControlURL,
			RequestTimeout: cfg.Timeouts.Request.Std(),
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("scenario: node %s: %w", node.Key, err)
		}
		env.clients[node.Key] = client
		stores[node.Key] = node.StorePath
	}
	env.Inspector = inspect.New(inspect.Config{Stores: stores, Logger: logger})
	return env, nil
}

// describeNodes renders "a=node-a.test, b=node-b.test" for logs.
func describeNodes(graph *topology.Topology) string {
	parts := make([]string, 0, len(graph.Nodes()))
	for _, node := range graph.Nodes() {
		parts = append(parts, node.Key+"="+node.ServerName)
	}
	return strings.Join(parts, ", ")
}
