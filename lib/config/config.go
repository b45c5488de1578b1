// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads.
const EnvVar = "FEDCHECK_CONFIG"

// Config is the complete harness configuration.
type Config struct {
	// RunDir holds node logs, signing keys, and transcripts.
	RunDir string `yaml:"run_dir"`

	// Password is used for every account the harness registers.
	Password string `yaml:"password"`

	Timeouts Timeouts      `yaml:"timeouts"`
	Gateway  GatewayConfig `yaml:"gateway"`
	Relay    RelayConfig   `yaml:"relay"`

	Nodes []NodeConfig `yaml:"nodes"`
	Trust []EdgeConfig `yaml:"trust"`

	Scenario ScenarioConfig `yaml:"scenario"`
}

// Timeouts bounds every wait the harness performs.
type Timeouts struct {
	Health       Duration `yaml:"health"`
	Realtime     Duration `yaml:"realtime"`
	Convergence  Duration `yaml:"convergence"`
	Handshake    Duration `yaml:"handshake"`
	Ready        Duration `yaml:"ready"`
	PollInterval Duration `yaml:"poll_interval"`
	StopGrace    Duration `yaml:"stop_grace"`
	Request      Duration `yaml:"request"`
}

// GatewayConfig configures realtime sessions.
type GatewayConfig struct {
	// Origin is sent as the Origin header on the websocket upgrade.
	Origin string `yaml:"origin"`

	// Keepalive is "piggyback" (heartbeats sent from Await) or
	// "background" (a ticker goroutine per session).
	Keepalive string `yaml:"keepalive"`

	// Transcripts enables per-session dispatch transcripts in RunDir.
	Transcripts bool `yaml:"transcripts"`
}

// RelayConfig selects how strictly relay routing is proven.
type RelayConfig struct {
	// Policy is "strict" or "reachability".
	Policy string `yaml:"policy"`
}

// NodeConfig describes one instance of the system under test.
type NodeConfig struct {
	Key            string `yaml:"key"`
	ServerName     string `yaml:"server_name"`
	ControlURL     string `yaml:"control_url"`
	GatewayURL     string `yaml:"gateway_url"`
	StorePath      string `yaml:"store_path"`
	SigningKeyPath string `yaml:"signing_key_path"`

	// Command starts the node. Empty means the node is already running
	// and the harness only attaches to it.
	Command []string          `yaml:"command"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
	LogPath string            `yaml:"log_path"`
}

// External reports whether the node is managed outside the harness.
func (n NodeConfig) External() bool { return len(n.Command) == 0 }

// EdgeConfig is one directed trust link: From trusts To.
type EdgeConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`

	// Discover defaults to true.
	Discover *bool `yaml:"discover,omitempty"`
}

// DiscoverEnabled resolves the Discover default.
func (e EdgeConfig) DiscoverEnabled() bool {
	return e.Discover == nil || *e.Discover
}

// ScenarioConfig names which scenario runs and which nodes play the
// origin, relay, and destination roles.
type ScenarioConfig struct {
	Name        string `yaml:"name"`
	Origin      string `yaml:"origin"`
	Relay       string `yaml:"relay"`
	Destination string `yaml:"destination"`
}

// Duration is a time.Duration written in YAML as "30s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"30s\"", value.Line)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes d as a duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the three-node relay chain with the harness's
// standard timeouts.
func Default() *Config {
	cfg := &Config{
		RunDir:   "./data/fed-e2e",
		Password: "Paracord!Federation!123",
		Timeouts: Timeouts{
			Health:       Duration(120 * time.Second),
			Realtime:     Duration(20 * time.Second),
			Convergence:  Duration(30 * time.Second),
			Handshake:    Duration(12 * time.Second),
			Ready:        Duration(25 * time.Second),
			PollInterval: Duration(400 * time.Millisecond),
			StopGrace:    Duration(5 * time.Second),
			Request:      Duration(20 * time.Second),
		},
		Gateway: GatewayConfig{
			Origin:    "http://localhost:1420",
			Keepalive: "piggyback",
		},
		Relay: RelayConfig{Policy: "strict"},
		Trust: []EdgeConfig{
			{From: "a", To: "b"},
			{From: "b", To: "a"},
			{From: "b", To: "c"},
			{From: "c", To: "b"},
			{From: "c", To: "a"},
		},
		Scenario: ScenarioConfig{
			Name:        "federation",
			Origin:      "a",
			Relay:       "b",
			Destination: "c",
		},
	}
	for index, key := range []string{"a", "b", "c"} {
		cfg.Nodes = append(cfg.Nodes, defaultNode(key, 18081+index))
	}
	return cfg
}

func defaultNode(key string, port int) NodeConfig {
	return NodeConfig{
		Key:            key,
		ServerName:     fmt.Sprintf("node-%s.test", key),
		ControlURL:     fmt.Sprintf("http://127.0.0.1:%d", port),
		GatewayURL:     fmt.Sprintf("ws://127.0.0.1:%d/gateway", port),
		StorePath:      "${RUN_DIR}/${NODE}/paracord.db",
		SigningKeyPath: "${RUN_DIR}/keys/${NODE}.hex",
		LogPath:        "${RUN_DIR}/logs/${NODE}.log",
	}
}

// Load reads the file named by FEDCHECK_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a fedcheck.yaml file, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile reads path and parses it with Parse.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and expands variables. yaml.v3
// replaces sequences rather than merging them, so a nodes or trust list
// in the file supersedes the default list.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.RunDir = filepath.Clean(expandVars(c.RunDir, vars))
	vars["RUN_DIR"] = c.RunDir

	for index := range c.Nodes {
		node := &c.Nodes[index]
		vars["NODE"] = node.Key
		node.ControlURL = expandVars(node.ControlURL, vars)
		node.GatewayURL = expandVars(node.GatewayURL, vars)
		node.StorePath = expandVars(node.StorePath, vars)
		node.SigningKeyPath = expandVars(node.SigningKeyPath, vars)
		node.LogPath = expandVars(node.LogPath, vars)
		node.Dir = expandVars(node.Dir, vars)
		for argIndex, arg := range node.Command {
			node.Command[argIndex] = expandVars(arg, vars)
		}
		for name, value := range node.Env {
			node.Env[name] = expandVars(value, vars)
		}
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default}, consulting vars
// before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return parts[2]
	})
}

// Node returns the node with the given key.
func (c *Config) Node(key string) (NodeConfig, bool) {
	for _, node := range c.Nodes {
		if node.Key == key {
			return node, true
		}
	}
	return NodeConfig{}, false
}

// Validate checks the configuration and joins every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.RunDir == "" {
		errs = append(errs, errors.New("run_dir is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}

	timeouts := map[string]Duration{
		"health":        c.Timeouts.Health,
		"realtime":      c.Timeouts.Realtime,
		"convergence":   c.Timeouts.Convergence,
		"handshake":     c.Timeouts.Handshake,
		"ready":         c.Timeouts.Ready,
		"poll_interval": c.Timeouts.PollInterval,
		"stop_grace":    c.Timeouts.StopGrace,
		"request":       c.Timeouts.Request,
	}
	for _, name := range slices.Sorted(maps.Keys(timeouts)) {
		if timeouts[name] <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must be positive", name))
		}
	}

	if c.Gateway.Keepalive != "piggyback" && c.Gateway.Keepalive != "background" {
		errs = append(errs, fmt.Errorf("gateway.keepalive must be piggyback or background, got %q", c.Gateway.Keepalive))
	}
	if c.Relay.Policy != "strict" && c.Relay.Policy != "reachability" {
		errs = append(errs, fmt.Errorf("relay.policy must be strict or reachability, got %q", c.Relay.Policy))
	}

	keys := make(map[string]bool)
	serverNames := make(map[string]bool)
	if len(c.Nodes) == 0 {
		errs = append(errs, errors.New("at least one node is required"))
	}
	for index, node := range c.Nodes {
		where := fmt.Sprintf("nodes[%d]", index)
		if node.Key == "" {
			errs = append(errs, fmt.Errorf("%s.key is required", where))
		} else if keys[node.Key] {
			errs = append(errs, fmt.Errorf("%s.key %q is duplicated", where, node.Key))
		}
		keys[node.Key] = true
		if node.ServerName == "" {
			errs = append(errs, fmt.Errorf("%s.server_name is required", where))
		} else if serverNames[node.ServerName] {
			errs = append(errs, fmt.Errorf("%s.server_name %q is duplicated", where, node.ServerName))
		}
		serverNames[node.ServerName] = true
		if node.ControlURL == "" {
			errs = append(errs, fmt.Errorf("%s.control_url is required", where))
		}
		if node.GatewayURL == "" {
			errs = append(errs, fmt.Errorf("%s.gateway_url is required", where))
		}
		if node.StorePath == "" {
			errs = append(errs, fmt.Errorf("%s.store_path is required", where))
		}
	}

	for index, edge := range c.Trust {
		where := fmt.Sprintf("trust[%d]", index)
		if !keys[edge.From] {
			errs = append(errs, fmt.Errorf("%s.from %q is not a node", where, edge.From))
		}
		if !keys[edge.To] {
			errs = append(errs, fmt.Errorf("%s.to %q is not a node", where, edge.To))
		}
		if edge.From == edge.To {
			errs = append(errs, fmt.Errorf("%s is a self-edge on %q", where, edge.From))
		}
	}

	roles := []struct{ name, key string }{
		{"origin", c.Scenario.Origin},
		{"relay", c.Scenario.Relay},
		{"destination", c.Scenario.Destination},
	}
	for _, role := range roles {
		if !keys[role.key] {
			errs = append(errs, fmt.Errorf("scenario.%s %q is not a node", role.name, role.key))
		}
	}

	return errors.Join(errs...)
}
