/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config holds the two configuration shapes a chatraft node needs:

  - ClusterConfig: the static `node_id -> "host:port"` map every replica
    loads once at startup (spec section 6, "Cluster config file"). This is
    the one piece of the external launcher the core still has to parse,
    since nothing else in the process can supply it.
  - NodeConfig: this node's own identity, data directory, listen address,
    and the tunable Raft timing constants (election timeout bounds,
    heartbeat interval, client proposal timeout), with defaults matching
    spec section 4.1 (150-300ms election, 50ms heartbeat).

A small Manager wraps NodeConfig with environment-variable overrides and
an optional reload hook, in the manner the teacher's configuration layer
used for its own (differently shaped) per-process settings.
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ClusterConfig is the static membership map loaded from the cluster
// config file: node_id -> "host:port".
type ClusterConfig map[string]string

// LoadClusterConfig reads a JSON object mapping node ids to addresses.
func LoadClusterConfig(path string) (ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cluster config: %w", err)
	}
	var cc ClusterConfig
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("parse cluster config: %w", err)
	}
	return cc, nil
}

// Peers returns every node id in the cluster other than self.
func (c ClusterConfig) Peers(self string) []string {
	peers := make([]string, 0, len(c))
	for id := range c {
		if id != self {
			peers = append(peers, id)
		}
	}
	return peers
}

// NodeConfig is this node's own runtime configuration.
type NodeConfig struct {
	NodeID        string        `json:"node_id"`
	ListenAddr    string        `json:"listen_addr"`
	DataDir       string        `json:"data_dir"`
	LogLevel      string        `json:"log_level"`
	LogJSON       bool          `json:"log_json"`

	ElectionTimeoutMin time.Duration `json:"election_timeout_min"`
	ElectionTimeoutMax time.Duration `json:"election_timeout_max"`
	HeartbeatInterval  time.Duration `json:"heartbeat_interval"`
	ProposalTimeout    time.Duration `json:"proposal_timeout"`

	ConfigFile string `json:"-"`
}

// DefaultNodeConfig returns the spec's default timing: a 150-300ms
// randomized election window with a 50ms heartbeat, satisfying
// heartbeat < election_min/2.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		ListenAddr:         ":9090",
		DataDir:            "./data",
		LogLevel:           "info",
		LogJSON:            false,
		ElectionTimeoutMin: 150 * time.Millisecond,
		ElectionTimeoutMax: 300 * time.Millisecond,
		HeartbeatInterval:  50 * time.Millisecond,
		ProposalTimeout:    2 * time.Second,
	}
}

// Validate enforces the invariants the spec requires of node timing.
func (c *NodeConfig) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.ElectionTimeoutMin <= 0 || c.ElectionTimeoutMax <= 0 {
		return fmt.Errorf("election timeout bounds must be positive")
	}
	if c.ElectionTimeoutMin > c.ElectionTimeoutMax {
		return fmt.Errorf("election_timeout_min must be <= election_timeout_max")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.HeartbeatInterval*2 >= c.ElectionTimeoutMin {
		return fmt.Errorf("heartbeat_interval must be less than half of election_timeout_min")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	return nil
}

// String renders a human-readable summary, in the manner of the
// teacher's own Config.String().
func (c *NodeConfig) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "NodeID: %s\n", c.NodeID)
	fmt.Fprintf(&b, "ListenAddr: %s\n", c.ListenAddr)
	fmt.Fprintf(&b, "DataDir: %s\n", c.DataDir)
	fmt.Fprintf(&b, "ElectionTimeout: [%s, %s]\n", c.ElectionTimeoutMin, c.ElectionTimeoutMax)
	fmt.Fprintf(&b, "HeartbeatInterval: %s\n", c.HeartbeatInterval)
	fmt.Fprintf(&b, "LogLevel: %s\n", c.LogLevel)
	return b.String()
}

// Environment variable names recognized by Manager.LoadFromEnv.
const (
	EnvNodeID        = "CHATRAFT_NODE_ID"
	EnvListenAddr    = "CHATRAFT_LISTEN_ADDR"
	EnvDataDir       = "CHATRAFT_DATA_DIR"
	EnvLogLevel      = "CHATRAFT_LOG_LEVEL"
	EnvLogJSON       = "CHATRAFT_LOG_JSON"
)

// Manager owns a NodeConfig and layers environment overrides over a
// file-loaded base, notifying subscribers on Reload.
type Manager struct {
	mu       sync.RWMutex
	cfg      *NodeConfig
	onReload []func(*NodeConfig)
}

// NewManager returns a Manager seeded with DefaultNodeConfig.
func NewManager() *Manager {
	return &Manager{cfg: DefaultNodeConfig()}
}

// LoadFromFile loads JSON node configuration from path, layering it over
// whatever defaults or prior state the Manager already holds.
func (m *Manager) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read node config: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := DefaultNodeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse node config: %w", err)
	}
	cfg.ConfigFile = path
	m.cfg = cfg
	return nil
}

// LoadFromEnv overlays environment variables onto the current config.
func (m *Manager) LoadFromEnv() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v := os.Getenv(EnvNodeID); v != "" {
		m.cfg.NodeID = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		m.cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		m.cfg.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		m.cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m.cfg.LogJSON = b
		}
	}
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() *NodeConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.cfg
	return &cfg
}

// OnReload registers a callback invoked after Reload successfully
// replaces the configuration.
func (m *Manager) OnReload(fn func(*NodeConfig)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

// Reload re-reads the file this Manager was loaded from, if any, and
// fires any registered OnReload callbacks.
func (m *Manager) Reload() error {
	m.mu.RLock()
	path := m.cfg.ConfigFile
	m.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("manager was not loaded from a file")
	}
	if err := m.LoadFromFile(path); err != nil {
		return err
	}
	cfg := m.Get()
	m.mu.RLock()
	callbacks := append([]func(*NodeConfig){}, m.onReload...)
	m.mu.RUnlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

var (
	globalOnce sync.Once
	globalMgr  *Manager
)

// Global returns the process-wide Manager singleton.
func Global() *Manager {
	globalOnce.Do(func() {
		globalMgr = NewManager()
	})
	return globalMgr
}
