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

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultNodeConfig(t *testing.T) {
	cfg := DefaultNodeConfig()

	if cfg.HeartbeatInterval != 50*time.Millisecond {
		t.Errorf("expected default heartbeat 50ms, got %s", cfg.HeartbeatInterval)
	}
	if cfg.ElectionTimeoutMin != 150*time.Millisecond {
		t.Errorf("expected default election min 150ms, got %s", cfg.ElectionTimeoutMin)
	}
	if cfg.ElectionTimeoutMax != 300*time.Millisecond {
		t.Errorf("expected default election max 300ms, got %s", cfg.ElectionTimeoutMax)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.LogLevel)
	}
}

func TestNodeConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NodeConfig)
		wantErr bool
	}{
		{"valid defaults plus id", func(c *NodeConfig) { c.NodeID = "n1" }, false},
		{"missing node id", func(c *NodeConfig) {}, true},
		{"missing listen addr", func(c *NodeConfig) { c.NodeID = "n1"; c.ListenAddr = "" }, true},
		{"heartbeat too close to election min", func(c *NodeConfig) {
			c.NodeID = "n1"
			c.HeartbeatInterval = 100 * time.Millisecond
		}, true},
		{"election min after max", func(c *NodeConfig) {
			c.NodeID = "n1"
			c.ElectionTimeoutMin = 400 * time.Millisecond
		}, true},
		{"bad log level", func(c *NodeConfig) {
			c.NodeID = "n1"
			c.LogLevel = "verbose"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultNodeConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadClusterConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "cluster.json")
	body := map[string]string{
		"n1": "127.0.0.1:9091",
		"n2": "127.0.0.1:9092",
		"n3": "127.0.0.1:9093",
	}
	raw, _ := json.Marshal(body)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write cluster config: %v", err)
	}

	cc, err := LoadClusterConfig(path)
	if err != nil {
		t.Fatalf("LoadClusterConfig: %v", err)
	}
	if len(cc) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(cc))
	}
	if cc["n2"] != "127.0.0.1:9092" {
		t.Errorf("expected n2 addr 127.0.0.1:9092, got %s", cc["n2"])
	}

	peers := cc.Peers("n1")
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers excluding self, got %d", len(peers))
	}
	for _, p := range peers {
		if p == "n1" {
			t.Error("Peers() should not include self")
		}
	}
}

func TestManagerLoadFromFileAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "node.json")
	raw, _ := json.Marshal(&NodeConfig{
		NodeID:             "n1",
		ListenAddr:         ":9091",
		DataDir:            tmpDir,
		LogLevel:           "warn",
		ElectionTimeoutMin: 150 * time.Millisecond,
		ElectionTimeoutMax: 300 * time.Millisecond,
		HeartbeatInterval:  50 * time.Millisecond,
	})
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write node config: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if mgr.Get().LogLevel != "warn" {
		t.Errorf("expected log level 'warn', got %q", mgr.Get().LogLevel)
	}

	t.Setenv(EnvLogLevel, "debug")
	mgr.LoadFromEnv()
	if mgr.Get().LogLevel != "debug" {
		t.Errorf("expected env override log level 'debug', got %q", mgr.Get().LogLevel)
	}
}

func TestManagerReload(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "node.json")
	write := func(level string) {
		raw, _ := json.Marshal(&NodeConfig{
			NodeID:             "n1",
			ListenAddr:         ":9091",
			DataDir:            tmpDir,
			LogLevel:           level,
			ElectionTimeoutMin: 150 * time.Millisecond,
			ElectionTimeoutMax: 300 * time.Millisecond,
			HeartbeatInterval:  50 * time.Millisecond,
		})
		if err := os.WriteFile(path, raw, 0644); err != nil {
			t.Fatalf("write node config: %v", err)
		}
	}
	write("info")

	mgr := NewManager()
	if err := mgr.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	reloaded := false
	mgr.OnReload(func(c *NodeConfig) { reloaded = true })

	write("error")
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !reloaded {
		t.Error("OnReload callback was not invoked")
	}
	if mgr.Get().LogLevel != "error" {
		t.Errorf("expected reloaded log level 'error', got %q", mgr.Get().LogLevel)
	}
}

func TestGlobalManagerSingleton(t *testing.T) {
	m1 := Global()
	m2 := Global()
	if m1 != m2 {
		t.Error("Global() returned different instances")
	}
}
