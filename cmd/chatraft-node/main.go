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
chatraft-node runs a single replica: it loads its node and cluster
configuration, opens its durable log, starts the Raft core and the two
TCP listeners (peer RPC and client API), and serves until signaled to
stop.

Usage:

	chatraft-node -node-id n1 -cluster cluster.json -config node.json
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/firefly-oss/chatraft/internal/clientapi"
	"github.com/firefly-oss/chatraft/internal/config"
	"github.com/firefly-oss/chatraft/internal/discovery"
	"github.com/firefly-oss/chatraft/internal/logging"
	"github.com/firefly-oss/chatraft/internal/raft"
	"github.com/firefly-oss/chatraft/internal/router"
	"github.com/firefly-oss/chatraft/internal/session"
	"github.com/firefly-oss/chatraft/internal/statemachine"
	"github.com/firefly-oss/chatraft/internal/store"
)

func main() {
	nodeID := flag.String("node-id", "", "this node's id (overrides config/env)")
	clusterPath := flag.String("cluster", "", "path to the cluster config file (node_id -> host:port)")
	configPath := flag.String("config", "", "path to this node's JSON config file")
	clientAddr := flag.String("client-addr", ":9191", "address the client API listens on")
	discoverEnabled := flag.Bool("discover", false, "advertise this node over mDNS")

	flag.Parse()

	if err := run(*nodeID, *clusterPath, *configPath, *clientAddr, *discoverEnabled); err != nil {
		fmt.Fprintf(os.Stderr, "chatraft-node: %v\n", err)
		os.Exit(1)
	}
}

func run(nodeID, clusterPath, configPath, clientAddr string, discoverEnabled bool) error {
	mgr := config.Global()
	if configPath != "" {
		if err := mgr.LoadFromFile(configPath); err != nil {
			return fmt.Errorf("load node config: %w", err)
		}
	}
	mgr.LoadFromEnv()
	cfg := mgr.Get()
	if nodeID != "" {
		cfg.NodeID = nodeID
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid node config: %w", err)
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	log := logging.NewLogger("main").With("node_id", cfg.NodeID)

	cluster, err := config.LoadClusterConfig(clusterPath)
	if err != nil {
		return fmt.Errorf("load cluster config: %w", err)
	}
	peers := make(map[string]string)
	for id, addr := range cluster {
		if id != cfg.NodeID {
			peers[id] = addr
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(filepath.Join(cfg.DataDir, cfg.NodeID))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	machine := statemachine.NewMachine()
	trans := raft.NewTCPTransport(500 * time.Millisecond)

	node, err := raft.New(raft.Config{
		NodeID:             cfg.NodeID,
		Peers:              peers,
		ElectionTimeoutMin: cfg.ElectionTimeoutMin,
		ElectionTimeoutMax: cfg.ElectionTimeoutMax,
		HeartbeatInterval:  cfg.HeartbeatInterval,
	}, st, machine, trans)
	if err != nil {
		return fmt.Errorf("init raft node: %w", err)
	}

	raftServer, err := raft.Listen(cfg.ListenAddr, node)
	if err != nil {
		return fmt.Errorf("listen for peers: %w", err)
	}
	defer raftServer.Close()
	go func() {
		if err := raftServer.Serve(); err != nil {
			log.Warn("raft listener stopped", "error", err.Error())
		}
	}()

	sessions := session.NewTable(cfg.NodeID)
	r := router.New(node, machine, sessions)

	clientServer, err := clientapi.Listen(clientAddr, r)
	if err != nil {
		return fmt.Errorf("listen for clients: %w", err)
	}
	defer clientServer.Close()
	go func() {
		if err := clientServer.Serve(); err != nil {
			log.Warn("client listener stopped", "error", err.Error())
		}
	}()

	disco := discovery.New(discovery.Config{NodeID: cfg.NodeID, RaftAddr: cfg.ListenAddr, Enabled: discoverEnabled})
	if err := disco.Advertise(); err != nil {
		log.Warn("mdns advertise failed", "error", err.Error())
	}
	defer disco.Shutdown()

	node.Start()
	defer node.Stop()

	log.Info("node started", "listen_addr", cfg.ListenAddr, "client_addr", clientAddr, "peers", fmt.Sprintf("%d", len(peers)))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	return nil
}
