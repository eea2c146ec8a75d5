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
Package discovery advertises and finds chatraft nodes on the local
network over mDNS, for dev clusters that don't want to hand-maintain a
peer list. It is entirely optional: a cluster started with an explicit
peer map in its config never touches this package.
*/
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceName = "_chatraft._tcp"

// Config controls whether this node advertises itself and what it
// advertises.
type Config struct {
	NodeID   string
	RaftAddr string // host:port this node's raft transport listens on
	Enabled  bool
}

// DiscoveredNode is one entry returned by Discover.
type DiscoveredNode struct {
	NodeID   string
	RaftAddr string
}

// Service advertises this node over mDNS while Advertise is running, and
// can independently be used purely to discover others.
type Service struct {
	cfg    Config
	server *mdns.Server
}

// New returns a discovery Service for cfg. Call Advertise to start
// broadcasting if cfg.Enabled; Discover works regardless.
func New(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// Advertise starts broadcasting this node's presence until Shutdown is
// called. It is a no-op if cfg.Enabled is false.
func (s *Service) Advertise() error {
	if !s.cfg.Enabled {
		return nil
	}

	host, portStr, err := net.SplitHostPort(s.cfg.RaftAddr)
	if err != nil {
		return fmt.Errorf("discovery: parse raft addr %q: %w", s.cfg.RaftAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("discovery: parse raft port %q: %w", portStr, err)
	}

	ips, err := resolveIPs(host)
	if err != nil {
		return fmt.Errorf("discovery: resolve host %q: %w", host, err)
	}

	info := []string{"node_id=" + s.cfg.NodeID}
	mdnsService, err := mdns.NewMDNSService(s.cfg.NodeID, serviceName, "", "", port, ips, info)
	if err != nil {
		return fmt.Errorf("discovery: build mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: mdnsService})
	if err != nil {
		return fmt.Errorf("discovery: start mdns server: %w", err)
	}
	s.server = server
	return nil
}

// Shutdown stops advertising, if it was started.
func (s *Service) Shutdown() error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown()
}

// Discover queries the local network for other chatraft nodes and
// returns whatever answers within timeout. It never returns an error
// purely for "found nothing" - an empty slice is a normal outcome.
func Discover(timeout time.Duration) ([]DiscoveredNode, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []DiscoveredNode
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range entries {
			found = append(found, DiscoveredNode{
				NodeID:   nodeIDFromInfo(e.InfoFields),
				RaftAddr: net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)),
			})
		}
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service: serviceName,
		Timeout: timeout,
		Entries: entries,
	})
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("discovery: query: %w", err)
	}
	return found, nil
}

func nodeIDFromInfo(fields []string) string {
	const prefix = "node_id="
	for _, f := range fields {
		if len(f) > len(prefix) && f[:len(prefix)] == prefix {
			return f[len(prefix):]
		}
	}
	return ""
}

func resolveIPs(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	return net.LookupIP(host)
}
