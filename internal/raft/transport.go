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

package raft

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/netutil"

	"github.com/firefly-oss/chatraft/internal/logging"
	"github.com/firefly-oss/chatraft/internal/wire"
)

// maxPeerConns bounds how many simultaneous inbound peer connections a
// node's Raft listener will service, so a misbehaving or overzealous
// peer can't exhaust file descriptors on a small cluster member.
const maxPeerConns = 64

// TCPTransport is the Transport implementation used in production: it
// dials peers directly and frames RPCs with internal/wire.
type TCPTransport struct {
	dialTimeout time.Duration
	log         *logging.Logger
}

// NewTCPTransport returns a Transport that dials peers with the given
// dial timeout; the rest of each call is bounded by the caller's context.
func NewTCPTransport(dialTimeout time.Duration) *TCPTransport {
	return &TCPTransport{dialTimeout: dialTimeout, log: logging.NewLogger("raft-transport")}
}

func (t *TCPTransport) call(ctx context.Context, addr string, msgType wire.MessageType, req, resp interface{}) error {
	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("raft transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("raft transport: encode request: %w", err)
	}
	if err := wire.WriteMessage(conn, msgType, payload); err != nil {
		return fmt.Errorf("raft transport: write request: %w", err)
	}

	msg, err := wire.ReadMessage(conn)
	if err != nil {
		return fmt.Errorf("raft transport: read response: %w", err)
	}
	if err := json.Unmarshal(msg.Payload, resp); err != nil {
		return fmt.Errorf("raft transport: decode response: %w", err)
	}
	return nil
}

func (t *TCPTransport) SendRequestVote(ctx context.Context, addr string, args RequestVoteArgs) (RequestVoteReply, error) {
	var reply RequestVoteReply
	err := t.call(ctx, addr, wire.MsgRequestVote, args, &reply)
	return reply, err
}

func (t *TCPTransport) SendAppendEntries(ctx context.Context, addr string, args AppendEntriesArgs) (AppendEntriesReply, error) {
	var reply AppendEntriesReply
	err := t.call(ctx, addr, wire.MsgAppendEntries, args, &reply)
	return reply, err
}

// Server accepts inbound peer connections and dispatches each frame to
// the owning Node's RPC handlers.
type Server struct {
	node     *Node
	listener net.Listener
	log      *logging.Logger
}

// Listen binds addr and wraps the listener with netutil.LimitListener so
// a burst of peer reconnects can't exceed maxPeerConns concurrently
// accepted connections.
func Listen(addr string, node *Node) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("raft: listen %s: %w", addr, err)
	}
	return &Server{
		node:     node,
		listener: netutil.LimitListener(ln, maxPeerConns),
		log:      logging.NewLogger("raft-server"),
	}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new peer connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	msg, err := wire.ReadMessage(conn)
	if err != nil {
		return
	}

	switch msg.Header.Type {
	case wire.MsgRequestVote:
		var args RequestVoteArgs
		if err := json.Unmarshal(msg.Payload, &args); err != nil {
			return
		}
		reply := s.node.HandleRequestVote(args)
		s.respond(conn, wire.MsgRequestVoteResp, reply)
	case wire.MsgAppendEntries:
		var args AppendEntriesArgs
		if err := json.Unmarshal(msg.Payload, &args); err != nil {
			return
		}
		reply := s.node.HandleAppendEntries(args)
		s.respond(conn, wire.MsgAppendEntriesResp, reply)
	default:
		s.log.Warn("unrecognized raft rpc type", "type", fmt.Sprintf("%d", msg.Header.Type))
	}
}

func (s *Server) respond(conn net.Conn, msgType wire.MessageType, reply interface{}) {
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	_ = wire.WriteMessage(conn, msgType, payload)
}
