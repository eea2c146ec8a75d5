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

package clientapi

import (
	"context"
	"testing"
	"time"

	"github.com/firefly-oss/chatraft/internal/raft"
	"github.com/firefly-oss/chatraft/internal/router"
	"github.com/firefly-oss/chatraft/internal/session"
	"github.com/firefly-oss/chatraft/internal/statemachine"
	"github.com/firefly-oss/chatraft/internal/store"
)

type loopbackTransport struct {
	nodes map[string]*raft.Node
}

func (t *loopbackTransport) SendRequestVote(ctx context.Context, addr string, args raft.RequestVoteArgs) (raft.RequestVoteReply, error) {
	n, ok := t.nodes[addr]
	if !ok {
		return raft.RequestVoteReply{}, context.DeadlineExceeded
	}
	return n.HandleRequestVote(args), nil
}

func (t *loopbackTransport) SendAppendEntries(ctx context.Context, addr string, args raft.AppendEntriesArgs) (raft.AppendEntriesReply, error) {
	n, ok := t.nodes[addr]
	if !ok {
		return raft.AppendEntriesReply{}, context.DeadlineExceeded
	}
	return n.HandleAppendEntries(args), nil
}

func startTestServer(t *testing.T) string {
	t.Helper()
	trans := &loopbackTransport{nodes: make(map[string]*raft.Node)}

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	machine := statemachine.NewMachine()
	node, err := raft.New(raft.Config{
		NodeID:             "n1",
		Peers:              map[string]string{},
		ElectionTimeoutMin: 20 * time.Millisecond,
		ElectionTimeoutMax: 40 * time.Millisecond,
		HeartbeatInterval:  10 * time.Millisecond,
	}, st, machine, trans)
	if err != nil {
		t.Fatalf("raft.New: %v", err)
	}
	trans.nodes["n1"] = node
	node.Start()
	t.Cleanup(node.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for !node.IsLeader() {
		if time.Now().After(deadline) {
			t.Fatal("node never became leader")
		}
		time.Sleep(5 * time.Millisecond)
	}

	r := router.New(node, machine, session.NewTable("n1"))
	srv, err := Listen("127.0.0.1:0", r)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })

	return srv.listener.Addr().String()
}

func TestClientCreateAccountAndLogin(t *testing.T) {
	addr := startTestServer(t)
	c := NewClient(addr, time.Second)

	var createResp struct {
		Token session.Token `json:"token"`
	}
	err := c.Call("CreateAccount", struct {
		Username     string   `json:"username"`
		PasswordHash [32]byte `json:"password_hash"`
	}{"alice", [32]byte{1, 2, 3}}, &createResp)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if createResp.Token == (session.Token{}) {
		t.Fatal("expected non-zero token")
	}

	var loginResp struct {
		Success bool          `json:"success"`
		Token   session.Token `json:"token"`
		Unread  uint32        `json:"unread_count"`
	}
	err = c.Call("Login", struct {
		Username     string   `json:"username"`
		PasswordHash [32]byte `json:"password_hash"`
	}{"alice", [32]byte{1, 2, 3}}, &loginResp)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !loginResp.Success {
		t.Fatal("expected login success")
	}
}

func TestClientUnknownMethod(t *testing.T) {
	addr := startTestServer(t)
	c := NewClient(addr, time.Second)

	err := c.Call("NotAMethod", struct{}{}, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown method")
	}
}
