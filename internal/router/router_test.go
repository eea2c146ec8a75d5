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

package router

import (
	"context"
	"testing"
	"time"

	"github.com/firefly-oss/chatraft/internal/apperrors"
	"github.com/firefly-oss/chatraft/internal/raft"
	"github.com/firefly-oss/chatraft/internal/session"
	"github.com/firefly-oss/chatraft/internal/statemachine"
	"github.com/firefly-oss/chatraft/internal/store"
)

// loopbackTransport mirrors the one in internal/raft's own tests: it
// dispatches directly to in-process Node handlers instead of opening
// real sockets, so a single-node "cluster" here elects itself leader
// almost instantly.
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

func newSingleNodeRouter(t *testing.T) *Router {
	t.Helper()
	trans := &loopbackTransport{nodes: make(map[string]*raft.Node)}

	dir := t.TempDir()
	st, err := store.Open(dir)
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
			t.Fatal("single node never became leader")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sessions := session.NewTable("n1")
	return New(node, machine, sessions)
}

func mustCreateAccount(t *testing.T, r *Router, username string) (uint32, session.Token) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	tok, err := r.CreateAccount(ctx, username, [32]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", username, err)
	}
	status, userID, err := r.GetUserByUsername(username)
	if err != nil || status != LookupFound {
		t.Fatalf("GetUserByUsername(%s) = %v,%v,%v", username, status, userID, err)
	}
	return userID, tok
}

func TestCreateAccountThenLogin(t *testing.T) {
	r := newSingleNodeRouter(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	tok, err := r.CreateAccount(ctx, "alice", [32]byte{9, 9, 9})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if tok == (session.Token{}) {
		t.Fatal("expected a non-zero token")
	}

	status, loginTok, _, err := r.Login("alice", [32]byte{9, 9, 9})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if status != LoginSuccess {
		t.Fatalf("expected LoginSuccess, got %v", status)
	}
	if loginTok == tok {
		t.Fatal("expected Login to mint a fresh token distinct from CreateAccount's")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	r := newSingleNodeRouter(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := r.CreateAccount(ctx, "bob", [32]byte{1}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	status, _, _, err := r.Login("bob", [32]byte{2})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if status != LoginFailure {
		t.Fatal("expected LoginFailure on mismatched password")
	}
}

func TestSendMessageAndDisplayConversation(t *testing.T) {
	r := newSingleNodeRouter(t)
	aliceID, aliceTok := mustCreateAccount(t, r, "alice")
	bobID, _ := mustCreateAccount(t, r, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.SendMessage(ctx, aliceID, aliceTok, bobID, "hello bob"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	entries, err := r.DisplayConversation(aliceID, aliceTok, bobID)
	if err != nil {
		t.Fatalf("DisplayConversation: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "hello bob" || !entries[0].SenderFlag {
		t.Fatalf("unexpected conversation contents: %+v", entries)
	}
}

func TestSessionValidationRejectsWrongToken(t *testing.T) {
	r := newSingleNodeRouter(t)
	aliceID, _ := mustCreateAccount(t, r, "alice")

	_, err := r.GetUnreadMessages(aliceID, session.Token{})
	if err == nil || apperrors.CategoryOf(err) != apperrors.CategoryUnauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestReadMessagesMarksUnread(t *testing.T) {
	r := newSingleNodeRouter(t)
	aliceID, aliceTok := mustCreateAccount(t, r, "alice")
	bobID, bobTok := mustCreateAccount(t, r, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.SendMessage(ctx, aliceID, aliceTok, bobID, "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	unread, err := r.GetUnreadMessages(bobID, bobTok)
	if err != nil {
		t.Fatalf("GetUnreadMessages: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread message, got %d", len(unread))
	}

	if err := r.ReadMessages(ctx, bobID, bobTok, 10); err != nil {
		t.Fatalf("ReadMessages: %v", err)
	}

	unread, err = r.GetUnreadMessages(bobID, bobTok)
	if err != nil {
		t.Fatalf("GetUnreadMessages after read: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected 0 unread messages after ReadMessages, got %d", len(unread))
	}
}

func TestListAccountsFiltersByWildcard(t *testing.T) {
	r := newSingleNodeRouter(t)
	aliceID, aliceTok := mustCreateAccount(t, r, "alice")
	mustCreateAccount(t, r, "albert")
	mustCreateAccount(t, r, "bob")

	names, err := r.ListAccounts(aliceID, aliceTok, "al*")
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 matches for al*, got %v", names)
	}
}

func TestDeleteAccountForgetsSession(t *testing.T) {
	r := newSingleNodeRouter(t)
	aliceID, aliceTok := mustCreateAccount(t, r, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.DeleteAccount(ctx, aliceID, aliceTok); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if _, err := r.GetUnreadMessages(aliceID, aliceTok); err == nil {
		t.Fatal("expected session to be forgotten after DeleteAccount")
	}
}
