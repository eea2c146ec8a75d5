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
Package raft implements single-leader, majority-quorum Raft consensus
over the chatraft state machine.

State Machine:

Each node is in one of three roles:
  - Follower: passive, resets its election timer whenever it hears from
    a current leader or grants a vote.
  - Candidate: campaigning for votes in a term it started itself.
  - Leader: the only role allowed to accept client proposals; replicates
    its log to every follower and advances commitIndex once a majority
    has durably stored an entry from its own term.

Term-Based Leadership:

Time is divided into terms, monotonically increasing integers. Every
term has at most one leader. A node that observes a higher term in any
RPC immediately reverts to follower and adopts that term.

Log Matching and Leader Completeness:

AppendEntries carries the (index, term) of the entry immediately before
the new ones; a follower rejects the batch unless its own log agrees at
that position, which is what prevents divergent logs from ever being
considered "caught up". Only entries replicated from a leader's own
current term are counted toward advancing commitIndex, which is what
prevents a leader from committing (and then losing) an entry a stale
majority merely stored in a previous term.
*/
package raft

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/firefly-oss/chatraft/internal/apperrors"
	"github.com/firefly-oss/chatraft/internal/logging"
	"github.com/firefly-oss/chatraft/internal/statemachine"
	"github.com/firefly-oss/chatraft/internal/store"
)

// Role is the node's current position in the Raft state machine.
type Role int32

const (
	RoleFollower Role = iota
	RoleCandidate
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "FOLLOWER"
	case RoleCandidate:
		return "CANDIDATE"
	case RoleLeader:
		return "LEADER"
	default:
		return "UNKNOWN"
	}
}

// Config is a node's static Raft configuration.
type Config struct {
	NodeID string
	// Peers maps every OTHER node's id to its dial address.
	Peers map[string]string

	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration
	HeartbeatInterval  time.Duration
}

// Transport is how a Node talks to its peers. Node never dials or
// listens directly; Transport is implemented over internal/wire in
// transport.go so the consensus logic stays free of socket code.
type Transport interface {
	SendRequestVote(ctx context.Context, peerAddr string, args RequestVoteArgs) (RequestVoteReply, error)
	SendAppendEntries(ctx context.Context, peerAddr string, args AppendEntriesArgs) (AppendEntriesReply, error)
}

// RequestVoteArgs is the RequestVote RPC request.
type RequestVoteArgs struct {
	Term         uint64 `json:"term"`
	CandidateID  string `json:"candidate_id"`
	LastLogIndex uint64 `json:"last_log_index"`
	LastLogTerm  uint64 `json:"last_log_term"`
}

// RequestVoteReply is the RequestVote RPC response.
type RequestVoteReply struct {
	Term        uint64 `json:"term"`
	VoteGranted bool   `json:"vote_granted"`
}

// AppendEntriesArgs is the AppendEntries RPC request (also used as the
// empty-Entries heartbeat).
type AppendEntriesArgs struct {
	Term         uint64            `json:"term"`
	LeaderID     string            `json:"leader_id"`
	PrevLogIndex uint64            `json:"prev_log_index"`
	PrevLogTerm  uint64            `json:"prev_log_term"`
	Entries      []store.LogEntry  `json:"entries"`
	LeaderCommit uint64            `json:"leader_commit"`
}

// AppendEntriesReply is the AppendEntries RPC response. ConflictIndex
// lets the leader skip straight to the first index that could possibly
// match, rather than backing off one entry at a time.
type AppendEntriesReply struct {
	Term          uint64 `json:"term"`
	Success       bool   `json:"success"`
	ConflictIndex uint64 `json:"conflict_index"`
	ConflictTerm  uint64 `json:"conflict_term"`
}

// pendingProposal is a Propose() call waiting for its log entry to be
// committed and applied.
type pendingProposal struct {
	done chan statemachine.Reply
}

// Node is one member of a Raft cluster wired to a durable Store and a
// deterministic Machine.
type Node struct {
	cfg     Config
	store   store.Store
	machine *statemachine.Machine
	trans   Transport
	log     *logging.Logger

	mu          sync.Mutex
	role        Role
	currentTerm uint64
	votedFor    string
	commitIndex uint64
	lastApplied uint64
	leaderID    string

	nextIndex  map[string]uint64
	matchIndex map[string]uint64

	resetElection chan struct{}
	stopCh        chan struct{}
	applyWake     chan struct{}
	wg            sync.WaitGroup

	pending map[uint64]*pendingProposal
	sf      singleflight.Group
}

// New constructs a Node in the Follower role. Start must be called to
// begin timers and RPC processing.
func New(cfg Config, st store.Store, machine *statemachine.Machine, trans Transport) (*Node, error) {
	meta, err := st.LoadMeta()
	if err != nil {
		return nil, fmt.Errorf("raft: load meta: %w", err)
	}

	n := &Node{
		cfg:           cfg,
		store:         st,
		machine:       machine,
		trans:         trans,
		log:           logging.NewLogger("raft").With("node_id", cfg.NodeID),
		role:          RoleFollower,
		currentTerm:   meta.CurrentTerm,
		votedFor:      meta.VotedFor,
		nextIndex:     make(map[string]uint64),
		matchIndex:    make(map[string]uint64),
		resetElection: make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		applyWake:     make(chan struct{}, 1),
		pending:       make(map[uint64]*pendingProposal),
	}
	return n, nil
}

// Start begins the election timer and apply loop. It does not block.
func (n *Node) Start() {
	n.wg.Add(2)
	go n.runElectionTimer()
	go n.runApplyLoop()
}

// Stop halts all background goroutines and waits for them to exit.
func (n *Node) Stop() {
	close(n.stopCh)
	n.wg.Wait()
}

// IsLeader reports whether this node currently believes it is leader.
func (n *Node) IsLeader() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role == RoleLeader
}

// Leader returns the node id this node currently believes is leader,
// and whether it has one at all.
func (n *Node) Leader() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.leaderID, n.leaderID != ""
}

// Term returns the node's current term.
func (n *Node) Term() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTerm
}

// RoleNow returns the node's current role.
func (n *Node) RoleNow() Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role
}

func (n *Node) randomElectionTimeout() time.Duration {
	span := n.cfg.ElectionTimeoutMax - n.cfg.ElectionTimeoutMin
	if span <= 0 {
		return n.cfg.ElectionTimeoutMin
	}
	return n.cfg.ElectionTimeoutMin + time.Duration(rand.Int63n(int64(span)))
}

func (n *Node) resetElectionTimer() {
	select {
	case n.resetElection <- struct{}{}:
	default:
	}
}

// becomeFollower transitions to Follower for term, recording leaderID if
// known. Caller must hold n.mu.
func (n *Node) becomeFollower(term uint64, leaderID string) {
	if term > n.currentTerm {
		n.votedFor = ""
	}
	n.currentTerm = term
	n.role = RoleFollower
	n.leaderID = leaderID
	n.persistMeta()
}

// persistMeta writes currentTerm/votedFor to the store. Caller must hold
// n.mu. Errors are logged, not returned: meta is best-effort durability
// on top of the log itself, and every caller of persistMeta is already
// deep inside a lock-held RPC handler with no good way to propagate it.
func (n *Node) persistMeta() {
	if err := n.store.SaveMeta(store.Meta{CurrentTerm: n.currentTerm, VotedFor: n.votedFor}); err != nil {
		n.log.Error("failed to persist meta", "error", err.Error())
	}
}

// lastLogIndexAndTerm returns the (index, term) of the last entry in the
// durable log. Caller must hold n.mu.
func (n *Node) lastLogIndexAndTerm() (uint64, uint64) {
	return n.store.LastIndex(), n.store.LastTerm()
}

// majorityIndex returns the highest index durably replicated to a
// majority of the cluster (including this leader). Caller must hold n.mu.
func (n *Node) majorityIndex() uint64 {
	indexes := make([]uint64, 0, len(n.cfg.Peers)+1)
	indexes = append(indexes, n.store.LastIndex())
	for _, idx := range n.matchIndex {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	return indexes[(len(indexes)-1)/2]
}

// quorumSize is the number of votes (including self) needed to win an
// election or commit an entry.
func (n *Node) quorumSize() int {
	return (len(n.cfg.Peers)+1)/2 + 1
}

// NotLeaderError builds the FAILED_PRECONDITION error a router returns
// when a mutating RPC lands on a follower.
func (n *Node) NotLeaderError() error {
	leaderID, _ := n.Leader()
	hint := ""
	if leaderID != "" {
		hint = n.cfg.Peers[leaderID]
	}
	return apperrors.NotLeader(hint)
}
