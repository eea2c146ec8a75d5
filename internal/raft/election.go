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
	"strconv"
	"sync"
	"time"
)

// runElectionTimer drives the follower/candidate election clock: every
// randomized timeout that elapses without a reset (a valid heartbeat or
// a vote granted), the node starts a new election.
func (n *Node) runElectionTimer() {
	defer n.wg.Done()

	for {
		timeout := n.randomElectionTimeout()
		select {
		case <-n.stopCh:
			return
		case <-n.resetElection:
			continue
		case <-time.After(timeout):
			if n.RoleNow() != RoleLeader {
				n.startElection()
			}
		}
	}
}

// startElection increments the term, votes for self, and solicits votes
// from every peer concurrently, becoming leader on the first majority.
func (n *Node) startElection() {
	n.mu.Lock()
	n.role = RoleCandidate
	n.currentTerm++
	n.votedFor = n.cfg.NodeID
	n.persistMeta()
	term := n.currentTerm
	lastIndex, lastTerm := n.lastLogIndexAndTerm()
	quorum := n.quorumSize()
	n.mu.Unlock()

	n.log.Info("starting election", "term", strconv.FormatUint(term, 10))

	var (
		mu    sync.Mutex
		votes = 1 // vote for self
		wg    sync.WaitGroup
		won   bool
	)

	if votes >= quorum {
		won = true
		n.mu.Lock()
		if n.role == RoleCandidate && n.currentTerm == term {
			n.becomeLeaderLocked()
		}
		n.mu.Unlock()
	}

	for peerID, addr := range n.cfg.Peers {
		wg.Add(1)
		go func(peerID, addr string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), n.cfg.ElectionTimeoutMin)
			defer cancel()

			reply, err := n.trans.SendRequestVote(ctx, addr, RequestVoteArgs{
				Term:         term,
				CandidateID:  n.cfg.NodeID,
				LastLogIndex: lastIndex,
				LastLogTerm:  lastTerm,
			})
			if err != nil {
				return
			}

			n.mu.Lock()
			defer n.mu.Unlock()

			if reply.Term > n.currentTerm {
				n.becomeFollower(reply.Term, "")
				return
			}
			if n.role != RoleCandidate || n.currentTerm != term {
				return
			}
			if !reply.VoteGranted {
				return
			}

			mu.Lock()
			votes++
			if votes >= quorum && !won {
				won = true
				n.becomeLeaderLocked()
			}
			mu.Unlock()
		}(peerID, addr)
	}

	wg.Wait()
}

// becomeLeaderLocked transitions to Leader. Caller must hold n.mu.
func (n *Node) becomeLeaderLocked() {
	n.role = RoleLeader
	n.leaderID = n.cfg.NodeID
	lastIndex := n.store.LastIndex()
	for peerID := range n.cfg.Peers {
		n.nextIndex[peerID] = lastIndex + 1
		n.matchIndex[peerID] = 0
	}
	n.log.Info("became leader", "term", strconv.FormatUint(n.currentTerm, 10))
	go n.runHeartbeats(n.currentTerm)
}

// HandleRequestVote services an incoming RequestVote RPC, per the
// Raft safety rule: grant at most one vote per term, and only to a
// candidate whose log is at least as up to date as this node's.
func (n *Node) HandleRequestVote(args RequestVoteArgs) RequestVoteReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	if args.Term > n.currentTerm {
		n.becomeFollower(args.Term, "")
	}

	reply := RequestVoteReply{Term: n.currentTerm}
	if args.Term < n.currentTerm {
		return reply
	}

	lastIndex, lastTerm := n.lastLogIndexAndTerm()
	logOK := args.LastLogTerm > lastTerm ||
		(args.LastLogTerm == lastTerm && args.LastLogIndex >= lastIndex)

	if (n.votedFor == "" || n.votedFor == args.CandidateID) && logOK {
		n.votedFor = args.CandidateID
		n.persistMeta()
		reply.VoteGranted = true
		n.resetElectionTimer()
	}
	return reply
}
