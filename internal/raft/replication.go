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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/firefly-oss/chatraft/internal/store"
)

// runHeartbeats drives the leader's periodic AppendEntries broadcast for
// as long as this node remains leader in term. Must be started in its
// own goroutine immediately after becomeLeaderLocked.
func (n *Node) runHeartbeats(term uint64) {
	ticker := time.NewTicker(n.cfg.HeartbeatInterval)
	defer ticker.Stop()

	n.broadcastAppendEntries(term)
	for {
		select {
		case <-n.stopCh:
			return
		case <-ticker.C:
			n.mu.Lock()
			stillLeader := n.role == RoleLeader && n.currentTerm == term
			n.mu.Unlock()
			if !stillLeader {
				return
			}
			n.broadcastAppendEntries(term)
		}
	}
}

// broadcastAppendEntries fans AppendEntries out to every peer in
// parallel via errgroup, ignoring individual peer errors: a slow or
// unreachable follower simply falls behind and catches up on a later
// heartbeat, it never blocks replication to the others.
func (n *Node) broadcastAppendEntries(term uint64) {
	var g errgroup.Group
	for peerID, addr := range n.cfg.Peers {
		peerID, addr := peerID, addr
		g.Go(func() error {
			n.sendAppendEntriesToPeer(term, peerID, addr)
			return nil
		})
	}
	_ = g.Wait()
}

func (n *Node) sendAppendEntriesToPeer(term uint64, peerID, addr string) {
	n.mu.Lock()
	if n.role != RoleLeader || n.currentTerm != term {
		n.mu.Unlock()
		return
	}
	nextIdx := n.nextIndex[peerID]
	if nextIdx == 0 {
		nextIdx = 1
	}
	prevLogIndex := nextIdx - 1
	var prevLogTerm uint64
	if prevLogIndex > 0 {
		if e, ok, _ := n.store.Entry(prevLogIndex); ok {
			prevLogTerm = e.Term
		}
	}
	entries, _ := n.store.Entries(nextIdx, n.store.LastIndex())
	args := AppendEntriesArgs{
		Term:         term,
		LeaderID:     n.cfg.NodeID,
		PrevLogIndex: prevLogIndex,
		PrevLogTerm:  prevLogTerm,
		Entries:      entries,
		LeaderCommit: n.commitIndex,
	}
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.HeartbeatInterval*4)
	defer cancel()
	reply, err := n.trans.SendAppendEntries(ctx, addr, args)
	if err != nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if reply.Term > n.currentTerm {
		n.becomeFollower(reply.Term, "")
		return
	}
	if n.role != RoleLeader || n.currentTerm != term {
		return
	}

	if reply.Success {
		n.nextIndex[peerID] = nextIdx + uint64(len(entries))
		n.matchIndex[peerID] = n.nextIndex[peerID] - 1
		n.advanceCommitIndexLocked()
		return
	}

	switch {
	case reply.ConflictIndex > 0:
		n.nextIndex[peerID] = reply.ConflictIndex
	case n.nextIndex[peerID] > 1:
		n.nextIndex[peerID]--
	}
}

// advanceCommitIndexLocked recomputes commitIndex from matchIndex and
// wakes the apply loop if it moved forward. Caller must hold n.mu.
func (n *Node) advanceCommitIndexLocked() {
	candidate := n.majorityIndex()
	if candidate <= n.commitIndex {
		return
	}
	entry, ok, _ := n.store.Entry(candidate)
	if !ok || entry.Term != n.currentTerm {
		// Leader Completeness: never commit an entry from a prior term
		// purely because a majority stores it; it only becomes committed
		// once an entry from the leader's own current term, which by log
		// matching subsumes everything before it, is itself committed.
		return
	}
	n.commitIndex = candidate
	n.wakeApplyLoop()
}

// HandleAppendEntries services an incoming AppendEntries RPC (including
// empty-Entries heartbeats).
func (n *Node) HandleAppendEntries(args AppendEntriesArgs) AppendEntriesReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	reply := AppendEntriesReply{Term: n.currentTerm}
	if args.Term < n.currentTerm {
		return reply
	}

	if args.Term > n.currentTerm || n.role != RoleFollower {
		n.becomeFollower(args.Term, args.LeaderID)
	} else {
		n.leaderID = args.LeaderID
	}
	n.resetElectionTimer()
	reply.Term = n.currentTerm

	if args.PrevLogIndex > 0 {
		entry, ok, _ := n.store.Entry(args.PrevLogIndex)
		if !ok {
			reply.ConflictIndex = n.store.LastIndex() + 1
			return reply
		}
		if entry.Term != args.PrevLogTerm {
			reply.ConflictTerm = entry.Term
			reply.ConflictIndex = n.firstIndexOfTermLocked(entry.Term)
			return reply
		}
	}

	for i, entry := range args.Entries {
		idx := args.PrevLogIndex + 1 + uint64(i)
		existing, ok, _ := n.store.Entry(idx)
		if ok && existing.Term == entry.Term {
			continue
		}
		if ok {
			// Conflicting entry: the follower's log diverges here and at
			// every index after it, so the suffix is discarded before the
			// leader's version (and everything following it) is appended.
			if err := n.store.TruncateFrom(idx); err != nil {
				n.log.Error("truncate log failed", "error", err.Error())
				return AppendEntriesReply{Term: n.currentTerm}
			}
		}
		if err := n.store.Append([]store.LogEntry{entry}); err != nil {
			n.log.Error("append log failed", "error", err.Error())
			return AppendEntriesReply{Term: n.currentTerm}
		}
	}

	if args.LeaderCommit > n.commitIndex {
		lastNew := args.PrevLogIndex + uint64(len(args.Entries))
		if args.LeaderCommit < lastNew {
			n.commitIndex = args.LeaderCommit
		} else {
			n.commitIndex = lastNew
		}
		n.wakeApplyLoop()
	}

	reply.Success = true
	return reply
}

// firstIndexOfTermLocked finds the earliest index at conflictTerm by
// scanning forward from index 1, so the leader can skip its nextIndex straight past
// the whole conflicting term on its next attempt. Caller must hold n.mu.
func (n *Node) firstIndexOfTermLocked(conflictTerm uint64) uint64 {
	idx := uint64(1)
	for i := uint64(1); i <= n.store.LastIndex(); i++ {
		e, ok, _ := n.store.Entry(i)
		if ok && e.Term == conflictTerm {
			idx = i
			break
		}
	}
	return idx
}

func (n *Node) wakeApplyLoop() {
	select {
	case n.applyWake <- struct{}{}:
	default:
	}
}
