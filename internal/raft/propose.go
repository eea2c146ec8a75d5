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
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/firefly-oss/chatraft/internal/apperrors"
	"github.com/firefly-oss/chatraft/internal/statemachine"
	"github.com/firefly-oss/chatraft/internal/store"
)

// Propose appends cmd to the leader's log and blocks until it has been
// committed and applied (or ctx expires). dedupKey collapses concurrent
// identical proposals (e.g. a client retrying a request whose first
// attempt is still in flight) into a single log entry via singleflight;
// it does not provide exactly-once semantics across separate retries
// issued after the first one has already returned, which Raft
// linearizability alone does not guarantee and this system does not
// attempt to paper over.
func (n *Node) Propose(ctx context.Context, dedupKey string, cmd statemachine.Command) (statemachine.Reply, error) {
	v, err, _ := n.sf.Do(dedupKey, func() (interface{}, error) {
		return n.proposeOnce(ctx, cmd)
	})
	if err != nil {
		return statemachine.Reply{}, err
	}
	return v.(statemachine.Reply), nil
}

func (n *Node) proposeOnce(ctx context.Context, cmd statemachine.Command) (statemachine.Reply, error) {
	n.mu.Lock()
	if n.role != RoleLeader {
		n.mu.Unlock()
		return statemachine.Reply{}, n.NotLeaderError()
	}

	encoded, err := statemachine.Encode(cmd)
	if err != nil {
		n.mu.Unlock()
		return statemachine.Reply{}, fmt.Errorf("raft: encode command: %w", err)
	}

	index := n.store.LastIndex() + 1
	entry := store.LogEntry{Index: index, Term: n.currentTerm, Command: encoded}
	if err := n.store.Append([]store.LogEntry{entry}); err != nil {
		n.mu.Unlock()
		return statemachine.Reply{}, fmt.Errorf("raft: append proposal: %w", err)
	}

	waiter := &pendingProposal{done: make(chan statemachine.Reply, 1)}
	n.pending[index] = waiter
	term := n.currentTerm
	// With no peers the leader alone is a majority, and no peer reply will
	// ever arrive to advance commitIndex.
	n.advanceCommitIndexLocked()
	n.mu.Unlock()

	go n.broadcastAppendEntries(term)

	select {
	case reply := <-waiter.done:
		return reply, nil
	case <-ctx.Done():
		n.mu.Lock()
		delete(n.pending, index)
		n.mu.Unlock()
		return statemachine.Reply{}, apperrors.DeadlineExceeded()
	}
}

// runApplyLoop is the single goroutine that applies every committed
// entry to the state machine in strict log order, then notifies any
// Propose waiter for that index.
func (n *Node) runApplyLoop() {
	defer n.wg.Done()

	for {
		select {
		case <-n.stopCh:
			return
		case <-n.applyWake:
		}

		for {
			n.mu.Lock()
			if n.lastApplied >= n.commitIndex {
				n.mu.Unlock()
				break
			}
			next := n.lastApplied + 1
			entry, ok, _ := n.store.Entry(next)
			n.mu.Unlock()
			if !ok {
				break
			}

			cmd, err := statemachine.Decode(entry.Command)
			var reply statemachine.Reply
			if err != nil {
				reply = statemachine.Reply{Err: fmt.Errorf("raft: decode log entry %d: %w", next, err)}
			} else {
				reply = n.machine.Apply(cmd)
			}

			n.mu.Lock()
			n.lastApplied = next
			waiter, hasWaiter := n.pending[next]
			delete(n.pending, next)
			n.mu.Unlock()

			if hasWaiter {
				waiter.done <- reply
			}
		}
	}
}
