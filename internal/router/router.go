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
	"sync"

	"github.com/firefly-oss/chatraft/internal/raft"
	"github.com/firefly-oss/chatraft/internal/session"
	"github.com/firefly-oss/chatraft/internal/statemachine"
)

// Router dispatches application RPCs: mutations through Raft, reads
// against the locally applied state machine.
type Router struct {
	node     *raft.Node
	machine  *statemachine.Machine
	sessions *session.Table

	// allocMu serializes id-assignment with proposal submission for the
	// two commands that need a leader-assigned id (CreateAccount,
	// SendMessage): the id is read from the current applied state and
	// the whole propose-and-await-apply call happens while still
	// holding the lock, so two concurrent calls can never be handed the
	// same id.
	allocMu sync.Mutex
}

// New builds a Router over an already-started raft.Node, its backing
// Machine, and this node's local session table.
func New(node *raft.Node, machine *statemachine.Machine, sessions *session.Table) *Router {
	return &Router{node: node, machine: machine, sessions: sessions}
}
