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
Package session holds the in-memory, per-node session table that maps a
logged-in user to the 32-byte bearer token minted for that login.

Sessions are deliberately NOT replicated through Raft: a login is served
by whichever node the client happens to reach (the spec treats Login as
a read, not a mutating command), so the token it mints is only known to
that node. A client that reconnects to a different node after a leader
change must log in again. This keeps the hot path of every other RPC
(check token, forward-if-follower) free of consensus latency.
*/
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Token is the 32-byte bearer token returned by Login.
type Token [32]byte

func (t Token) String() string {
	return fmt.Sprintf("%x", t[:8])
}

// Mint derives a fresh token for userID on nodeID, folding in crypto/rand
// entropy through blake2b so tokens are neither predictable nor subject
// to cross-node collisions.
func Mint(nodeID string, userID uint32) (Token, error) {
	var entropy [32]byte
	if _, err := rand.Read(entropy[:]); err != nil {
		return Token{}, fmt.Errorf("session: read entropy: %w", err)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return Token{}, fmt.Errorf("session: init blake2b: %w", err)
	}
	h.Write(entropy[:])
	h.Write([]byte(nodeID))
	fmt.Fprintf(h, "%d", userID)

	var tok Token
	copy(tok[:], h.Sum(nil))
	return tok, nil
}

// Table is the node-local user_id -> active token map.
type Table struct {
	mu     sync.RWMutex
	nodeID string
	tokens map[uint32]Token
}

// NewTable returns an empty session table for the given node.
func NewTable(nodeID string) *Table {
	return &Table{nodeID: nodeID, tokens: make(map[uint32]Token)}
}

// Login mints and stores a new token for userID, replacing any existing
// one (a fresh login invalidates the previous session on this node).
func (t *Table) Login(userID uint32) (Token, error) {
	tok, err := Mint(t.nodeID, userID)
	if err != nil {
		return Token{}, err
	}
	t.mu.Lock()
	t.tokens[userID] = tok
	t.mu.Unlock()
	return tok, nil
}

// Set installs tok as userID's active session directly, used by
// CreateAccount whose token is decided by the replicated command itself
// rather than minted fresh by this node.
func (t *Table) Set(userID uint32, tok Token) {
	t.mu.Lock()
	t.tokens[userID] = tok
	t.mu.Unlock()
}

// Validate reports whether tok is the currently active token for userID.
func (t *Table) Validate(userID uint32, tok Token) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	active, ok := t.tokens[userID]
	return ok && subtle.ConstantTimeCompare(active[:], tok[:]) == 1
}

// Logout drops userID's active session, if any.
func (t *Table) Logout(userID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tokens, userID)
}

// Forget drops a session for userID without checking which token is
// active, used when DeleteAccount removes the user entirely.
func (t *Table) Forget(userID uint32) {
	t.Logout(userID)
}
