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
Package statemachine implements the deterministic user/message state
machine that committed Raft log entries are applied against.

Apply is a pure function of (State, Command) -> (State, Reply): no wall
clock reads, no randomness, no dependence on map iteration order. Every
piece of non-determinism (assigned ids, session tokens, timestamps) is
captured inside the Command itself by the leader before it proposes the
entry, so every replica that applies the same command produces bit-for-bit
identical state.
*/
package statemachine

// User is a single account row (spec section 3).
type User struct {
	UserID            uint32
	Username          string
	PasswordHash      [32]byte
	Unread            *orderedUint32Set
	RecentConversants []uint32 // most-recent-first, deduplicated
}

// Message is a single message row (spec section 3).
type Message struct {
	MessageID  uint32
	SenderID   uint32
	ReceiverID uint32
	Content    string
	ReadFlag   bool
	Timestamp int64
}

// State is the full in-memory materialization of the applied log
// prefix: user and message tables plus the indices derived from them.
// State starts empty and is rebuilt by applying log entries from index 1
// as they commit; it is never read or
// written concurrently with Apply outside of the node's single apply
// goroutine (callers needing a consistent read snapshot take the state
// machine's read lock; see Machine in apply.go).
type State struct {
	usersByID    map[uint32]*User
	usersByName  map[string]uint32
	messagesByID map[uint32]*Message

	// conversation indexes the ordered (ascending message_id) sequence
	// of messages between an unordered pair of users.
	conversations map[conversationKey][]uint32

	nextUserID    uint32
	nextMessageID uint32
}

// conversationKey is the canonical (lower, higher) ordering of a pair of
// user ids, so {A,B} and {B,A} index the same conversation.
type conversationKey struct {
	lo, hi uint32
}

func conversationKeyFor(a, b uint32) conversationKey {
	if a <= b {
		return conversationKey{a, b}
	}
	return conversationKey{b, a}
}

// NewState returns an empty state machine state.
func NewState() *State {
	return &State{
		usersByID:     make(map[uint32]*User),
		usersByName:   make(map[string]uint32),
		messagesByID:  make(map[uint32]*Message),
		conversations: make(map[conversationKey][]uint32),
	}
}

// UserByID looks up a user by id. The returned *User must not be
// mutated by callers outside of Apply.
func (s *State) UserByID(id uint32) (*User, bool) {
	u, ok := s.usersByID[id]
	return u, ok
}

// UserByUsername looks up a user by username (case-sensitive, per spec).
func (s *State) UserByUsername(name string) (*User, bool) {
	id, ok := s.usersByName[name]
	if !ok {
		return nil, false
	}
	u, ok := s.usersByID[id]
	return u, ok
}

// MessageByID looks up a message by id.
func (s *State) MessageByID(id uint32) (*Message, bool) {
	m, ok := s.messagesByID[id]
	return m, ok
}

// Conversation returns the ascending-by-id sequence of message ids
// exchanged between a and b. The returned slice must not be mutated.
func (s *State) Conversation(a, b uint32) []uint32 {
	return s.conversations[conversationKeyFor(a, b)]
}

// AllUsernames returns every live username in map iteration order, which
// can differ from call to call; callers that need a stable display order
// sort or collate the result themselves.
func (s *State) AllUsernames() []string {
	names := make([]string, 0, len(s.usersByName))
	for name := range s.usersByName {
		names = append(names, name)
	}
	return names
}

// NextUserID returns the id that would be assigned to the next created
// user, for a leader-side id allocator. It is a read of current state,
// not a reservation: the caller must serialize allocation with proposal
// submission itself.
func (s *State) NextUserID() uint32 {
	return s.nextUserID
}

// NextMessageID returns the id that would be assigned to the next sent
// message; see NextUserID for the allocation contract.
func (s *State) NextMessageID() uint32 {
	return s.nextMessageID
}
