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

package statemachine

import (
	"sync"

	"github.com/firefly-oss/chatraft/internal/apperrors"
)

// Reply is the outcome of applying a single Command. Exactly one of the
// typed result fields is meaningful, selected by the Command's Kind.
type Reply struct {
	Err error

	// CreateAccount
	UserID uint32
	Token  [32]byte

	// ReadN
	MarkedCount int
}

// Machine owns the single State and serializes Apply calls behind a
// read/write lock so read-only application RPCs (ListAccounts,
// DisplayConversation, ...) can run concurrently with each other while
// never overlapping an Apply.
type Machine struct {
	mu    sync.RWMutex
	state *State
}

// NewMachine returns a Machine with a fresh, empty State. Nothing is
// loaded into it here: the node's apply loop fills it by applying the
// durable log from index 1 as entries commit.
func NewMachine() *Machine {
	return &Machine{state: NewState()}
}

// Apply applies cmd to the machine's state and returns the reply. It is
// the only mutator of Machine state and must only ever be called by the
// node's single apply loop, in strict log order.
func (m *Machine) Apply(cmd Command) Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return apply(m.state, cmd)
}

// View runs fn with a read lock held, for serving read-only application
// RPCs against the last-applied state.
func (m *Machine) View(fn func(*State)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.state)
}

// Replace swaps in a different State wholesale, under the write lock.
func (m *Machine) Replace(s *State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// apply is the pure (state, cmd) -> reply step. No wall-clock reads, no
// randomness: every nondeterministic input arrives already baked into
// cmd by the leader.
func apply(s *State, cmd Command) Reply {
	switch cmd.Kind {
	case KindCreateAccount:
		return applyCreateAccount(s, cmd)
	case KindDeleteAccount:
		return applyDeleteAccount(s, cmd)
	case KindSendMessage:
		return applySendMessage(s, cmd)
	case KindMarkRead:
		return applyMarkRead(s, cmd)
	case KindReadN:
		return applyReadN(s, cmd)
	case KindDeleteMessage:
		return applyDeleteMessage(s, cmd)
	default:
		return Reply{Err: apperrors.UserNotFound(0).WithDetail("unknown command kind")}
	}
}

func applyCreateAccount(s *State, cmd Command) Reply {
	if _, taken := s.usersByName[cmd.Username]; taken {
		return Reply{Err: apperrors.UsernameTaken(cmd.Username)}
	}
	u := &User{
		UserID:       cmd.AssignedUserID,
		Username:     cmd.Username,
		PasswordHash: cmd.PasswordHash,
		Unread:       newOrderedUint32Set(),
	}
	s.usersByID[u.UserID] = u
	s.usersByName[u.Username] = u.UserID
	if u.UserID >= s.nextUserID {
		s.nextUserID = u.UserID + 1
	}
	return Reply{UserID: u.UserID, Token: cmd.Token}
}

func applyDeleteAccount(s *State, cmd Command) Reply {
	u, ok := s.usersByID[cmd.UserID]
	if !ok {
		return Reply{Err: apperrors.UserNotFound(cmd.UserID)}
	}

	// Cascade: remove every message where this user is sender or
	// receiver, dropping it from the conversation index and from the
	// other endpoint's unread set.
	for id, msg := range s.messagesByID {
		if msg.SenderID != cmd.UserID && msg.ReceiverID != cmd.UserID {
			continue
		}
		removeMessageIndices(s, msg)
		delete(s.messagesByID, id)
	}

	delete(s.usersByID, cmd.UserID)
	delete(s.usersByName, u.Username)

	for _, other := range s.usersByID {
		other.RecentConversants = removeUint32(other.RecentConversants, cmd.UserID)
	}

	return Reply{}
}

func applySendMessage(s *State, cmd Command) Reply {
	sender, ok := s.usersByID[cmd.SenderID]
	if !ok {
		return Reply{Err: apperrors.UserNotFound(cmd.SenderID)}
	}
	recipient, ok := s.usersByID[cmd.RecipientID]
	if !ok {
		return Reply{Err: apperrors.UserNotFound(cmd.RecipientID)}
	}

	msg := &Message{
		MessageID:  cmd.AssignedMessageID,
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.RecipientID,
		Content:    cmd.Content,
		ReadFlag:   false,
		Timestamp:  cmd.Timestamp,
	}
	s.messagesByID[msg.MessageID] = msg
	if msg.MessageID >= s.nextMessageID {
		s.nextMessageID = msg.MessageID + 1
	}

	key := conversationKeyFor(cmd.SenderID, cmd.RecipientID)
	s.conversations[key] = insertAscending(s.conversations[key], msg.MessageID)

	recipient.Unread.Add(msg.MessageID)

	sender.RecentConversants = moveToFront(sender.RecentConversants, cmd.RecipientID)
	recipient.RecentConversants = moveToFront(recipient.RecentConversants, cmd.SenderID)

	return Reply{}
}

func applyMarkRead(s *State, cmd Command) Reply {
	msg, ok := s.messagesByID[cmd.MessageID]
	if !ok {
		return Reply{Err: apperrors.MessageNotFound(cmd.MessageID)}
	}
	if msg.ReceiverID != cmd.UserID {
		return Reply{Err: apperrors.NotRecipient(cmd.UserID, cmd.MessageID)}
	}
	msg.ReadFlag = true
	if u, ok := s.usersByID[cmd.UserID]; ok {
		u.Unread.Remove(cmd.MessageID)
	}
	return Reply{}
}

func applyReadN(s *State, cmd Command) Reply {
	u, ok := s.usersByID[cmd.UserID]
	if !ok {
		return Reply{Err: apperrors.UserNotFound(cmd.UserID)}
	}
	ids := u.Unread.First(cmd.N)
	for _, id := range ids {
		if msg, ok := s.messagesByID[id]; ok {
			msg.ReadFlag = true
		}
		u.Unread.Remove(id)
	}
	return Reply{MarkedCount: len(ids)}
}

func applyDeleteMessage(s *State, cmd Command) Reply {
	msg, ok := s.messagesByID[cmd.MessageID]
	if !ok {
		return Reply{Err: apperrors.MessageNotFound(cmd.MessageID)}
	}
	removeMessageIndices(s, msg)
	delete(s.messagesByID, cmd.MessageID)
	return Reply{}
}

// removeMessageIndices removes msg from the conversation index and from
// its recipient's unread set, but does not touch messagesByID itself.
func removeMessageIndices(s *State, msg *Message) {
	key := conversationKeyFor(msg.SenderID, msg.ReceiverID)
	s.conversations[key] = removeUint32(s.conversations[key], msg.MessageID)
	if len(s.conversations[key]) == 0 {
		delete(s.conversations, key)
	}
	if recipient, ok := s.usersByID[msg.ReceiverID]; ok {
		recipient.Unread.Remove(msg.MessageID)
	}
}

func insertAscending(ids []uint32, id uint32) []uint32 {
	// Messages are appended with strictly increasing assigned ids, so
	// the common case is already sorted; append keeps that O(1).
	if len(ids) == 0 || ids[len(ids)-1] < id {
		return append(ids, id)
	}
	idx := 0
	for idx < len(ids) && ids[idx] < id {
		idx++
	}
	out := make([]uint32, 0, len(ids)+1)
	out = append(out, ids[:idx]...)
	out = append(out, id)
	out = append(out, ids[idx:]...)
	return out
}

func removeUint32(ids []uint32, id uint32) []uint32 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// moveToFront deduplicates id out of the slice and reinserts it at the
// front, giving a most-recent-first, deduplicated ordering.
func moveToFront(ids []uint32, id uint32) []uint32 {
	out := make([]uint32, 0, len(ids)+1)
	out = append(out, id)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
