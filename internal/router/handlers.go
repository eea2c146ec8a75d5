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
	"crypto/subtle"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/firefly-oss/chatraft/internal/apperrors"
	"github.com/firefly-oss/chatraft/internal/session"
	"github.com/firefly-oss/chatraft/internal/statemachine"
)

func (r *Router) checkSession(userID uint32, token session.Token) error {
	if !r.sessions.Validate(userID, token) {
		return apperrors.Unauthenticated()
	}
	return nil
}

// CreateAccount mints the new user's id and session token on the leader,
// replicates the account creation, and installs the same token locally
// so the caller can use it immediately against this node.
func (r *Router) CreateAccount(ctx context.Context, username string, passwordHash [32]byte) (session.Token, error) {
	if !r.node.IsLeader() {
		return session.Token{}, r.node.NotLeaderError()
	}

	r.allocMu.Lock()
	defer r.allocMu.Unlock()

	var userID uint32
	r.machine.View(func(s *statemachine.State) { userID = s.NextUserID() })

	tok, err := session.Mint("leader", userID)
	if err != nil {
		return session.Token{}, fmt.Errorf("router: mint token: %w", err)
	}

	cmd := statemachine.Command{
		Kind:           statemachine.KindCreateAccount,
		Username:       username,
		PasswordHash:   passwordHash,
		AssignedUserID: userID,
		Token:          [32]byte(tok),
	}
	dedupKey := fmt.Sprintf("CreateAccount:%s", username)
	reply, err := r.node.Propose(ctx, dedupKey, cmd)
	if err != nil {
		return session.Token{}, err
	}
	if reply.Err != nil {
		return session.Token{}, reply.Err
	}

	r.sessions.Set(reply.UserID, session.Token(reply.Token))
	return session.Token(reply.Token), nil
}

// Login is served as a read against the applied state (password check)
// followed by a local, non-replicated session mint on success.
func (r *Router) Login(username string, passwordHash [32]byte) (LoginStatus, session.Token, uint32, error) {
	var (
		userID   uint32
		stored   [32]byte
		found    bool
		unread   int
	)
	r.machine.View(func(s *statemachine.State) {
		u, ok := s.UserByUsername(username)
		if !ok {
			return
		}
		found = true
		userID = u.UserID
		stored = u.PasswordHash
		unread = u.Unread.Len()
	})
	if !found || subtle.ConstantTimeCompare(stored[:], passwordHash[:]) != 1 {
		return LoginFailure, session.Token{}, 0, nil
	}

	tok, err := r.sessions.Login(userID)
	if err != nil {
		return LoginFailure, session.Token{}, 0, fmt.Errorf("router: login: %w", err)
	}
	return LoginSuccess, tok, uint32(unread), nil
}

var usernameCollator = collate.New(language.Und)

// ListAccounts returns every live username matching wildcard, ordered
// by a locale-aware collation so the result is stable and human-sorted
// rather than dependent on map iteration order.
func (r *Router) ListAccounts(userID uint32, token session.Token, wildcard string) ([]string, error) {
	if err := r.checkSession(userID, token); err != nil {
		return nil, err
	}

	var matches []string
	r.machine.View(func(s *statemachine.State) {
		for _, name := range s.AllUsernames() {
			if statemachine.MatchWildcard(wildcard, name) {
				matches = append(matches, name)
			}
		}
	})

	sort.Slice(matches, func(i, j int) bool {
		return usernameCollator.CompareString(matches[i], matches[j]) < 0
	})
	return matches, nil
}

// DisplayConversation returns the messages exchanged between userID and
// conversantID in ascending message-id order.
func (r *Router) DisplayConversation(userID uint32, token session.Token, conversantID uint32) ([]ConversationEntry, error) {
	if err := r.checkSession(userID, token); err != nil {
		return nil, err
	}

	var entries []ConversationEntry
	r.machine.View(func(s *statemachine.State) {
		for _, id := range s.Conversation(userID, conversantID) {
			msg, ok := s.MessageByID(id)
			if !ok {
				continue
			}
			entries = append(entries, ConversationEntry{
				MessageID:  msg.MessageID,
				SenderFlag: msg.SenderID == userID,
				Content:    msg.Content,
			})
		}
	})
	return entries, nil
}

// SendMessage mints the new message's id on the leader and replicates
// the send.
func (r *Router) SendMessage(ctx context.Context, senderID uint32, token session.Token, recipientID uint32, content string) error {
	if err := r.checkSession(senderID, token); err != nil {
		return err
	}
	if !r.node.IsLeader() {
		return r.node.NotLeaderError()
	}

	r.allocMu.Lock()
	defer r.allocMu.Unlock()

	var messageID uint32
	r.machine.View(func(s *statemachine.State) { messageID = s.NextMessageID() })

	cmd := statemachine.Command{
		Kind:              statemachine.KindSendMessage,
		SenderID:          senderID,
		RecipientID:       recipientID,
		Content:           content,
		AssignedMessageID: messageID,
		Timestamp:         time.Now().UnixNano(),
	}
	dedupKey := fmt.Sprintf("SendMessage:%d:%d:%s", senderID, recipientID, content)
	reply, err := r.node.Propose(ctx, dedupKey, cmd)
	if err != nil {
		return err
	}
	return reply.Err
}

// ReadMessages pops up to n unread messages for userID in ascending id
// order and marks them read.
func (r *Router) ReadMessages(ctx context.Context, userID uint32, token session.Token, n int) error {
	if err := r.checkSession(userID, token); err != nil {
		return err
	}
	if !r.node.IsLeader() {
		return r.node.NotLeaderError()
	}
	if n < 0 {
		n = 0
	}

	cmd := statemachine.Command{Kind: statemachine.KindReadN, UserID: userID, N: n}
	dedupKey := fmt.Sprintf("ReadN:%d:%d", userID, n)
	reply, err := r.node.Propose(ctx, dedupKey, cmd)
	if err != nil {
		return err
	}
	return reply.Err
}

// DeleteMessage removes a single message.
func (r *Router) DeleteMessage(ctx context.Context, userID uint32, token session.Token, messageID uint32) error {
	if err := r.checkSession(userID, token); err != nil {
		return err
	}
	if !r.node.IsLeader() {
		return r.node.NotLeaderError()
	}

	cmd := statemachine.Command{Kind: statemachine.KindDeleteMessage, MessageID: messageID}
	dedupKey := fmt.Sprintf("DeleteMessage:%d", messageID)
	reply, err := r.node.Propose(ctx, dedupKey, cmd)
	if err != nil {
		return err
	}
	return reply.Err
}

// DeleteAccount removes userID and cascades to their messages.
func (r *Router) DeleteAccount(ctx context.Context, userID uint32, token session.Token) error {
	if err := r.checkSession(userID, token); err != nil {
		return err
	}
	if !r.node.IsLeader() {
		return r.node.NotLeaderError()
	}

	cmd := statemachine.Command{Kind: statemachine.KindDeleteAccount, UserID: userID}
	dedupKey := fmt.Sprintf("DeleteAccount:%d", userID)
	reply, err := r.node.Propose(ctx, dedupKey, cmd)
	if err != nil {
		return err
	}
	if reply.Err != nil {
		return reply.Err
	}
	r.sessions.Forget(userID)
	return nil
}

// GetUnreadMessages lists userID's currently unread messages.
func (r *Router) GetUnreadMessages(userID uint32, token session.Token) ([]UnreadEntry, error) {
	if err := r.checkSession(userID, token); err != nil {
		return nil, err
	}

	var entries []UnreadEntry
	r.machine.View(func(s *statemachine.State) {
		u, ok := s.UserByID(userID)
		if !ok {
			return
		}
		for _, id := range u.Unread.Sorted() {
			msg, ok := s.MessageByID(id)
			if !ok {
				continue
			}
			entries = append(entries, UnreadEntry{MessageID: msg.MessageID, SenderID: msg.SenderID, ReceiverID: msg.ReceiverID})
		}
	})
	return entries, nil
}

// GetMessageInformation returns metadata about a single message.
func (r *Router) GetMessageInformation(userID uint32, token session.Token, messageID uint32) (readFlag bool, senderID uint32, contentLength int, content string, err error) {
	if err = r.checkSession(userID, token); err != nil {
		return
	}

	var found bool
	r.machine.View(func(s *statemachine.State) {
		msg, ok := s.MessageByID(messageID)
		if !ok {
			return
		}
		found = true
		readFlag = msg.ReadFlag
		senderID = msg.SenderID
		content = msg.Content
		contentLength = len(msg.Content)
	})
	if !found {
		err = apperrors.MessageNotFound(messageID)
	}
	return
}

// GetUsernameByID looks up a username, unauthenticated per the external
// RPC table (it takes no session token).
func (r *Router) GetUsernameByID(userID uint32) (string, error) {
	var (
		name  string
		found bool
	)
	r.machine.View(func(s *statemachine.State) {
		u, ok := s.UserByID(userID)
		if !ok {
			return
		}
		found = true
		name = u.Username
	})
	if !found {
		return "", apperrors.UserNotFound(userID)
	}
	return name, nil
}

// MarkMessageAsRead marks a single message read on behalf of its
// recipient.
func (r *Router) MarkMessageAsRead(ctx context.Context, userID uint32, token session.Token, messageID uint32) error {
	if err := r.checkSession(userID, token); err != nil {
		return err
	}
	if !r.node.IsLeader() {
		return r.node.NotLeaderError()
	}

	cmd := statemachine.Command{Kind: statemachine.KindMarkRead, UserID: userID, MessageID: messageID}
	dedupKey := fmt.Sprintf("MarkRead:%d:%d", userID, messageID)
	reply, err := r.node.Propose(ctx, dedupKey, cmd)
	if err != nil {
		return err
	}
	return reply.Err
}

// GetUserByUsername looks up a user id by username, unauthenticated per
// the external RPC table.
func (r *Router) GetUserByUsername(username string) (LookupStatus, uint32, error) {
	var (
		userID uint32
		found  bool
	)
	r.machine.View(func(s *statemachine.State) {
		u, ok := s.UserByUsername(username)
		if !ok {
			return
		}
		found = true
		userID = u.UserID
	})
	if !found {
		return LookupNotFound, 0, nil
	}
	return LookupFound, userID, nil
}
