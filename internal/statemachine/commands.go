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
	"encoding/json"
	"fmt"
)

// CommandKind tags the closed union of commands a Raft log entry can
// carry. The source this spec was distilled from encoded commands as
// untyped dictionaries; here the union is closed and decoding an
// unrecognized tag is a hard error rather than a silently-ignored no-op.
type CommandKind string

const (
	KindCreateAccount CommandKind = "CreateAccount"
	KindDeleteAccount CommandKind = "DeleteAccount"
	KindSendMessage   CommandKind = "SendMessage"
	KindMarkRead      CommandKind = "MarkRead"
	KindReadN         CommandKind = "ReadN"
	KindDeleteMessage CommandKind = "DeleteMessage"
)

// Command is the closed tagged union applied by Apply. All
// leader-assigned, nondeterministic values (ids, tokens, timestamps) are
// filled in before the command is wrapped into a log entry, so every
// field here is already fully determined at encode time.
type Command struct {
	Kind CommandKind `json:"kind"`

	// CreateAccount
	Username         string   `json:"username,omitempty"`
	PasswordHash     [32]byte `json:"password_hash,omitempty"`
	AssignedUserID   uint32   `json:"assigned_user_id,omitempty"`
	Token            [32]byte `json:"token,omitempty"`

	// DeleteAccount / shared user id field for MarkRead, ReadN
	UserID uint32 `json:"user_id,omitempty"`

	// SendMessage
	SenderID          uint32 `json:"sender_id,omitempty"`
	RecipientID       uint32 `json:"recipient_id,omitempty"`
	Content           string `json:"content,omitempty"`
	AssignedMessageID uint32 `json:"assigned_message_id,omitempty"`
	Timestamp         int64  `json:"timestamp,omitempty"`

	// MarkRead / DeleteMessage
	MessageID uint32 `json:"message_id,omitempty"`

	// ReadN
	N int `json:"n,omitempty"`
}

// Encode serializes a Command to the bytes stored in a log entry.
func Encode(cmd Command) ([]byte, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	return b, nil
}

// Decode parses log-entry command bytes back into a Command, rejecting
// anything that doesn't carry one of the known Kind tags.
func Decode(b []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(b, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	switch cmd.Kind {
	case KindCreateAccount, KindDeleteAccount, KindSendMessage, KindMarkRead, KindReadN, KindDeleteMessage:
		return cmd, nil
	default:
		return Command{}, fmt.Errorf("decode command: unknown kind %q", cmd.Kind)
	}
}
