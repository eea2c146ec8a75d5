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
Package router implements the application-facing RPC surface: it
classifies every call as a mutation (routed through Raft) or a read
(served from the locally applied state after session validation), mints
and checks session tokens, and translates state-machine outcomes into
the error taxonomy external callers see.

A follower that receives a mutating call never chains a forward to
another node itself; it returns NotLeader straight to the caller with
whatever leader hint it has, and lets the caller redirect. This keeps
forwarding a single hop, never a chain.
*/
package router

// LoginStatus is the outcome of a Login call.
type LoginStatus int

const (
	LoginFailure LoginStatus = iota
	LoginSuccess
)

// LookupStatus is the outcome of GetUserByUsername.
type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
)

// ConversationEntry is one row of DisplayConversation's result.
type ConversationEntry struct {
	MessageID  uint32
	SenderFlag bool // true if the requesting user was the sender
	Content    string
}

// UnreadEntry is one row of GetUnreadMessages' result.
type UnreadEntry struct {
	MessageID  uint32
	SenderID   uint32
	ReceiverID uint32
}
