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
Package apperrors provides the structured error taxonomy exposed by the
client router to application callers.

Error Categories:
  - Unauthenticated: session token missing or does not match the user id
  - FailedPrecondition: request hit a non-leader node; carries a leader hint
  - Unavailable: no reachable leader, or the node stepped down mid-proposal
  - Internal: a deterministic state-machine rejection (username taken,
    unknown user, message not found, ...)
  - DeadlineExceeded: the client's wait for commit+apply timed out
*/
package apperrors

import "fmt"

// Category is the coarse error classification from spec section 7.
type Category string

const (
	CategoryUnauthenticated   Category = "UNAUTHENTICATED"
	CategoryFailedPrecondition Category = "FAILED_PRECONDITION"
	CategoryUnavailable       Category = "UNAVAILABLE"
	CategoryInternal          Category = "INTERNAL"
	CategoryDeadlineExceeded  Category = "DEADLINE_EXCEEDED"
)

// ChatError is the structured error returned by the router and the state
// machine to application callers.
type ChatError struct {
	Category Category
	Message  string
	Detail   string
	Hint     string
	Cause    error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// WithDetail attaches additional detail text.
func (e *ChatError) WithDetail(detail string) *ChatError {
	e.Detail = detail
	return e
}

// WithCause attaches the underlying error that triggered this one.
func (e *ChatError) WithCause(cause error) *ChatError {
	e.Cause = cause
	return e
}

// ============================================================================
// Constructors
// ============================================================================

// Unauthenticated is returned when the session token does not match the
// user id it claims to belong to.
func Unauthenticated() *ChatError {
	return &ChatError{Category: CategoryUnauthenticated, Message: "invalid or expired session"}
}

// NotLeader is returned by a follower for a mutating call, carrying a
// redirect hint the caller can dial directly. hint is empty when the
// follower has no current leader_id to suggest.
func NotLeader(hint string) *ChatError {
	msg := "not the leader"
	e := &ChatError{Category: CategoryFailedPrecondition, Message: msg}
	if hint != "" {
		e.Hint = fmt.Sprintf("Not the leader. Try %s", hint)
	} else {
		e.Hint = "Not the leader."
	}
	return e
}

// Unavailable is returned when no leader can be reached at all.
func Unavailable(reason string) *ChatError {
	return &ChatError{Category: CategoryUnavailable, Message: "no reachable leader", Detail: reason}
}

// DeadlineExceeded is returned when a proposal's commit+apply wait timed
// out. The entry may still commit later; the caller should retry.
func DeadlineExceeded() *ChatError {
	return &ChatError{Category: CategoryDeadlineExceeded, Message: "timed out waiting for commit"}
}

// UsernameTaken is the deterministic CreateAccount rejection.
func UsernameTaken(username string) *ChatError {
	return &ChatError{Category: CategoryInternal, Message: "username already in use", Detail: username}
}

// UserNotFound is returned when an operation names a user id that does
// not exist.
func UserNotFound(userID uint32) *ChatError {
	return &ChatError{Category: CategoryInternal, Message: "user not found", Detail: fmt.Sprintf("user_id=%d", userID)}
}

// MessageNotFound is returned when an operation names a message id that
// does not exist.
func MessageNotFound(messageID uint32) *ChatError {
	return &ChatError{Category: CategoryInternal, Message: "message not found", Detail: fmt.Sprintf("message_id=%d", messageID)}
}

// NotRecipient is returned when a user tries to mark as read a message
// addressed to someone else.
func NotRecipient(userID, messageID uint32) *ChatError {
	return &ChatError{
		Category: CategoryInternal,
		Message:  "user is not the recipient of this message",
		Detail:   fmt.Sprintf("user_id=%d message_id=%d", userID, messageID),
	}
}

// BadCredentials is the Login failure outcome (wrong username or hash).
func BadCredentials() *ChatError {
	return &ChatError{Category: CategoryInternal, Message: "bad username or password"}
}

// IsCategory reports whether err is a *ChatError of the given category.
func IsCategory(err error, cat Category) bool {
	if e, ok := err.(*ChatError); ok {
		return e.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or "" if err is not a *ChatError.
func CategoryOf(err error) Category {
	if e, ok := err.(*ChatError); ok {
		return e.Category
	}
	return ""
}
