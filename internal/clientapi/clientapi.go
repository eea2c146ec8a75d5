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
Package clientapi exposes internal/router's application RPCs to
external clients (Client in this package, the dump tool's remote mode)
over the same wire framing the Raft transport uses.

Every request names a Method and carries its arguments as a JSON
object; the server dispatches to the matching Router method and
replies with either a JSON result or a structured error. Mutating
methods issued against a non-leader node come back with a NotLeader
error carrying a redirect hint - this layer never forwards on the
caller's behalf, keeping forwarding a single explicit hop the caller
controls.
*/
package clientapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/netutil"

	"github.com/firefly-oss/chatraft/internal/apperrors"
	"github.com/firefly-oss/chatraft/internal/logging"
	"github.com/firefly-oss/chatraft/internal/router"
	"github.com/firefly-oss/chatraft/internal/session"
	"github.com/firefly-oss/chatraft/internal/wire"
)

const maxClientConns = 256

// Request is one client call: Method names a Router operation, Args
// carries its JSON-encoded parameters.
type Request struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

// Response carries either Result or a structured Error, never both.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// WireError is the JSON shape of an apperrors.ChatError crossing the
// wire, since the concrete type itself doesn't round-trip through
// encoding/json.
type WireError struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

func toWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*apperrors.ChatError); ok {
		return &WireError{Category: string(ce.Category), Message: ce.Message, Detail: ce.Detail, Hint: ce.Hint}
	}
	return &WireError{Category: string(apperrors.CategoryInternal), Message: err.Error()}
}

// Server accepts client connections and dispatches each request frame
// to the Router.
type Server struct {
	router   *router.Router
	listener net.Listener
	log      *logging.Logger
}

// Listen binds addr for client traffic, distinct from the node's Raft
// peer listener.
func Listen(addr string, r *router.Router) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("clientapi: listen %s: %w", addr, err)
	}
	return &Server{
		router:   r,
		listener: netutil.LimitListener(ln, maxClientConns),
		log:      logging.NewLogger("clientapi"),
	}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new client connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		conn.SetDeadline(time.Now().Add(30 * time.Second))
		msg, err := wire.ReadMessage(conn)
		if err != nil {
			return
		}
		if msg.Header.Type != wire.MsgClientPropose {
			s.log.Warn("unrecognized client message type", "type", fmt.Sprintf("%d", msg.Header.Type))
			return
		}

		var req Request
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			s.respond(conn, Response{Error: toWireError(fmt.Errorf("clientapi: decode request: %w", err))})
			continue
		}

		resp := s.dispatch(req)
		if !s.respond(conn, resp) {
			return
		}
	}
}

func (s *Server) respond(conn net.Conn, resp Response) bool {
	payload, err := json.Marshal(resp)
	if err != nil {
		return false
	}
	return wire.WriteMessage(conn, wire.MsgClientProposeResp, payload) == nil
}

func (s *Server) dispatch(req Request) Response {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	switch req.Method {
	case "CreateAccount":
		var a struct {
			Username     string   `json:"username"`
			PasswordHash [32]byte `json:"password_hash"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		tok, err := s.router.CreateAccount(ctx, a.Username, a.PasswordHash)
		if err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct {
			Token session.Token `json:"token"`
		}{tok})

	case "Login":
		var a struct {
			Username     string   `json:"username"`
			PasswordHash [32]byte `json:"password_hash"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		status, tok, unread, err := s.router.Login(a.Username, a.PasswordHash)
		if err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct {
			Success bool          `json:"success"`
			Token   session.Token `json:"token"`
			Unread  uint32        `json:"unread_count"`
		}{status == router.LoginSuccess, tok, unread})

	case "ListAccounts":
		var a struct {
			UserID   uint32        `json:"user_id"`
			Token    session.Token `json:"token"`
			Wildcard string        `json:"wildcard"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		names, err := s.router.ListAccounts(a.UserID, a.Token, a.Wildcard)
		if err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(names)

	case "DisplayConversation":
		var a struct {
			UserID       uint32        `json:"user_id"`
			Token        session.Token `json:"token"`
			ConversantID uint32        `json:"conversant_id"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		entries, err := s.router.DisplayConversation(a.UserID, a.Token, a.ConversantID)
		if err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(entries)

	case "SendMessage":
		var a struct {
			SenderID    uint32        `json:"sender_id"`
			Token       session.Token `json:"token"`
			RecipientID uint32        `json:"recipient_id"`
			Content     string        `json:"content"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		if err := s.router.SendMessage(ctx, a.SenderID, a.Token, a.RecipientID, a.Content); err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct{}{})

	case "ReadMessages":
		var a struct {
			UserID uint32        `json:"user_id"`
			Token  session.Token `json:"token"`
			N      int           `json:"n"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		if err := s.router.ReadMessages(ctx, a.UserID, a.Token, a.N); err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct{}{})

	case "DeleteMessage":
		var a struct {
			UserID    uint32        `json:"user_id"`
			Token     session.Token `json:"token"`
			MessageID uint32        `json:"message_id"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		if err := s.router.DeleteMessage(ctx, a.UserID, a.Token, a.MessageID); err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct{}{})

	case "DeleteAccount":
		var a struct {
			UserID uint32        `json:"user_id"`
			Token  session.Token `json:"token"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		if err := s.router.DeleteAccount(ctx, a.UserID, a.Token); err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct{}{})

	case "GetUnreadMessages":
		var a struct {
			UserID uint32        `json:"user_id"`
			Token  session.Token `json:"token"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		entries, err := s.router.GetUnreadMessages(a.UserID, a.Token)
		if err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(entries)

	case "GetMessageInformation":
		var a struct {
			UserID    uint32        `json:"user_id"`
			Token     session.Token `json:"token"`
			MessageID uint32        `json:"message_id"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		readFlag, senderID, contentLength, content, err := s.router.GetMessageInformation(a.UserID, a.Token, a.MessageID)
		if err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct {
			ReadFlag      bool   `json:"read_flag"`
			SenderID      uint32 `json:"sender_id"`
			ContentLength int    `json:"content_length"`
			Content       string `json:"content"`
		}{readFlag, senderID, contentLength, content})

	case "GetUsernameByID":
		var a struct {
			UserID uint32 `json:"user_id"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		name, err := s.router.GetUsernameByID(a.UserID)
		if err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(name)

	case "MarkMessageAsRead":
		var a struct {
			UserID    uint32        `json:"user_id"`
			Token     session.Token `json:"token"`
			MessageID uint32        `json:"message_id"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		if err := s.router.MarkMessageAsRead(ctx, a.UserID, a.Token, a.MessageID); err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct{}{})

	case "GetUserByUsername":
		var a struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return Response{Error: toWireError(err)}
		}
		status, userID, err := s.router.GetUserByUsername(a.Username)
		if err != nil {
			return Response{Error: toWireError(err)}
		}
		return result(struct {
			Found  bool   `json:"found"`
			UserID uint32 `json:"user_id"`
		}{status == router.LookupFound, userID})

	default:
		return Response{Error: toWireError(fmt.Errorf("clientapi: unknown method %q", req.Method))}
	}
}

func result(v interface{}) Response {
	b, err := json.Marshal(v)
	if err != nil {
		return Response{Error: toWireError(err)}
	}
	return Response{Result: b}
}
