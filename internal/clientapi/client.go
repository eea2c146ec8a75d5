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

package clientapi

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/firefly-oss/chatraft/internal/apperrors"
	"github.com/firefly-oss/chatraft/internal/wire"
)

// Client dials a single chatraft node's client API. It opens one
// connection per Call; callers that redirect after a NotLeader hint
// simply construct a new Client against the hinted address.
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient returns a Client that dials addr with the given per-call
// timeout.
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

// Call issues method with args and decodes the result into out (which
// may be nil if the caller doesn't need the payload). A non-nil
// *apperrors.ChatError is returned for any application-level error
// reported by the node.
func (c *Client) Call(method string, args, out interface{}) error {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("clientapi: dial %s: %w", c.addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	argsBytes, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("clientapi: encode args: %w", err)
	}
	reqBytes, err := json.Marshal(Request{Method: method, Args: argsBytes})
	if err != nil {
		return fmt.Errorf("clientapi: encode request: %w", err)
	}
	if err := wire.WriteMessage(conn, wire.MsgClientPropose, reqBytes); err != nil {
		return fmt.Errorf("clientapi: write request: %w", err)
	}

	msg, err := wire.ReadMessage(conn)
	if err != nil {
		return fmt.Errorf("clientapi: read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(msg.Payload, &resp); err != nil {
		return fmt.Errorf("clientapi: decode response: %w", err)
	}
	if resp.Error != nil {
		e := &apperrors.ChatError{
			Category: apperrors.Category(resp.Error.Category),
			Message:  resp.Error.Message,
			Detail:   resp.Error.Detail,
			Hint:     resp.Error.Hint,
		}
		return e
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("clientapi: decode result: %w", err)
		}
	}
	return nil
}
