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
Package wire implements the binary framing used for peer-to-peer Raft RPCs.

Message Format:

	+--------+--------+--------+--------+--------+--------+--------+--------+...
	| Magic  | Version| MsgType| Flags  |          Length (4B)     | Payload...
	+--------+--------+--------+--------+--------+--------+--------+--------+...

  - Magic (1 byte): 0xCF
  - Version (1 byte): 0x01
  - MsgType (1 byte): RPC identifier
  - Flags (1 byte): FlagCompressed marks a Snappy-compressed payload
  - Length (4 bytes, big-endian): length of the payload as written on the wire
  - Payload: JSON-encoded RPC body, optionally Snappy-compressed
*/
package wire

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/golang/snappy"
)

const (
	MagicByte       byte = 0xCF
	ProtocolVersion byte = 0x01

	// MaxMessageSize bounds a single frame's payload (16 MiB).
	MaxMessageSize = 16 * 1024 * 1024

	HeaderSize = 8

	// CompressThreshold is the uncompressed payload size above which
	// WriteMessage transparently Snappy-compresses the frame.
	CompressThreshold = 512
)

// MessageType identifies the RPC carried by a frame.
type MessageType byte

const (
	MsgRequestVote         MessageType = 0x01
	MsgRequestVoteResp     MessageType = 0x02
	MsgAppendEntries       MessageType = 0x03
	MsgAppendEntriesResp   MessageType = 0x04
	MsgClientPropose       MessageType = 0x05
	MsgClientProposeResp   MessageType = 0x06
)

// MessageFlag marks per-frame wire transforms.
type MessageFlag byte

const (
	FlagNone       MessageFlag = 0x00
	FlagCompressed MessageFlag = 0x01
)

// Header is the fixed 8-byte frame header.
type Header struct {
	Magic   byte
	Version byte
	Type    MessageType
	Flags   MessageFlag
	Length  uint32
}

// Message is a complete decoded frame: a header plus its raw (already
// decompressed) payload.
type Message struct {
	Header  Header
	Payload []byte
}

var (
	ErrInvalidMagic    = errors.New("wire: invalid magic byte")
	ErrInvalidVersion  = errors.New("wire: unsupported protocol version")
	ErrMessageTooLarge = errors.New("wire: message exceeds maximum size")
)

func writeHeader(w io.Writer, h Header) error {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Magic
	buf[1] = h.Version
	buf[2] = byte(h.Type)
	buf[3] = byte(h.Flags)
	binary.BigEndian.PutUint32(buf[4:], h.Length)
	_, err := w.Write(buf)
	return err
}

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	h := Header{
		Magic:   buf[0],
		Version: buf[1],
		Type:    MessageType(buf[2]),
		Flags:   MessageFlag(buf[3]),
		Length:  binary.BigEndian.Uint32(buf[4:]),
	}
	if h.Magic != MagicByte {
		return Header{}, ErrInvalidMagic
	}
	if h.Version != ProtocolVersion {
		return Header{}, ErrInvalidVersion
	}
	if h.Length > MaxMessageSize {
		return Header{}, ErrMessageTooLarge
	}
	return h, nil
}

// WriteMessage frames and writes payload, transparently Snappy-compressing
// it first when it is larger than CompressThreshold.
func WriteMessage(w io.Writer, msgType MessageType, payload []byte) error {
	flags := FlagNone
	body := payload
	if len(payload) > CompressThreshold {
		body = snappy.Encode(nil, payload)
		flags = FlagCompressed
	}

	h := Header{
		Magic:   MagicByte,
		Version: ProtocolVersion,
		Type:    msgType,
		Flags:   flags,
		Length:  uint32(len(body)),
	}
	if err := writeHeader(w, h); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// ReadMessage reads one complete frame, transparently decompressing it.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, h.Length)
	if h.Length > 0 {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
	}

	payload := raw
	if h.Flags&FlagCompressed != 0 {
		payload, err = snappy.Decode(nil, raw)
		if err != nil {
			return nil, err
		}
	}

	return &Message{Header: h, Payload: payload}, nil
}
