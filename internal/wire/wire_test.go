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

package wire

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteReadMessageSmallUncompressed(t *testing.T) {
	buf := new(bytes.Buffer)
	payload := []byte(`{"term":1}`)

	if err := WriteMessage(buf, MsgRequestVote, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	msg, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Header.Type != MsgRequestVote {
		t.Errorf("expected MsgRequestVote, got %v", msg.Header.Type)
	}
	if msg.Header.Flags != FlagNone {
		t.Errorf("expected small payload to stay uncompressed, got flags %v", msg.Header.Flags)
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Errorf("payload mismatch: got %s want %s", msg.Payload, payload)
	}
}

func TestWriteReadMessageCompressesLargePayload(t *testing.T) {
	buf := new(bytes.Buffer)
	payload := []byte(strings.Repeat("x", CompressThreshold*4))

	if err := WriteMessage(buf, MsgAppendEntries, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	msg, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Header.Flags&FlagCompressed == 0 {
		t.Error("expected large payload to be marked compressed")
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Error("decompressed payload did not round-trip")
	}
}

func TestReadMessageRejectsBadMagic(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := WriteMessage(buf, MsgRequestVote, []byte("x")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[0] = 0x00

	_, err := ReadMessage(bytes.NewReader(corrupted))
	if err != ErrInvalidMagic {
		t.Errorf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadMessageRejectsOversizedLength(t *testing.T) {
	h := Header{Magic: MagicByte, Version: ProtocolVersion, Type: MsgAppendEntries, Length: MaxMessageSize + 1}
	buf := new(bytes.Buffer)
	if err := writeHeader(buf, h); err != nil {
		t.Fatalf("writeHeader: %v", err)
	}

	_, err := ReadMessage(buf)
	if err != ErrMessageTooLarge {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}
