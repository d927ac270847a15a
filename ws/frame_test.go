// Copyright 2020 The NATS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ws

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestAcceptKeyVector(t *testing.T) {
	// From https://tools.ietf.org/html/rfc6455#section-1.3
	require_Equal(t, acceptKey("dGhlIHNhbXBsZSBub25jZQ=="), "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
}

func TestEncodeDecodeRoundTripMasked(t *testing.T) {
	payload := []byte("hello from a client")
	encoded, err := encodeFrame(OpText, append([]byte(nil), payload...), true)
	require_NoError(t, err)

	frame, n, err := decodeFrame(encoded, true)
	require_NoError(t, err)
	require_Len(t, n, len(encoded))
	require_True(t, frame.Fin)
	require_True(t, frame.Masked)
	require_Equal(t, string(frame.Payload), string(payload))
}

func TestEncodeDecodeRoundTripUnmasked(t *testing.T) {
	payload := []byte("hello from a server")
	encoded, err := encodeFrame(OpBinary, append([]byte(nil), payload...), false)
	require_NoError(t, err)

	frame, n, err := decodeFrame(encoded, false)
	require_NoError(t, err)
	require_Len(t, n, len(encoded))
	require_False(t, frame.Masked)
	require_Equal(t, string(frame.Payload), string(payload))
}

func TestDecodeFrameRejectsMissingMask(t *testing.T) {
	encoded, err := encodeFrame(OpText, []byte("x"), false)
	require_NoError(t, err)
	_, _, err = decodeFrame(encoded, true)
	require_Error(t, err)
	if pv := (*ProtocolViolation)(nil); !errors.As(err, &pv) {
		t.Fatalf("expected *ProtocolViolation, got %T", err)
	}
}

func TestDecodeFrameRejectsUnexpectedMask(t *testing.T) {
	encoded, err := encodeFrame(OpText, []byte("x"), true)
	require_NoError(t, err)
	_, _, err = decodeFrame(encoded, false)
	require_Error(t, err)
	if pv := (*ProtocolViolation)(nil); !errors.As(err, &pv) {
		t.Fatalf("expected *ProtocolViolation, got %T", err)
	}
}

func TestDecodeFrameNeedsMoreBytes(t *testing.T) {
	encoded, err := encodeFrame(OpBinary, bytes.Repeat([]byte{0x42}, 200), true)
	require_NoError(t, err)

	for n := 0; n < len(encoded)-1; n++ {
		_, _, err := decodeFrame(encoded[:n], true)
		if err != errNeedMoreBytes {
			t.Fatalf("at prefix length %d: expected errNeedMoreBytes, got %v", n, err)
		}
	}
	_, consumed, err := decodeFrame(encoded, true)
	require_NoError(t, err)
	require_Len(t, consumed, len(encoded))
}

func TestDecodeFrameBoundaryPayloadLengths(t *testing.T) {
	for _, size := range []int{0, 1, 125, 126, 65535, 65536} {
		payload := bytes.Repeat([]byte{0x7}, size)
		encoded, err := encodeFrame(OpBinary, append([]byte(nil), payload...), true)
		require_NoError(t, err)

		frame, n, err := decodeFrame(encoded, true)
		require_NoError(t, err)
		require_Len(t, n, len(encoded))
		require_Len(t, len(frame.Payload), size)
		if !bytes.Equal(frame.Payload, payload) {
			t.Fatalf("payload mismatch at size %d", size)
		}
	}
}

func TestDecodeFrameRejectsHugePayloadLength(t *testing.T) {
	// 127-length form with the high 32 bits of the 64-bit length set:
	// this codec refuses payloads >= 2^32 without ever allocating one.
	buf := make([]byte, 14)
	buf[0] = finBit | byte(OpBinary)
	buf[1] = maskBit | 127
	binary.BigEndian.PutUint32(buf[2:6], 1)
	binary.BigEndian.PutUint32(buf[6:10], 0)
	copy(buf[10:14], []byte{0, 0, 0, 0})

	_, _, err := decodeFrame(buf, true)
	require_Error(t, err)
	if pv := (*ProtocolViolation)(nil); !errors.As(err, &pv) {
		t.Fatalf("expected *ProtocolViolation, got %T", err)
	}
}

func TestDecodeFrameStreamMisdirection(t *testing.T) {
	_, _, err := decodeFrame([]byte("HTTP/1.1 400 Bad Request"), true)
	require_Error(t, err)
	if _, ok := err.(*StreamMisdirection); !ok {
		t.Fatalf("expected *StreamMisdirection, got %T", err)
	}
}

func TestUnmaskRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 3, 15, 16, 17, 63, 64, 1000} {
		payload := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x12}, (size/4)+1)[:size]
		original := append([]byte(nil), payload...)
		var key [4]byte
		copy(key[:], []byte{0x11, 0x22, 0x33, 0x44})

		unmask(payload, key)
		if size > 0 && bytes.Equal(payload, original) {
			t.Fatalf("size %d: masking left payload unchanged", size)
		}
		unmask(payload, key) // XOR is its own inverse
		if !bytes.Equal(payload, original) {
			t.Fatalf("size %d: double unmask did not restore original", size)
		}
	}
}

func TestEncodeCloseBody(t *testing.T) {
	body := encodeCloseBody(CloseNormal, "bye")
	require_Len(t, len(body), 5)
	require_Equal(t, string(body[2:]), "bye")
	code := CloseCode(binary.BigEndian.Uint16(body))
	if code != CloseNormal {
		t.Fatalf("expected CloseNormal, got %v", code)
	}
}

func TestMalformedCloseBodyOneByte(t *testing.T) {
	// A 1-byte CLOSE payload can't carry a 2-byte status code; decodeFrame
	// still succeeds (the codec doesn't special-case CLOSE), leaving the
	// short-payload handling to Connection.handleClose.
	encoded, err := encodeFrame(OpClose, []byte{0x03}, true)
	require_NoError(t, err)
	frame, _, err := decodeFrame(encoded, true)
	require_NoError(t, err)
	require_Len(t, len(frame.Payload), 1)
}
