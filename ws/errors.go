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
	"fmt"

	"github.com/pkg/errors"
)

// HandshakeReason enumerates the distinct sub-kinds of a rejected
// handshake, surfaced synchronously from Accept/Connect.
type HandshakeReason int

const (
	ReasonMissingUpgrade HandshakeReason = iota
	ReasonMissingKey
	ReasonBadVersion
	ReasonNoMatchingSubprotocol
	ReasonUnexpectedSubprotocolRequest
	ReasonBadStatus
	ReasonMissingConnection
	ReasonBadAccept
	ReasonAuthenticationFailed
	ReasonOriginNotAllowed
)

func (r HandshakeReason) String() string {
	switch r {
	case ReasonMissingUpgrade:
		return "MissingUpgrade"
	case ReasonMissingKey:
		return "MissingKey"
	case ReasonBadVersion:
		return "BadVersion"
	case ReasonNoMatchingSubprotocol:
		return "NoMatchingSubprotocol"
	case ReasonUnexpectedSubprotocolRequest:
		return "UnexpectedSubprotocolRequest"
	case ReasonBadStatus:
		return "BadStatus"
	case ReasonMissingConnection:
		return "MissingConnection"
	case ReasonBadAccept:
		return "BadAccept"
	case ReasonAuthenticationFailed:
		return "AuthenticationFailed"
	case ReasonOriginNotAllowed:
		return "OriginNotAllowed"
	default:
		return "Unknown"
	}
}

// HandshakeRejected is returned synchronously by Accept/Connect when the
// Upgrade exchange fails validation. The caller is responsible for
// closing the stream. On the server side, Accept has already written a
// 400 Bad Request response for every rejection.
type HandshakeRejected struct {
	Reason  HandshakeReason
	Message string
}

func (e *HandshakeRejected) Error() string {
	return fmt.Sprintf("websocket handshake rejected: %s: %s", e.Reason, e.Message)
}

func newHandshakeRejected(reason HandshakeReason, format string, args ...interface{}) error {
	return errors.WithStack(&HandshakeRejected{Reason: reason, Message: fmt.Sprintf(format, args...)})
}

// ProtocolViolation is fatal: an unmasked frame from a peer required to
// mask, a payload larger than 2^32-1, or an impossible length encoding.
// It drives the connection to its terminal state via error() then end().
type ProtocolViolation struct {
	Message string
}

func (e *ProtocolViolation) Error() string {
	return "websocket protocol violation: " + e.Message
}

func newProtocolViolation(format string, args ...interface{}) error {
	return errors.WithStack(&ProtocolViolation{Message: fmt.Sprintf(format, args...)})
}

// StreamMisdirection fires when the "HT" sniff at the front of the
// receive buffer catches residual HTTP bytes that leaked past the
// upstream HTTP parser.
type StreamMisdirection struct{}

func (e *StreamMisdirection) Error() string {
	return "websocket stream misdirection: buffer begins with \"HT\""
}

// TransportReset classifies a transport error as "the peer vanished
// underneath us" (connection reset, broken pipe, write-after-end, or
// plain EOF without a CLOSE frame). It never reaches the error()
// callback; it drives connectionReset() followed by end().
type TransportReset struct {
	Cause error
}

func (e *TransportReset) Error() string {
	if e.Cause == nil {
		return "websocket transport reset"
	}
	return "websocket transport reset: " + e.Cause.Error()
}

func (e *TransportReset) Unwrap() error { return e.Cause }

// TransportError is any other transport fault. It is reported via
// error() followed by end().
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return "websocket transport error: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ApplicationError reports synchronous misuse of the public API: an
// invalid argument to Send, an out-of-range close code, and similar
// caller mistakes.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	return "websocket application error: " + e.Message
}

func newApplicationError(format string, args ...interface{}) error {
	return errors.WithStack(&ApplicationError{Message: fmt.Sprintf(format, args...)})
}

// errNeedMoreBytes is a sentinel, not a real error: it tells the caller of
// decodeFrame that the buffer doesn't yet hold a full frame. It is never
// surfaced to the application.
var errNeedMoreBytes = errors.New("websocket: need more bytes")
