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

// Package ws takes over an already established byte stream after an
// HTTP/1.1 Upgrade handshake and speaks RFC 6455 framing over it: the
// handshake validator, the frame codec, and the connection state machine
// that drives PING/PONG/CLOSE semantics and masking.
//
// It does not parse HTTP itself, does not terminate TLS, and does not
// reassemble fragmented (continuation) messages; see Accept and Connect
// for the boundary with the HTTP layer.
package ws
