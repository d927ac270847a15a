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
	"net/http"
	"time"

	"github.com/pion/logging"
)

// Config is the factory configuration shared by Accept and Connect. The
// zero value is usable: DefaultConfig fills in the documented defaults.
type Config struct {
	// KeepAlive enables outbound PINGs, client side only, per
	// spec.md §4.3 and §6.
	KeepAlive bool
	// KeepAliveInterval is the base period between PINGs. Defaults to
	// 5 seconds.
	KeepAliveInterval time.Duration
	// KeepAliveJitter bounds a random amount subtracted from each
	// firing of the keepalive timer, so that many connections opened
	// at once don't all ping in lockstep. Defaults to 250ms.
	KeepAliveJitter time.Duration

	// AutoPong replies to an inbound PING with a PONG of the same
	// payload automatically. Defaults to true. See SPEC_FULL.md §13.
	AutoPong bool

	// SupportedSubprotocols is the server's ordered set of supported
	// Sec-WebSocket-Protocol values, used for negotiation in Accept.
	SupportedSubprotocols []string

	// AllowedOrigins, when non-empty, restricts Accept to requests
	// whose Origin header resolves to one of these origins. SameOrigin,
	// when true, additionally requires the Origin to match the
	// request's own Host. Both empty/false disables origin checking.
	// Grounded on the teacher's srvWebsocket.checkOrigin.
	AllowedOrigins []string
	SameOrigin     bool

	// HandshakeTimeout is carried in the configuration but is not read
	// by Accept or Connect; neither of them applies a timeout.
	HandshakeTimeout time.Duration

	// MaxControlPayload bounds PING/PONG/CLOSE payloads. Defaults to
	// 125, the RFC 6455 maximum; a larger incoming control payload is a
	// ProtocolViolation.
	MaxControlPayload int

	// MaxBrowserFrameSize caps a single outbound frame's payload when
	// the peer's User-Agent looked like a browser (grounded on the
	// teacher's wsFrameSizeForBrowsers). Zero disables the cap.
	MaxBrowserFrameSize int

	// ControlFrameRateLimit and ControlFrameBurst configure the
	// per-connection inbound control-frame limiter (x/time/rate). Zero
	// RateLimit disables the limiter.
	ControlFrameRateLimit float64
	ControlFrameBurst     int

	// Authenticator, when non-nil, is consulted during Accept after the
	// generic handshake checks pass. See SPEC_FULL.md §12.
	Authenticator Authenticator

	// Relay, when non-nil, receives a best-effort copy of every
	// dispatched text/binary event. See SPEC_FULL.md §12.
	Relay AuditPublisher

	// Detached returns the raw stream from Accept/Connect with no
	// Connection built and no read pump started, for proxy pass-through.
	Detached bool

	// LoggerFactory supplies a pion/logging.LeveledLogger per
	// connection, scoped by connection ID. Nil uses a no-op logger.
	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns the documented factory defaults.
func DefaultConfig() Config {
	return Config{
		KeepAlive:             true,
		KeepAliveInterval:     5 * time.Second,
		KeepAliveJitter:       250 * time.Millisecond,
		AutoPong:              true,
		MaxControlPayload:     maxControlPayload,
		ControlFrameRateLimit: 20,
		ControlFrameBurst:     40,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.KeepAliveInterval == 0 {
		out.KeepAliveInterval = 5 * time.Second
	}
	if out.MaxControlPayload == 0 {
		out.MaxControlPayload = maxControlPayload
	}
	return out
}

func (c *Config) logger(connID string) logging.LeveledLogger {
	if c.LoggerFactory == nil {
		return noopLogger{}
	}
	return c.LoggerFactory.NewLogger("ws." + connID)
}

// Request is the minimal view of an HTTP/1.1 Upgrade request this
// package needs: the headers that drive handshake validation and
// subprotocol negotiation, and enough addressing/auth context for
// Authenticator and logging. The embedding program's HTTP layer
// (explicitly out of scope here, see spec.md §1) is responsible for
// producing it, typically straight from an *http.Request after
// hijacking the connection.
type Request struct {
	Header     http.Header
	Host       string
	RemoteAddr string
	UserAgent  string
	Cookies    []*http.Cookie
}

// Response is the minimal view of an HTTP/1.1 Upgrade response the
// client side needs to validate.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Authenticator runs after the generic handshake checks succeed and
// before the 101 response is written. Returning an error rejects the
// handshake with HandshakeRejected{Reason: ReasonAuthenticationFailed}.
type Authenticator interface {
	Authenticate(r *Request) error
}

// AuditPublisher receives a best-effort copy of every text/binary event
// dispatched by a Connection. Publish errors are logged, never fatal.
type AuditPublisher interface {
	Publish(subject string, connID string, payload []byte) error
}
