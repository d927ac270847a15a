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
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// From https://tools.ietf.org/html/rfc6455#section-1.3
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const secWSKeyLength = 16

// GenerateKey produces a 16-byte cryptographically random value, base64
// encoded, suitable for the Sec-WebSocket-Key header.
func GenerateKey() (string, error) {
	key := make([]byte, secWSKeyLength)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// acceptKey computes base64(sha1(key ++ wsGUID)).
func acceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(wsGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// AcceptResult is returned by Accept and Connect. Stream is always
// present; Conn is nil when Config.Detached is set, in which case the
// caller owns the raw stream and no read pump or listeners were
// attached.
type AcceptResult struct {
	Stream net.Conn
	Conn   *Connection
}

// Accept validates a server-side Upgrade request, writes the 101
// response (or a 400 on rejection), and returns a Connection ready for
// Listen. req.Header carries the request's headers exactly as received;
// residual is any bytes the HTTP parser read past the end of the
// request headers (which belong to the framed stream, not to HTTP) and
// are pushed back to the front before framing begins.
func Accept(req *Request, stream net.Conn, residual []byte, cfg Config) (*AcceptResult, error) {
	cfg = cfg.withDefaults()

	if !headerContains(req.Header, "Upgrade", "websocket") {
		return nil, rejectServer(stream, newHandshakeRejected(ReasonMissingUpgrade, "Upgrade header must be \"websocket\""))
	}
	if !headerContains(req.Header, "Connection", "Upgrade") {
		return nil, rejectServer(stream, newHandshakeRejected(ReasonMissingConnection, "Connection header must contain \"Upgrade\""))
	}
	key := strings.TrimSpace(req.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return nil, rejectServer(stream, newHandshakeRejected(ReasonMissingKey, "Sec-WebSocket-Key is missing"))
	}
	if v := req.Header.Get("Sec-WebSocket-Version"); v != "" && v != "13" {
		return nil, rejectServer(stream, newHandshakeRejected(ReasonBadVersion, "unsupported Sec-WebSocket-Version %q", v))
	}
	if err := checkOrigin(req, cfg); err != nil {
		return nil, rejectServer(stream, newHandshakeRejected(ReasonOriginNotAllowed, "%v", err))
	}

	subprotocol, err := negotiateSubprotocol(req.Header.Get("Sec-WebSocket-Protocol"), cfg.SupportedSubprotocols)
	if err != nil {
		return nil, rejectServer(stream, err)
	}

	if cfg.Authenticator != nil {
		if err := cfg.Authenticator.Authenticate(req); err != nil {
			return nil, rejectServer(stream, newHandshakeRejected(ReasonAuthenticationFailed, "%v", err))
		}
	}

	var resp strings.Builder
	resp.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	resp.WriteString("Upgrade: websocket\r\n")
	resp.WriteString("Connection: Upgrade\r\n")
	resp.WriteString("Sec-WebSocket-Accept: ")
	resp.WriteString(acceptKey(key))
	resp.WriteString("\r\n")
	if subprotocol != "" {
		resp.WriteString("Sec-WebSocket-Protocol: ")
		resp.WriteString(subprotocol)
		resp.WriteString("\r\n")
	}
	resp.WriteString("\r\n")

	if _, err := stream.Write([]byte(resp.String())); err != nil {
		return nil, err
	}

	if cfg.Detached {
		return &AcceptResult{Stream: stream}, nil
	}

	browser := strings.HasPrefix(req.UserAgent, "Mozilla/")
	conn := newConnection(stream, connParams{
		remoteMustMask:   true,
		localShouldMask:  false,
		subprotocol:      subprotocol,
		remoteAddr:       req.RemoteAddr,
		browser:          browser,
		nonceForConnID:   key,
		cfg:              cfg,
	})
	conn.recv.pushFront(residual)
	return &AcceptResult{Stream: stream, Conn: conn}, nil
}

// Connect validates a client-side Upgrade response against the nonce
// originally sent and returns a Connection ready for Listen.
func Connect(resp *Response, stream net.Conn, residual []byte, originalKey string, cfg Config) (*AcceptResult, error) {
	cfg = cfg.withDefaults()

	if resp.StatusCode != 101 {
		return nil, newHandshakeRejected(ReasonBadStatus, "expected HTTP 101, got %d", resp.StatusCode)
	}
	if !headerContains(resp.Header, "Connection", "upgrade") {
		return nil, newHandshakeRejected(ReasonMissingConnection, "Connection header must contain \"upgrade\"")
	}
	if !headerContains(resp.Header, "Upgrade", "websocket") {
		return nil, newHandshakeRejected(ReasonMissingUpgrade, "Upgrade header must be \"websocket\"")
	}
	if v := resp.Header.Get("Sec-WebSocket-Version"); v != "" && v != "13" {
		return nil, newHandshakeRejected(ReasonBadVersion, "unsupported Sec-WebSocket-Version %q", v)
	}
	accept := resp.Header.Get("Sec-WebSocket-Accept")
	if accept == "" || accept != acceptKey(originalKey) {
		return nil, newHandshakeRejected(ReasonBadAccept, "Sec-WebSocket-Accept does not match the sent nonce")
	}

	subprotocol := resp.Header.Get("Sec-WebSocket-Protocol")

	if cfg.Detached {
		return &AcceptResult{Stream: stream}, nil
	}

	conn := newConnection(stream, connParams{
		remoteMustMask:  false,
		localShouldMask: true,
		subprotocol:     subprotocol,
		remoteAddr:      stream.RemoteAddr().String(),
		nonceForConnID:  originalKey,
		cfg:             cfg,
	})
	conn.recv.pushFront(residual)
	return &AcceptResult{Stream: stream, Conn: conn}, nil
}

// rejectServer writes a minimal 400 response before returning err,
// grounded on the teacher's wsReturnHTTPError and on SPEC_FULL.md's
// scenario 2 ("the server helper replies with HTTP/1.1 400 Bad
// Request"). The caller is still responsible for closing the stream.
func rejectServer(stream net.Conn, err error) error {
	body := "HTTP/1.1 400 Bad Request\r\nSec-WebSocket-Version: 13\r\nConnection: close\r\n\r\n"
	_, _ = stream.Write([]byte(body))
	return err
}

// headerContains reports whether header `name` contains a comma/space
// separated token equal to `value`, case-insensitively. Grounded on the
// teacher's wsHeaderContains.
func headerContains(header http.Header, name, value string) bool {
	for _, line := range header.Values(name) {
		for _, tok := range strings.Split(line, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), value) {
				return true
			}
		}
	}
	return false
}

// negotiateSubprotocol splits the client's offered Sec-WebSocket-Protocol
// header on commas, preserves order, and returns the first offered
// protocol that's also in supported. An empty offered header is not an
// error: no subprotocol was requested, and the result is "".
func negotiateSubprotocol(offeredHeader string, supported []string) (string, error) {
	offeredHeader = strings.TrimSpace(offeredHeader)
	if offeredHeader == "" {
		return "", nil
	}
	if len(supported) == 0 {
		return "", newHandshakeRejected(ReasonUnexpectedSubprotocolRequest,
			"client offered subprotocols but the server supports none")
	}
	supportedSet := make(map[string]bool, len(supported))
	for _, s := range supported {
		supportedSet[s] = true
	}
	for _, tok := range strings.Split(offeredHeader, ",") {
		name := strings.TrimSpace(tok)
		if supportedSet[name] {
			return name, nil
		}
	}
	return "", newHandshakeRejected(ReasonNoMatchingSubprotocol,
		"none of the client's offered subprotocols (%s) are supported", offeredHeader)
}

// checkOrigin mirrors the teacher's srvWebsocket.checkOrigin: if neither
// SameOrigin nor AllowedOrigins is configured, every origin is accepted.
func checkOrigin(req *Request, cfg Config) error {
	if !cfg.SameOrigin && len(cfg.AllowedOrigins) == 0 {
		return nil
	}
	origin := req.Header.Get("Origin")
	if origin == "" {
		return newHandshakeRejected(ReasonOriginNotAllowed, "Origin header missing")
	}
	u, err := url.ParseRequestURI(origin)
	if err != nil {
		return err
	}
	if cfg.SameOrigin {
		rh, _, err := net.SplitHostPort(req.Host)
		if err != nil {
			rh = req.Host
		}
		if !strings.EqualFold(u.Hostname(), rh) {
			return newHandshakeRejected(ReasonOriginNotAllowed, "origin %q is not the same as host %q", origin, req.Host)
		}
	}
	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			if strings.EqualFold(allowed, origin) {
				return nil
			}
		}
		return newHandshakeRejected(ReasonOriginNotAllowed, "origin %q is not in the allowed list", origin)
	}
	return nil
}
