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
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/deadline"
	"golang.org/x/time/rate"
)

// CloseEvent is the payload of the terminal end() event: Code and Reason
// are both nil when the peer vanished without sending a CLOSE frame, or
// when the CLOSE frame's payload was too short to carry them.
type CloseEvent struct {
	Code   *CloseCode
	Reason *string
}

// Handlers is the observable event surface of a Connection, exactly the
// set enumerated in spec.md §6. Listen installs them and starts the read
// pump; until Listen is called, no bytes are read from the stream — this
// is the deferral spec.md §4.3/§9 calls for, so the caller always has a
// chance to install handlers before anything can be dispatched.
type Handlers struct {
	OnText            func(string)
	OnBinary          func([]byte)
	OnPing            func([]byte)
	OnPong            func([]byte)
	OnConnectionReset func()
	OnError           func(error)
	OnEnd             func(CloseEvent)
}

type connParams struct {
	remoteMustMask  bool
	localShouldMask bool
	subprotocol     string
	remoteAddr      string
	browser         bool
	nonceForConnID  string
	cfg             Config
}

// Connection owns a byte-stream endpoint exclusively for its lifetime
// and drives the RFC 6455 state machine over it. See spec.md §3.
type Connection struct {
	mu sync.Mutex

	stream net.Conn
	recv   recvBuffer

	remoteMustMask  bool
	localShouldMask bool
	subprotocol     string
	remoteAddr      string
	browser         bool
	cfg             Config

	id  string
	log logging.LeveledLogger

	closeWritten  bool
	closeReceived bool
	endEmitted    bool
	resetEmitted  bool
	destroyed     bool
	closeCode     *CloseCode
	closeReason   *string

	framesReceived uint64
	framesSent     uint64

	handlers Handlers
	listened bool

	controlLimiter *rate.Limiter

	dl *deadline.Deadline
}

func newConnection(stream net.Conn, p connParams) *Connection {
	id := newConnID(p.remoteAddr, p.nonceForConnID)
	c := &Connection{
		stream:          stream,
		remoteMustMask:  p.remoteMustMask,
		localShouldMask: p.localShouldMask,
		subprotocol:     p.subprotocol,
		remoteAddr:      p.remoteAddr,
		browser:         p.browser,
		cfg:             p.cfg,
		id:              id,
		log:             p.cfg.logger(id),
		dl:              deadline.New(),
	}
	if p.cfg.ControlFrameRateLimit > 0 {
		c.controlLimiter = rate.NewLimiter(rate.Limit(p.cfg.ControlFrameRateLimit), p.cfg.ControlFrameBurst)
	}
	return c
}

// ID returns the connection's trace identifier (see ws/ids.go).
func (c *Connection) ID() string { return c.id }

// GetProtocol returns the negotiated subprotocol, or nil if none was
// negotiated.
func (c *Connection) GetProtocol() *string {
	if c.subprotocol == "" {
		return nil
	}
	s := c.subprotocol
	return &s
}

// Listen installs the connection's event handlers and starts the read
// pump. It must be called exactly once, and is the only thing that
// causes any byte to be read from the underlying stream.
func (c *Connection) Listen(h Handlers) {
	c.mu.Lock()
	if c.listened {
		c.mu.Unlock()
		return
	}
	c.listened = true
	c.handlers = h
	c.mu.Unlock()

	if c.localShouldMask && c.cfg.KeepAlive {
		c.startKeepalive()
	}
	go c.readLoop()
}

// Send emits a BINARY frame for a []byte payload or a TEXT frame for a
// string payload (UTF-8 encoded). Any other type is an ApplicationError.
func (c *Connection) Send(data interface{}) error {
	switch v := data.(type) {
	case string:
		return c.sendFrame(OpText, []byte(v))
	case []byte:
		return c.sendFrame(OpBinary, v)
	default:
		return newApplicationError("Send accepts string or []byte, got %T", data)
	}
}

func (c *Connection) sendFrame(opcode OpCode, payload []byte) error {
	if c.browser && c.cfg.MaxBrowserFrameSize > 0 && len(payload) > c.cfg.MaxBrowserFrameSize {
		// This core never emits continuation frames (spec.md §4.2), so a
		// browser-safe cap can only refuse an oversized single frame, not
		// fragment it. See SPEC_FULL.md §11 item 5.
		return newApplicationError("payload of %d bytes exceeds the %d byte cap configured for browser peers",
			len(payload), c.cfg.MaxBrowserFrameSize)
	}
	return c.writeFrame(opcode, payload)
}

func (c *Connection) writeFrame(opcode OpCode, payload []byte) error {
	buf, err := encodeFrame(opcode, payload, c.localShouldMask)
	if err != nil {
		return err
	}
	c.mu.Lock()
	_, err = c.stream.Write(buf)
	if err == nil {
		c.framesSent++
	}
	c.mu.Unlock()
	if err != nil {
		c.handleTransportError(err)
	}
	return err
}

// End sends a CLOSE frame with code NORMAL and an optional UTF-8 reason.
// At most one CLOSE is ever sent; later calls are no-ops.
func (c *Connection) End(reason string) error {
	c.mu.Lock()
	if c.closeWritten {
		c.mu.Unlock()
		return nil
	}
	c.closeWritten = true
	c.mu.Unlock()
	return c.writeFrame(OpClose, encodeCloseBody(CloseNormal, reason))
}

// Destroy detaches from the stream and force-closes it without sending a
// CLOSE frame. If a terminal event hasn't fired yet, it fires now with
// no code or reason. Idempotent. The destroyed flag tells the read loop's
// concurrently unblocking Read (now returning "use of closed network
// connection") that this is a local, intentional teardown, not a peer
// vanishing — it must not be reported as connectionReset.
func (c *Connection) Destroy() error {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
	c.stopKeepalive()
	err := c.stream.Close()
	c.terminate(nil, nil)
	return err
}

func (c *Connection) readLoop() {
	buf := make([]byte, 4096)
	for {
		if c.isTerminal() {
			return
		}
		n, err := c.stream.Read(buf)
		if n > 0 {
			c.recv.append(buf[:n])
			c.drain()
		}
		if err != nil {
			c.handleTransportError(err)
			return
		}
	}
}

// drain decodes and dispatches as many complete frames as are currently
// buffered, greedily, until the codec reports it needs more bytes or
// dispatch says to stop decoding. A CLOSE frame stops decoding without
// making the connection terminal: per spec.md §4.3's state table, the
// Terminal transition for a received CLOSE only happens on the
// subsequent transport EOF, so the caller (readLoop) must keep reading
// until that EOF arrives at handleTransportError.
func (c *Connection) drain() {
	for {
		if c.isTerminal() {
			return
		}
		frame, n, err := decodeFrame(c.recv.unparsed(), c.remoteMustMask)
		if err == errNeedMoreBytes {
			return
		}
		if err != nil {
			c.fatal(err)
			return
		}
		c.recv.advance(n)
		c.framesReceived++

		if !frame.Fin {
			// Continuation reassembly is out of scope (spec.md §1); a
			// non-final frame drives a graceful local close instead.
			_ = c.End("")
			continue
		}
		if c.dispatch(frame) {
			return
		}
	}
}

// dispatch handles one complete frame. It returns true when drain should
// stop decoding further frames for now (a CLOSE was received, or a fatal
// error already drove the connection to its terminal state) — it does
// not by itself mean the transport read loop should exit.
func (c *Connection) dispatch(frame Frame) (stopDecoding bool) {
	if frame.Opcode.isControl() && !c.checkControlFrame(frame) {
		return true
	}
	switch frame.Opcode {
	case OpText:
		c.emitText(frame.Payload)
	case OpBinary:
		c.emitBinary(frame.Payload)
	case OpPing:
		if h := c.handlers.OnPing; h != nil {
			h(frame.Payload)
		}
		if c.cfg.AutoPong {
			c.writeFrame(OpPong, frame.Payload)
		}
	case OpPong:
		if h := c.handlers.OnPong; h != nil {
			h(frame.Payload)
		}
	case OpClose:
		c.handleClose(frame.Payload)
		return true
	default:
		c.fatal(newProtocolViolation("unknown opcode 0x%x", byte(frame.Opcode)))
		return true
	}
	return false
}

func (c *Connection) checkControlFrame(frame Frame) bool {
	if len(frame.Payload) > c.cfg.MaxControlPayload {
		c.fatal(newProtocolViolation("control frame payload of %d bytes exceeds the %d byte maximum",
			len(frame.Payload), c.cfg.MaxControlPayload))
		return false
	}
	if c.controlLimiter != nil && !c.controlLimiter.Allow() {
		c.fatal(newProtocolViolation("inbound control frame rate exceeded"))
		return false
	}
	return true
}

func (c *Connection) handleClose(payload []byte) {
	c.mu.Lock()
	c.closeReceived = true
	if len(payload) >= 2 {
		code := CloseCode(binary.BigEndian.Uint16(payload))
		reason := string(payload[2:])
		c.closeCode = &code
		c.closeReason = &reason
	}
	c.mu.Unlock()
	_ = c.End("")
	c.closeWriteSide()
}

func (c *Connection) closeWriteSide() {
	type halfCloser interface{ CloseWrite() error }
	if hc, ok := c.stream.(halfCloser); ok {
		_ = hc.CloseWrite()
	}
}

func (c *Connection) emitText(payload []byte) {
	s := string(payload)
	if h := c.handlers.OnText; h != nil {
		h(s)
	}
	c.relay(payload)
}

func (c *Connection) emitBinary(payload []byte) {
	if h := c.handlers.OnBinary; h != nil {
		h(payload)
	}
	c.relay(payload)
}

func (c *Connection) relay(payload []byte) {
	if c.cfg.Relay == nil {
		return
	}
	if err := c.cfg.Relay.Publish("ws.messages", c.id, payload); err != nil {
		c.log.Warnf("audit relay publish failed: %v", err)
	}
}

func (c *Connection) handleTransportError(err error) {
	c.stopKeepalive()
	c.mu.Lock()
	destroyed := c.destroyed
	closeReceived := c.closeReceived
	code, reason := c.closeCode, c.closeReason
	c.mu.Unlock()

	if destroyed {
		// Destroy already closed the stream and terminated the
		// connection; this is that close surfacing on the read loop,
		// not the peer vanishing. terminate is idempotent.
		c.terminate(nil, nil)
		return
	}
	if isResetError(err) || err == io.EOF {
		if !closeReceived {
			c.emitConnectionReset()
			c.terminate(nil, nil)
		} else {
			c.terminate(code, reason)
		}
		return
	}
	c.reportTransportFault(err)
}

// reportTransportFault is the shared path for any non-reset transport
// failure, whether observed on the read loop or on a concurrent Send.
func (c *Connection) reportTransportFault(err error) {
	c.emitError(&TransportError{Cause: err})
	c.mu.Lock()
	code, reason := c.closeCode, c.closeReason
	c.mu.Unlock()
	c.terminate(code, reason)
}

func (c *Connection) fatal(err error) {
	c.emitError(err)
	c.closeWriteSide()
	c.mu.Lock()
	code, reason := c.closeCode, c.closeReason
	c.mu.Unlock()
	c.terminate(code, reason)
}

func (c *Connection) emitError(err error) {
	c.log.Errorf("%v", err)
	if h := c.handlers.OnError; h != nil {
		h(err)
	}
}

func (c *Connection) emitConnectionReset() {
	c.mu.Lock()
	if c.resetEmitted {
		c.mu.Unlock()
		return
	}
	c.resetEmitted = true
	c.mu.Unlock()
	if h := c.handlers.OnConnectionReset; h != nil {
		h()
	}
}

func (c *Connection) terminate(code *CloseCode, reason *string) {
	c.mu.Lock()
	if c.endEmitted {
		c.mu.Unlock()
		return
	}
	c.endEmitted = true
	h := c.handlers.OnEnd
	c.mu.Unlock()
	c.stopKeepalive()
	if h != nil {
		h(CloseEvent{Code: code, Reason: reason})
	}
}

func (c *Connection) isTerminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endEmitted
}

// startKeepalive runs the periodic PING timer. The keepalive goroutine's
// only wake-up sources are its own timer and c.dl, the connection-wide
// deadline.Deadline (spec.md §5: "the keepalive timer is the only
// self-induced wake-up"); stopKeepalive and terminate both cancel it the
// same way a read deadline would cancel a blocked Read.
func (c *Connection) startKeepalive() {
	done := c.dl.Done()
	go func() {
		for {
			d := nextKeepaliveInterval(c.cfg.KeepAliveInterval, c.cfg.KeepAliveJitter)
			t := time.NewTimer(d)
			select {
			case <-t.C:
				if c.isTerminal() {
					return
				}
				c.writeFrame(OpPing, nil)
			case <-done:
				t.Stop()
				return
			}
		}
	}()
}

// stopKeepalive cancels the connection's deadline, which in turn wakes
// and terminates the keepalive goroutine (if one is running) and any
// other code cooperatively waiting on it. Safe to call more than once.
func (c *Connection) stopKeepalive() {
	c.dl.Set(time.Unix(0, 1))
}
