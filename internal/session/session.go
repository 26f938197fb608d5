// Package session implements the per-connection transport of spec
// §4.3: a framed read loop, a serialized write loop, a heartbeat state
// machine, and a token-bucket rate limiter, grounded on the teacher's
// GameClient (internal/gameserver/client.go) writePump/sendCh pattern.
package session

import (
	"crypto/tls"
	"encoding/binary"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tankwar/server/internal/wire"
)

// Tunables left unspecified by spec §4.3 beyond "treat listed values as
// defaults" (Open Question, recorded in DESIGN.md).
const (
	DefaultPingInterval  = 15 * time.Second
	DefaultPingTimeout   = 10 * time.Second
	DefaultReadTimeout   = 10 * time.Second
	DefaultWriteTimeout  = 5 * time.Second
	DefaultSendQueueSize = 64
	DefaultBucketMax     = 100.0
	DefaultRefillPerSec  = 20.0
)

// MessageHandler is invoked once per dispatched (non-ping) inbound
// frame, on the session's own goroutine — there is no separate
// dispatch goroutine, so handlers must not block on I/O of their own.
type MessageHandler func(kind wire.ClientKind, payload []byte)

// CloseHandler is invoked exactly once when the session's transport is
// torn down, for any reason (peer close, timeout, protocol error,
// explicit Close).
type CloseHandler func()

// Session is one client connection's transport (spec §4.3). All of its
// fields are either immutable after construction or owned by exactly
// one goroutine (the read loop, the write loop, or the heartbeat
// timer), except closed/closeOnce which arbitrate shutdown between
// them and pongTimer, which the read loop and heartbeat share under
// pongMu — mirroring the teacher's GameClient split between a read
// goroutine and a dedicated writePump.
type Session struct {
	conn net.Conn
	id   uint64
	ip   string

	sendCh    chan frame
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	onMessage MessageHandler
	onClose   CloseHandler

	limiter *tokenBucket

	pingInterval time.Duration
	pingTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	pongMu    sync.Mutex
	pongTimer *time.Timer

	bufs *bytePool
}

type frame struct {
	kind    wire.ServerKind
	payload []byte
}

// Config carries the tunables a caller may override; a zero Config
// yields every Default* above.
type Config struct {
	PingInterval  time.Duration
	PingTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	SendQueueSize int
	BucketMax     float64
	RefillPerSec  float64
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	if c.BucketMax <= 0 {
		c.BucketMax = DefaultBucketMax
	}
	if c.RefillPerSec <= 0 {
		c.RefillPerSec = DefaultRefillPerSec
	}
	return c
}

// New wraps conn as a Session. TLS, if desired, must already be
// established on conn (e.g. via tls.Server) before calling New — spec
// §4.3 requires TLS 1.2 minimum, enforced by the listener's
// tls.Config.MinVersion, not by Session itself.
func New(conn net.Conn, id uint64, cfg Config) *Session {
	cfg = cfg.withDefaults()
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	return &Session{
		conn:         conn,
		id:           id,
		ip:           host,
		sendCh:       make(chan frame, cfg.SendQueueSize),
		closeCh:      make(chan struct{}),
		limiter:      newTokenBucket(cfg.BucketMax, cfg.RefillPerSec),
		pingInterval: cfg.PingInterval,
		pingTimeout:  cfg.PingTimeout,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		bufs:         newBytePool(256),
	}
}

// ID returns the session's server-assigned identifier.
func (s *Session) ID() uint64 { return s.id }

// RemoteIP returns the peer's address without its port.
func (s *Session) RemoteIP() string { return s.ip }

// MinTLSVersion is the floor spec §4.3 requires of the listener's TLS
// configuration.
const MinTLSVersion = tls.VersionTLS12

// SetMessageHandler registers the session's callbacks. Must be called
// once before Start (spec §4.3 "registered once before start").
func (s *Session) SetMessageHandler(onMsg MessageHandler, onClose CloseHandler) {
	s.onMessage = onMsg
	s.onClose = onClose
}

// Start launches the write pump and heartbeat goroutines and runs the
// read loop on the calling goroutine until the connection ends. Callers
// typically invoke Start in its own goroutine per accepted connection.
func (s *Session) Start() {
	go s.writePump()
	go s.heartbeat()
	s.readLoop()
}

// Deliver enqueues an outbound frame (spec §4.3 "deliver"). If the
// queue is full the session is treated as misbehaving and closed; a
// closed session silently drops further Deliver calls.
func (s *Session) Deliver(kind wire.ServerKind, payload []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.sendCh <- frame{kind, payload}:
	default:
		slog.Warn("session outbound queue full, closing", "session", s.id, "ip", s.ip)
		s.Close()
	}
}

// Close idempotently tears down the transport (spec §4.3
// "close_session").
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
		s.pongMu.Lock()
		if s.pongTimer != nil {
			s.pongTimer.Stop()
		}
		s.pongMu.Unlock()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// readLoop implements spec §4.3's read path and slow-loris defense: a
// READ_TIMEOUT window opens once a header has arrived, bounding how
// long the body may take; the window between frames is the heartbeat
// period plus the pong timeout plus READ_TIMEOUT, since a live
// connection is expected to produce at least a ping in that span.
func (s *Session) readLoop() {
	defer s.Close()

	idleWindow := s.pingInterval + s.pingTimeout + s.readTimeout
	for {
		if s.closed.Load() {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(idleWindow))
		h, err := wire.ReadHeader(s.conn)
		if err != nil {
			return
		}

		kind, err := wire.ValidateClientFrame(h)
		if err != nil {
			s.Deliver(wire.SBadMessage, nil)
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		payload := make([]byte, h.Length)
		if _, err := readFull(s.conn, payload); err != nil {
			return
		}

		switch kind {
		case wire.KPing:
			s.Deliver(wire.SPingResponse, nil)
			continue
		case wire.KPingResponse:
			s.clearPong()
			continue
		}

		if !s.limiter.allow(kindCost(kind, len(payload))) {
			s.Deliver(wire.SRateLimited, nil)
			continue
		}

		if s.onMessage != nil {
			s.onMessage(kind, payload)
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// writePump is the session's sole writer goroutine (spec §4.3
// "exactly-one writer is in flight at a time"), grounded on the
// teacher's GameClient.writePump.
func (s *Session) writePump() {
	for {
		select {
		case f := <-s.sendCh:
			if err := s.writeFrame(f); err != nil {
				s.Close()
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// writeFrame validates f, assembles header+payload into one pooled
// buffer, and issues a single Write (grounded on the teacher's
// BytePool-backed writePump, which batches to avoid per-packet
// allocation).
func (s *Session) writeFrame(f frame) error {
	if _, err := wire.ValidateServerFrame(wire.Header{Kind: byte(f.kind), Length: uint32(len(f.payload))}); err != nil {
		return err
	}

	buf := s.bufs.get(5 + len(f.payload))
	buf[0] = byte(f.kind)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(f.payload)))
	copy(buf[5:], f.payload)

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	_, err := s.conn.Write(buf)
	s.bufs.put(buf)
	return err
}

// heartbeat drives spec §4.3's ping/pong state machine: every
// pingInterval it sends Ping and arms a pong-wait timer; if the timer
// fires before a PingResponse clears it, PingTimeout is sent and the
// session closes.
func (s *Session) heartbeat() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Deliver(wire.SPing, nil)
			s.armPong()
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) armPong() {
	s.pongMu.Lock()
	defer s.pongMu.Unlock()
	if s.pongTimer != nil {
		s.pongTimer.Stop()
	}
	s.pongTimer = time.AfterFunc(s.pingTimeout, func() {
		s.Deliver(wire.SPingTimeout, nil)
		s.Close()
	})
}

func (s *Session) clearPong() {
	s.pongMu.Lock()
	defer s.pongMu.Unlock()
	if s.pongTimer != nil {
		s.pongTimer.Stop()
		s.pongTimer = nil
	}
}
