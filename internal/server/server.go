// Package server implements the server root (spec §4.7 + §6 admin
// console): the accept loop, IP ban enforcement, session accounting,
// and the dispatch table that routes each framed message to the auth,
// social or game subsystem, grounded on the teacher's
// internal/gameserver.Server (accept loop, wg.Go-supervised
// connection goroutines, TCP keepalive).
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tankwar/server/internal/config"
	"github.com/tankwar/server/internal/match"
	"github.com/tankwar/server/internal/matchmaker"
	"github.com/tankwar/server/internal/registry"
	"github.com/tankwar/server/internal/session"
	"github.com/tankwar/server/internal/store"
)

// Server is the top-level process aggregate: one listener, the shared
// user registry and matchmaker, the reference store, and the
// in-memory ban tables spec §5 calls "process-wide, guarded by a
// mutex, used at accept and at auth."
type Server struct {
	cfg config.Server
	st  store.Store
	reg *registry.UserRegistry
	mm  *matchmaker.Matchmaker

	listener     net.Listener
	tlsConfig    *tls.Config
	identityHash string

	nextSessionID atomic.Uint64
	sessionCount  atomic.Int64

	banMu    sync.RWMutex
	userBans map[string]store.BanEntry
	ipBans   map[string]store.BanEntry

	admin *adminHandler
}

// New builds a Server over already-constructed core dependencies.
// tlsConfig must enforce session.MinTLSVersion; callers typically build
// it from cfg.TLSCertFile/TLSKeyFile via tls.LoadX509KeyPair.
func New(cfg config.Server, st store.Store, reg *registry.UserRegistry, mm *matchmaker.Matchmaker, tlsConfig *tls.Config) *Server {
	s := &Server{
		cfg:       cfg,
		st:        st,
		reg:       reg,
		mm:        mm,
		tlsConfig: tlsConfig,
		userBans:  make(map[string]store.BanEntry),
		ipBans:    make(map[string]store.BanEntry),
	}
	if tlsConfig != nil && len(tlsConfig.Certificates) > 0 && len(tlsConfig.Certificates[0].Certificate) > 0 {
		if hash, err := fingerprintPublicKeyDER(tlsConfig.Certificates[0].Certificate[0]); err == nil {
			s.identityHash = hash
		}
	}
	s.admin = newAdminHandler(s)
	return s
}

// RefreshBans reloads the ban tables from the store (spec §4.7
// "populated from the store at startup and refreshable").
func (s *Server) RefreshBans(ctx context.Context) error {
	users, ips, err := s.st.LoadBans(ctx)
	if err != nil {
		return fmt.Errorf("loading bans: %w", err)
	}
	s.banMu.Lock()
	s.userBans = users
	s.ipBans = ips
	s.banMu.Unlock()
	return nil
}

func (s *Server) ipBanned(ip string) (store.BanEntry, bool) {
	s.banMu.RLock()
	defer s.banMu.RUnlock()
	e, ok := s.ipBans[ip]
	if !ok || time.Now().After(e.Until) {
		return store.BanEntry{}, false
	}
	return e, true
}

func (s *Server) userBanned(username string) (store.BanEntry, bool) {
	s.banMu.RLock()
	defer s.banMu.RUnlock()
	e, ok := s.userBans[username]
	if !ok || time.Now().After(e.Until) {
		return store.BanEntry{}, false
	}
	return e, true
}

// Run listens on cfg.BindAddress:cfg.Port under TLS and serves until
// ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := tls.Listen("tcp", addr, s.tlsConfig)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is canceled, supervising
// every per-connection goroutine with a WaitGroup (grounded on the
// teacher's Server.Serve/acceptLoop).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("server listening", "address", ln.Addr())
		s.acceptLoop(ctx, &wg, ln)
	})
	wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("accept failed", "error", err)
			continue
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if entry, banned := s.ipBanned(host); banned {
			slog.Info("rejected connection from banned ip", "ip", host, "reason", entry.Reason)
			conn.Close()
			continue
		}
		if int64(s.cfg.MaxSessions) > 0 && s.sessionCount.Load() >= int64(s.cfg.MaxSessions) {
			slog.Warn("rejected connection, server full", "ip", host)
			conn.Close()
			continue
		}

		if tcpConn, ok := underlyingTCPConn(conn); ok {
			tcpConn.SetKeepAlive(true)
			tcpConn.SetKeepAlivePeriod(30 * time.Second)
		}

		wg.Go(func() {
			s.handleConnection(ctx, conn, host)
		})
	}
}

// sinkFor resolves userID's currently bound session, if any, as a
// delivery target for social notifications (friend requests, direct
// messages) that must reach a live connection. The returned value
// satisfies match.Sink so it can also be handed to SendMatchMessage.
func (s *Server) sinkFor(userID uuid.UUID) match.Sink {
	u, ok := s.reg.Lookup(userID)
	if !ok || u.Session == nil {
		return nil
	}
	return u.Session
}

// sinkForMatchmaker adapts sinkFor to the func(uuid.UUID) match.Sink
// shape SendMatchMessage expects.
func (s *Server) sinkForMatchmaker(userID uuid.UUID) match.Sink {
	return s.sinkFor(userID)
}

// underlyingTCPConn unwraps a *tls.Conn to the *net.TCPConn it wraps,
// since Server listens via tls.Listen and Accept only ever hands back
// *tls.Conn values.
func underlyingTCPConn(conn net.Conn) (*net.TCPConn, bool) {
	type netConner interface{ NetConn() net.Conn }
	if tc, ok := conn.(netConner); ok {
		conn = tc.NetConn()
	}
	tcpConn, ok := conn.(*net.TCPConn)
	return tcpConn, ok
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, ip string) {
	s.sessionCount.Add(1)
	defer s.sessionCount.Add(-1)

	id := s.nextSessionID.Add(1)
	sess := session.New(conn, id, s.cfg.Session.ToSessionConfig())

	d := &dispatcher{srv: s, sess: sess, ip: ip}
	sess.SetMessageHandler(d.onMessage, d.onClose)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sess.Close()
		case <-done:
		}
	}()

	sess.Start()
}

// dispatcher holds the per-connection state a session needs routed
// through it: whether (and as whom) it has authenticated. It is not
// shared across connections, so it needs no lock of its own beyond
// what authenticated/userID's single-goroutine access already gives it
// (spec §4.3: handlers run on the session's own goroutine).
type dispatcher struct {
	srv  *Server
	sess *session.Session
	ip   string

	authenticated bool
	userID        uuid.UUID
}
