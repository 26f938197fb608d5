// Package server's admin console: a line-oriented stdin command loop
// (spec §6 "Administrative console"), grounded on the teacher's
// internal/gameserver/admin.Handler name->Command registry, adapted
// from per-player chat commands to a single operator's stdin session.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tankwar/server/internal/wire"
)

// adminCommand is one registered console verb.
type adminCommand struct {
	name string
	help string
	run  func(ctx context.Context, srv *Server, out io.Writer, args []string) error
}

// adminHandler dispatches console lines to registered commands
// (grounded on the teacher's admin.Handler: a lowercase-name map built
// once at startup, read-only thereafter).
type adminHandler struct {
	mu   sync.RWMutex
	cmds map[string]*adminCommand
}

func newAdminHandler(srv *Server) *adminHandler {
	h := &adminHandler{cmds: make(map[string]*adminCommand)}
	h.register(&adminCommand{name: "showidentity", help: "ShowIdentity — print this server's TLS public-key fingerprint", run: cmdShowIdentity})
	h.register(&adminCommand{name: "listusers", help: "ListUsers — list currently authenticated users", run: cmdListUsers})
	h.register(&adminCommand{name: "banuser", help: "BanUser <username> <minutes> <reason>", run: cmdBanUser})
	h.register(&adminCommand{name: "banip", help: "BanIP <ipv4> <minutes>", run: cmdBanIP})
	h.register(&adminCommand{name: "shutdown", help: "Shutdown — stop the server", run: cmdShutdown})
	h.register(&adminCommand{name: "help", help: "help — list commands", run: h.cmdHelp})
	return h
}

func (h *adminHandler) register(c *adminCommand) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmds[c.name] = c
}

func (h *adminHandler) dispatch(ctx context.Context, srv *Server, out io.Writer, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(stripCommandPrefix(fields[0]))

	h.mu.RLock()
	cmd, ok := h.cmds[name]
	h.mu.RUnlock()

	if !ok {
		fmt.Fprintf(out, "unknown command %q (try help)\n", fields[0])
		return
	}
	if err := cmd.run(ctx, srv, out, fields[1:]); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
}

// stripCommandPrefix drops a leading "-" or "--" so "--ShowIdentity"
// and "-ShowIdentity" dispatch the same as "ShowIdentity"
// (console-dispatch.h strips this before lowercasing the command word).
func stripCommandPrefix(cmd string) string {
	if len(cmd) >= 2 && cmd[0] == '-' {
		if cmd[1] == '-' {
			return cmd[2:]
		}
		return cmd[1:]
	}
	return cmd
}

func (h *adminHandler) cmdHelp(_ context.Context, _ *Server, out io.Writer, _ []string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.cmds {
		fmt.Fprintln(out, c.help)
	}
	return nil
}

// cmdShowIdentity prints the server's fingerprint line, the same
// "[address]:port:hash" shape an operator pastes into a peer's
// allow-list (console-dispatch.h's "showidentity" -> get_identity_string).
func cmdShowIdentity(_ context.Context, srv *Server, out io.Writer, _ []string) error {
	fmt.Fprintln(out, srv.identityString())
	return nil
}

func cmdListUsers(_ context.Context, srv *Server, out io.Writer, _ []string) error {
	users := srv.reg.Snapshot()
	fmt.Fprintf(out, "%d authenticated user(s)\n", len(users))
	for _, u := range users {
		inMatch := u.Match != nil
		fmt.Fprintf(out, "  %s  %s  in_match=%t\n", u.ID, u.Username, inMatch)
	}
	return nil
}

func cmdBanUser(ctx context.Context, srv *Server, out io.Writer, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: BanUser <username> <minutes> <reason>")
	}
	username := args[0]
	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid minutes %q: %w", args[1], err)
	}
	reason := strings.Join(args[2:], " ")

	id, ok, err := srv.st.ResolveUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("resolving username: %w", err)
	}
	if !ok {
		return fmt.Errorf("no such user %q", username)
	}

	until := time.Now().Add(time.Duration(minutes) * time.Minute)
	if err := srv.st.BanUser(ctx, id, until, reason); err != nil {
		return fmt.Errorf("banning user: %w", err)
	}
	if err := srv.RefreshBans(ctx); err != nil {
		return fmt.Errorf("refreshing ban table: %w", err)
	}

	if u, ok := srv.reg.Lookup(id); ok && u.Session != nil {
		u.Session.Deliver(wire.SBanned, banPayload())
		u.Session.Close()
	}

	fmt.Fprintf(out, "banned %s until %s\n", username, until.Format(time.RFC3339))
	return nil
}

func cmdBanIP(ctx context.Context, srv *Server, out io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: BanIP <ipv4> <minutes>")
	}
	ip := args[0]
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid ipv4 %q", ip)
	}
	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid minutes %q: %w", args[1], err)
	}

	until := time.Now().Add(time.Duration(minutes) * time.Minute)
	if err := srv.st.BanIP(ctx, ip, until, "admin console"); err != nil {
		return fmt.Errorf("banning ip: %w", err)
	}
	if err := srv.RefreshBans(ctx); err != nil {
		return fmt.Errorf("refreshing ban table: %w", err)
	}

	fmt.Fprintf(out, "banned %s until %s\n", ip, until.Format(time.RFC3339))
	return nil
}

func cmdShutdown(_ context.Context, srv *Server, out io.Writer, _ []string) error {
	fmt.Fprintln(out, "shutting down")
	if srv.listener != nil {
		srv.listener.Close()
	}
	return nil
}

// RunAdminConsole reads lines from r and dispatches them until r hits
// EOF or ctx is canceled (spec §6 "a line-oriented stdin command
// loop").
func (s *Server) RunAdminConsole(ctx context.Context, r io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.admin.dispatch(ctx, s, out, scanner.Text())
	}
}
