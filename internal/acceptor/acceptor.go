// Package acceptor implements the Acceptor component (spec §4.B): bind a
// local TCP endpoint, accept connections, apply socket options, pick an
// upstream via the Selector, and hand off to a front-end handler. One
// Acceptor runs per listening endpoint (SOCKS5, HTTP) — they are
// independent and may run together or separately (spec §4.B).
package acceptor

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/romeomihailus/proxyrotator/internal/dialer"
	"github.com/romeomihailus/proxyrotator/internal/selector"
	"github.com/romeomihailus/proxyrotator/internal/socks5"
)

// FrontEnd handles one accepted, socket-optioned connection together with
// the Upstream already picked for it.
type FrontEnd func(ctx context.Context, conn net.Conn, up socks5.Upstream)

// Acceptor binds Name's listen address and dispatches accepted connections
// to FrontEnd.
type Acceptor struct {
	Name        string // "socks5" or "http", for logging
	ListenAddr  string
	ReadTimeout time.Duration
	Selector    *selector.Selector
	FrontEnd    FrontEnd

	ln net.Listener
}

// Start binds the listener and runs the accept loop. It blocks until the
// listener is closed or Accept fails, at which point it returns the error —
// an accept failure is fatal to this acceptor (spec §4.B, §7).
func (a *Acceptor) Start() error {
	ln, err := net.Listen("tcp", a.ListenAddr)
	if err != nil {
		return fmt.Errorf("%s: listen %s: %w", a.Name, a.ListenAddr, err)
	}
	a.ln = ln
	log.Printf("[acceptor] %s listening on %s", a.Name, a.ListenAddr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("%s: accept: %w", a.Name, err)
		}
		go a.handle(conn)
	}
}

// Stop closes the listener, unblocking Start's accept loop.
func (a *Acceptor) Stop() error {
	if a.ln != nil {
		return a.ln.Close()
	}
	return nil
}

func (a *Acceptor) handle(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return
	}
	if err := tcp.SetNoDelay(true); err != nil {
		log.Printf("[acceptor] %s: set nodelay: %v (dropping connection)", a.Name, err)
		conn.Close()
		return
	}

	var wrapped net.Conn = tcp
	if a.ReadTimeout > 0 {
		wrapped = &timeoutConn{TCPConn: tcp, timeout: a.ReadTimeout}
	}

	ctx := context.Background()
	candidate, err := a.Selector.Pick(ctx)
	if err != nil {
		log.Printf("[acceptor] %s: %v, dropping connection from %v", a.Name, err, conn.RemoteAddr())
		conn.Close()
		return
	}

	up := &boundUpstream{candidate: candidate}
	a.FrontEnd(ctx, wrapped, up)
}

// boundUpstream adapts a single already-picked Selector candidate (server
// address, cipher method, key) into the front-end-facing Upstream
// interface: the destination is the only thing still unknown at accept
// time (spec §4.B step 2-3).
type boundUpstream struct {
	candidate selector.Candidate
}

func (u *boundUpstream) Dial(ctx context.Context, dest socks5.Addr) (net.Conn, error) {
	return dialer.Dial(ctx, u.candidate.Addr, u.candidate.Method, u.candidate.Key, dest)
}

// timeoutConn resets the read deadline before every Read, emulating the
// per-read SO_RCVTIMEO-style timeout the original sets once via
// set_read_timeout and the OS then enforces on each subsequent read (spec
// §5 "Cancellation & timeouts").
type timeoutConn struct {
	*net.TCPConn
	timeout time.Duration
}

func (c *timeoutConn) Read(b []byte) (int, error) {
	_ = c.TCPConn.SetReadDeadline(time.Now().Add(c.timeout))
	return c.TCPConn.Read(b)
}
