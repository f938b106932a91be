package socks5

import (
	"context"
	"errors"
	"log"
	"net"
)

// ErrAuthUnsupported is returned when the client's greeting does not offer
// the no-auth method (spec §4.C, the only Non-goal-compliant auth method).
var ErrAuthUnsupported = errors.New("socks5: client does not support no-auth")

// Upstream dials the encrypted tunnel for a destination address. acceptor
// constructs one per accepted connection from the Upstream Selector + Proxy
// Dialer (spec §4.A, §4.G); the front-end never talks to either directly.
type Upstream interface {
	Dial(ctx context.Context, dest Addr) (net.Conn, error)
}

// Relay moves bytes both ways between a local connection and a dialed
// upstream connection until both directions close (spec §4.E). Supplied by
// the acceptor so this package doesn't need to import internal/relay.
type Relay func(local, remote net.Conn)

// Options configures the SOCKS5 front-end.
type Options struct {
	EnableUDP    bool
	LocalUDPAddr net.Addr // BND.ADDR/BND.PORT for a successful UDP_ASSOCIATE reply
}

// Handle runs the SOCKS5 state machine for one accepted connection (spec
// §4.C): GREETING → METHOD-REPLY → REQUEST → dispatch. It takes ownership
// of conn and closes it before returning unless a relay was started, in
// which case Relay itself owns the eventual close via half-close (spec
// §4.E).
func Handle(ctx context.Context, conn net.Conn, up Upstream, relay Relay, opts Options) {
	peerAddr, _ := conn.RemoteAddr().(*net.TCPAddr)
	var peer Addr
	if peerAddr != nil {
		peer = AddrFromTCP(peerAddr)
	}

	methods, err := ReadGreeting(conn)
	if err != nil {
		log.Printf("[socks5] greeting: %v", err)
		conn.Close()
		return
	}

	hasNoAuth := false
	for _, m := range methods {
		if m == MethodNoAuth {
			hasNoAuth = true
			break
		}
	}
	if !hasNoAuth {
		_ = WriteMethodSelection(conn, MethodNoAcceptable)
		log.Printf("[socks5] %v: %v", ErrAuthUnsupported, conn.RemoteAddr())
		conn.Close()
		return
	}

	if err := WriteMethodSelection(conn, MethodNoAuth); err != nil {
		log.Printf("[socks5] write method selection: %v", err)
		conn.Close()
		return
	}

	req, err := ReadRequest(conn)
	if err != nil {
		var perr *ProtocolError
		reply := ReplyGeneralFailure
		if errors.As(err, &perr) {
			reply = perr.Reply
		}
		_ = WriteReply(conn, reply, peer)
		log.Printf("[socks5] request: %v", err)
		conn.Close()
		return
	}

	switch req.Cmd {
	case CmdConnect:
		handleConnect(ctx, conn, req.Dest, peer, up, relay)
	case CmdUDPAssociate:
		handleUDPAssociate(conn, peer, opts)
	default: // CmdBind
		log.Printf("[socks5] BIND not supported (peer=%v)", conn.RemoteAddr())
		_ = WriteReply(conn, ReplyCommandNotSupported, peer)
		conn.Close()
	}
}

func handleConnect(ctx context.Context, conn net.Conn, dest, peer Addr, up Upstream, relay Relay) {
	remote, err := up.Dial(ctx, dest)
	if err != nil {
		log.Printf("[socks5] CONNECT %s: dial upstream: %v", dest, err)
		_ = WriteReply(conn, ReplyGeneralFailure, peer)
		conn.Close()
		return
	}

	// The success reply carries the client's own peer address as BND.ADDR —
	// this proxy never invents a fresh bind address (spec §4.C).
	if err := WriteReply(conn, ReplySucceeded, peer); err != nil {
		log.Printf("[socks5] CONNECT %s: write reply: %v", dest, err)
		conn.Close()
		remote.Close()
		return
	}

	log.Printf("[socks5] CONNECT %s", dest)
	relay(conn, remote)
}

func handleUDPAssociate(conn net.Conn, peer Addr, opts Options) {
	defer conn.Close()
	if !opts.EnableUDP {
		log.Printf("[socks5] UDP_ASSOCIATE disabled (peer=%v)", conn.RemoteAddr())
		_ = WriteReply(conn, ReplyCommandNotSupported, peer)
		return
	}

	var bnd Addr
	if tcpAddr, ok := opts.LocalUDPAddr.(*net.TCPAddr); ok {
		bnd = AddrFromTCP(tcpAddr)
	} else if udpAddr, ok := opts.LocalUDPAddr.(*net.UDPAddr); ok {
		bnd = AddrFromTCP(&net.TCPAddr{IP: udpAddr.IP, Port: udpAddr.Port})
	} else {
		log.Printf("[socks5] UDP_ASSOCIATE: no local UDP endpoint configured")
		_ = WriteReply(conn, ReplyGeneralFailure, peer)
		return
	}

	log.Printf("[socks5] UDP_ASSOCIATE %v -> %s", conn.RemoteAddr(), bnd)
	if err := WriteReply(conn, ReplySucceeded, bnd); err != nil {
		log.Printf("[socks5] UDP_ASSOCIATE: write reply: %v", err)
	}
	// No further processing on this TCP connection; the UDP relay is driven
	// elsewhere (out of scope, spec §1).
}
