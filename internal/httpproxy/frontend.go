// Package httpproxy implements the HTTP front-end (spec §4.D): it parses
// the first HTTP/1.x request on an accepted connection and dispatches to
// either a blind CONNECT tunnel or the forward-proxy path, which hands
// local→remote off to the Keep-Alive Driver (spec §4.F).
package httpproxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/romeomihailus/proxyrotator/internal/relay"
	"github.com/romeomihailus/proxyrotator/internal/socks5"
)

// Upstream dials the encrypted tunnel for a destination address. Reuses
// socks5.Upstream/Addr — both front-ends share the same destination
// address shape (spec §3).
type Upstream = socks5.Upstream

// Handle parses the first HTTP request on conn and dispatches it. It takes
// ownership of conn.
func Handle(ctx context.Context, conn net.Conn, up Upstream) {
	br := bufio.NewReaderSize(conn, 8*1024)

	req, err := http.ReadRequest(br)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Printf("[httpproxy] read request: %v", err)
		}
		conn.Close()
		return
	}

	local := &bufferedConn{Conn: conn, r: br}

	if req.Method == http.MethodConnect {
		handleConnect(ctx, local, req, up)
		return
	}
	handleForward(ctx, local, req, up)
}

func handleConnect(ctx context.Context, local *bufferedConn, req *http.Request, up Upstream) {
	dest, err := addrFromHostPort(req.Host, 443)
	if err != nil {
		writeStatus(local, http.StatusBadRequest)
		local.Close()
		return
	}

	remote, err := up.Dial(ctx, dest)
	if err != nil {
		log.Printf("[httpproxy] CONNECT %s: dial upstream: %v", dest, err)
		writeStatus(local, http.StatusBadGateway)
		local.Close()
		return
	}

	if _, err := io.WriteString(local, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		log.Printf("[httpproxy] CONNECT %s: write handshake: %v", dest, err)
		local.Close()
		remote.Close()
		return
	}

	log.Printf("[httpproxy] CONNECT %s", dest)
	relay.Pump(local, remote)
}

func handleForward(ctx context.Context, local *bufferedConn, req *http.Request, up Upstream) {
	if !req.URL.IsAbs() {
		writeStatus(local, http.StatusBadRequest)
		local.Close()
		return
	}

	host := req.URL.Host
	dest, err := addrFromHostPort(host, 80)
	if err != nil {
		writeStatus(local, http.StatusBadRequest)
		local.Close()
		return
	}

	remote, err := up.Dial(ctx, dest)
	if err != nil {
		log.Printf("[httpproxy] %s %s: dial upstream: %v", req.Method, dest, err)
		writeStatus(local, http.StatusBadGateway)
		local.Close()
		return
	}

	log.Printf("[httpproxy] %s %s", req.Method, dest)

	// runKeepAlive owns every write to remote, head and body alike, for req
	// and every request that follows it on this connection (spec §4.F) — it
	// must not be pre-written here, or its body would be relayed twice.
	go relay.PumpOne("remote->local", local, remote)
	runKeepAlive(local, remote, req)
}

func writeStatus(w io.Writer, code int) {
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", code, http.StatusText(code))
}

func addrFromHostPort(hostport string, defaultPort uint16) (socks5.Addr, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
		portStr = strconv.Itoa(int(defaultPort))
	}
	if host == "" {
		return socks5.Addr{}, fmt.Errorf("empty host")
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return socks5.Addr{}, fmt.Errorf("bad port %q: %w", portStr, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return socks5.Addr{Atyp: socks5.AtypIPv4, IP: ip4, Port: uint16(port)}, nil
		}
		return socks5.Addr{Atyp: socks5.AtypIPv6, IP: ip.To16(), Port: uint16(port)}, nil
	}
	return socks5.Addr{Atyp: socks5.AtypDomain, Name: host, Port: uint16(port)}, nil
}

// bufferedConn wraps a net.Conn whose first few bytes were already consumed
// into a bufio.Reader, replaying the buffered bytes before falling through
// to the raw connection — the same idiom the teacher uses in
// internal/upstream/dialer.go for a CONNECT response with trailing bytes.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(b []byte) (int, error) { return c.r.Read(b) }
