package httpproxy

import (
	"errors"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/romeomihailus/proxyrotator/internal/relay"
)

// runKeepAlive is the HTTP Keep-Alive Driver (spec §4.F): for every request
// on the local connection, including the first, it writes the rewritten
// head and then streams exactly Content-Length body bytes from local to
// remote, before reading the next request head. It owns every byte written
// to remote for the whole connection — callers must not pre-write any part
// of the first request, or its body would be relayed twice. This function
// *is* the local→remote pump task for forward-proxy mode (spec §5 task
// topology) — on exit it shuts down both ends itself, exactly like
// relay.PumpOne does for the plain byte-pump case.
//
// Body framing is Content-Length only; chunked Transfer-Encoding requests
// are rejected rather than silently mis-framed (spec §9 marks the
// original's "absent Content-Length means zero body for everything,
// including chunked uploads" as a bug left unresolved — we at least refuse
// instead of corrupting the stream).
func runKeepAlive(local *bufferedConn, remote net.Conn, first *http.Request) {
	req := first

	for {
		if isChunked(req) {
			log.Printf("[httpproxy] chunked Transfer-Encoding not supported, closing")
			break
		}

		if err := writeRequest(remote, req, local); err != nil {
			log.Printf("[httpproxy] keep-alive: write request: %v", err)
			break
		}

		next, err := http.ReadRequest(local.r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Clean EOF before any bytes of a new head: exit cleanly.
				break
			}
			log.Printf("[httpproxy] keep-alive: read next request: %v", err)
			break
		}

		if !next.URL.IsAbs() {
			log.Printf("[httpproxy] keep-alive: non-absolute request target, closing")
			break
		}

		req = next
	}

	relay.ShutdownBoth(remote)
	relay.ShutdownBoth(local)
}

// writeRequest writes req's request line and headers to w, followed by
// exactly Content-Length body bytes read straight from body, byte for byte
// (spec §4.F step 1-2); nothing past that count is read from body. req.Write
// always renders an origin-form request line via req.URL.RequestURI() —
// the absolute-form scheme+authority is dropped automatically (spec
// invariant 5) — while req.Host still drives the Host header (spec §4.D
// "Host header is preserved"). If body ends before Content-Length bytes,
// req.Write returns an error.
func writeRequest(w io.Writer, req *http.Request, body io.Reader) error {
	req.Body = nil
	if n := contentLength(req); n > 0 {
		req.Body = io.NopCloser(io.LimitReader(body, n))
	}
	return req.Write(w)
}

func contentLength(req *http.Request) int64 {
	if req.ContentLength > 0 {
		return req.ContentLength
	}
	return 0
}

func isChunked(req *http.Request) bool {
	for _, enc := range req.TransferEncoding {
		if enc == "chunked" {
			return true
		}
	}
	return false
}
