// Package dialer implements the Proxy Dialer contract (spec §4.G): given a
// resolved server address, cipher method and key, and a destination
// address, it opens a TCP connection to the proxy server, wraps it in the
// shadowsocks cipher, and sends the destination header. The returned
// net.Conn reads the decrypted return stream and writes the encrypted
// outbound stream — the "decrypt_stream"/"encrypt_stream" pair from the
// spec, folded into a single duplex connection the way go-shadowsocks2
// itself models a client stream.
package dialer

import (
	"context"
	"fmt"
	"net"

	"github.com/romeomihailus/proxyrotator/internal/cipher"
	"github.com/romeomihailus/proxyrotator/internal/socks5"
)

// Dial opens the encrypted tunnel to serverAddr and negotiates dest as the
// target the remote proxy server should egress to. Failure surfaces as a
// plain I/O error; the caller (front-end) is responsible for translating
// that into a SOCKS5 GeneralFailure reply or an HTTP 502 (spec §4.G).
func Dial(ctx context.Context, serverAddr net.Addr, method cipher.Kind, key []byte, dest socks5.Addr) (net.Conn, error) {
	raw, err := (&net.Dialer{}).DialContext(ctx, "tcp", serverAddr.String())
	if err != nil {
		return nil, fmt.Errorf("dial proxy server %s: %w", serverAddr, err)
	}

	ssCipher, err := cipher.NewStreamCipher(method, key)
	if err != nil {
		raw.Close()
		return nil, err
	}

	conn := ssCipher.StreamConn(raw)

	header := dest.MarshalBinary()
	if _, err := conn.Write(header); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write destination header: %w", err)
	}

	return conn, nil
}
