// Package cipher maps the configured cipher method name to a shadowsocks2
// AEAD/stream cipher and derives the pre-shared key from a password.
//
// This package is the one piece of the "external collaborator" boundary
// (spec §4.G, §1 out-of-scope list) that the relay core still needs to
// touch directly: it picks the cipher and hands the caller an opaque key,
// but never interprets ciphertext itself.
package cipher

import (
	"fmt"
	"strings"

	"github.com/shadowsocks/go-shadowsocks2/core"
)

// Kind identifies a supported shadowsocks cipher method.
type Kind string

// Supported methods. Authentication methods / ciphers not in this list are
// rejected at config-load time (spec §7.4, configuration error at startup).
const (
	AES128GCM            Kind = "aes-128-gcm"
	AES192GCM            Kind = "aes-192-gcm"
	AES256GCM            Kind = "aes-256-gcm"
	Chacha20IETFPoly1305 Kind = "chacha20-ietf-poly1305"
)

var keySizes = map[Kind]int{
	AES128GCM:            16,
	AES192GCM:             24,
	AES256GCM:            32,
	Chacha20IETFPoly1305: 32,
}

// Valid reports whether kind is a method this build supports.
func (k Kind) Valid() bool {
	_, ok := keySizes[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind normalizes and validates a cipher method name from config.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if !k.Valid() {
		return "", fmt.Errorf("unsupported cipher method %q", name)
	}
	return k, nil
}

// BytesToKey derives the pre-shared key for method from password, using the
// same EVP_BytesToKey-style KDF shadowsocks has always used. The Upstream
// Selector calls this and forwards the resulting key to the Proxy Dialer
// without interpreting it further (spec §4.A "Key derivation").
func BytesToKey(method Kind, password string) ([]byte, error) {
	size, ok := keySizes[method]
	if !ok {
		return nil, fmt.Errorf("unsupported cipher method %q", method)
	}
	return core.Key(password, size), nil
}

// NewStreamCipher builds the shadowsocks2 Cipher for method/key, ready to
// wrap a raw TCP connection via Cipher.StreamConn.
func NewStreamCipher(method Kind, key []byte) (core.Cipher, error) {
	c, err := core.PickCipher(strings.ToUpper(string(method)), key, "")
	if err != nil {
		return nil, fmt.Errorf("pick cipher %s: %w", method, err)
	}
	return c, nil
}
