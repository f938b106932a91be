// Package selector implements the Upstream Selector (spec §4.A): an
// ordered, round-robin pool of configured shadowsocks servers with a
// per-process DNS cache and a forbidden-IP screen. Mutation (the
// round-robin cursor and the DNS cache) is confined to whichever single
// goroutine calls Pick — the acceptor — so no locking is required (spec §5,
// §9 "Mutable state confined to acceptor").
package selector

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/romeomihailus/proxyrotator/internal/cipher"
)

// Upstream is one configured proxy server (spec §3 "Upstream config").
// Immutable after load.
type Upstream struct {
	Host     string
	Port     uint16
	Password string
	Method   cipher.Kind
}

func (u Upstream) String() string {
	return net.JoinHostPort(u.Host, fmt.Sprintf("%d", u.Port))
}

// Candidate is a ready-to-dial result from Pick.
type Candidate struct {
	Addr   *net.TCPAddr
	Method cipher.Kind
	Key    []byte
}

// Selector holds the configured pool and the cursor/cache state that the
// acceptor mutates between accepts.
type Selector struct {
	pool      []Upstream
	cursor    int
	dnsCache  map[string]net.IPAddr // host -> first resolved address (spec §3 "DNS cache")
	forbidden map[string]struct{}

	resolve func(ctx context.Context, host string) (net.IPAddr, error)
}

// New creates a Selector over pool. pool must be non-empty (spec §3 invariant
// |pool| ≥ 1, enforced by config loading — see internal/config).
func New(pool []Upstream, forbiddenIPs []string) *Selector {
	forbidden := make(map[string]struct{}, len(forbiddenIPs))
	for _, ip := range forbiddenIPs {
		forbidden[ip] = struct{}{}
	}
	return &Selector{
		pool:      pool,
		dnsCache:  make(map[string]net.IPAddr),
		forbidden: forbidden,
		resolve:   defaultResolve,
	}
}

// defaultResolve preserves the resolved zone (IPv6 scope-id) alongside the
// address, as the original's SocketAddrV6::new(flowinfo, scope_id)
// reconstruction did (spec §4.A step 3).
func defaultResolve(ctx context.Context, host string) (net.IPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		return net.IPAddr{IP: ip}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return net.IPAddr{}, err
	}
	if len(addrs) == 0 {
		return net.IPAddr{}, fmt.Errorf("no addresses for host %q", host)
	}
	return addrs[0], nil
}

// Pick advances the round-robin cursor and returns the next usable
// candidate, trying at most len(pool) candidates for this one connection
// attempt (spec §4.A, §3 invariant 3). It returns an error once every slot
// has been tried and none were usable — the caller (acceptor) then drops
// the connection rather than aborting the process (spec §7.2, §9).
func (s *Selector) Pick(ctx context.Context) (Candidate, error) {
	n := len(s.pool)
	if n == 0 {
		return Candidate{}, fmt.Errorf("selector: empty upstream pool")
	}

	for tries := 0; tries < n; tries++ {
		s.cursor = (s.cursor + 1) % n
		up := s.pool[s.cursor]

		ip, ok := s.dnsCache[up.Host]
		if !ok {
			resolved, err := s.resolve(ctx, up.Host)
			if err != nil {
				log.Printf("[selector] resolve %s: %v", up.Host, err)
				continue
			}
			s.dnsCache[up.Host] = resolved
			ip = resolved
		}

		if _, blocked := s.forbidden[ip.IP.String()]; blocked {
			log.Printf("[selector] %s (%s) is in forbidden_ip, skipping", up.Host, ip.IP)
			continue
		}

		key, err := cipher.BytesToKey(up.Method, up.Password)
		if err != nil {
			log.Printf("[selector] derive key for %s: %v", up.Host, err)
			continue
		}

		return Candidate{
			Addr:   &net.TCPAddr{IP: ip.IP, Port: int(up.Port), Zone: ip.Zone},
			Method: up.Method,
			Key:    key,
		}, nil
	}

	return Candidate{}, fmt.Errorf("selector: exhausted all %d upstreams", n)
}

// Len returns the configured pool size.
func (s *Selector) Len() int { return len(s.pool) }
