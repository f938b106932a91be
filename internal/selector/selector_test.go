package selector

import (
	"context"
	"net"
	"testing"

	"github.com/romeomihailus/proxyrotator/internal/cipher"
)

func testPool() []Upstream {
	return []Upstream{
		{Host: "1.2.3.4", Port: 8388, Password: "pw1", Method: cipher.AES256GCM},
		{Host: "5.6.7.8", Port: 8389, Password: "pw2", Method: cipher.AES256GCM},
	}
}

func TestPick_RoundRobin(t *testing.T) {
	s := New(testPool(), nil)
	first, err := s.Pick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Pick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Addr.IP.Equal(second.Addr.IP) {
		t.Errorf("expected round-robin to alternate upstreams, got %v twice", first.Addr.IP)
	}
	third, err := s.Pick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !third.Addr.IP.Equal(first.Addr.IP) {
		t.Errorf("expected cursor to wrap back to the first upstream, got %v", third.Addr.IP)
	}
}

func TestPick_ForbiddenIPSkipped(t *testing.T) {
	s := New(testPool(), []string{"1.2.3.4"})
	for i := 0; i < 4; i++ {
		cand, err := s.Pick(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if cand.Addr.IP.String() == "1.2.3.4" {
			t.Fatalf("pick %d returned forbidden IP", i)
		}
	}
}

func TestPick_AllForbidden(t *testing.T) {
	s := New(testPool(), []string{"1.2.3.4", "5.6.7.8"})
	if _, err := s.Pick(context.Background()); err == nil {
		t.Fatal("expected error when every upstream is forbidden")
	}
}

func TestPick_EmptyPool(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.Pick(context.Background()); err == nil {
		t.Fatal("expected error for an empty pool")
	}
}

func TestPick_DNSCacheReused(t *testing.T) {
	s := New(testPool(), nil)
	calls := 0
	s.resolve = func(ctx context.Context, host string) (net.IPAddr, error) {
		calls++
		return net.IPAddr{IP: net.ParseIP("9.9.9.9")}, nil
	}

	if _, err := s.Pick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Pick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected one resolve call per distinct host, got %d calls", calls)
	}
	if _, err := s.Pick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected cached hosts not to be re-resolved, got %d calls", calls)
	}
}

func TestPick_DerivesKeyPerCandidate(t *testing.T) {
	s := New(testPool(), nil)
	cand, err := s.Pick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cand.Key) == 0 {
		t.Error("expected a non-empty derived key")
	}
	if cand.Method != cipher.AES256GCM {
		t.Errorf("Method = %v, want AES256GCM", cand.Method)
	}
}
