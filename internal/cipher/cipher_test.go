package cipher

import "testing"

func TestParseKind(t *testing.T) {
	cases := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"aes-128-gcm", AES128GCM, false},
		{"AES-256-GCM", AES256GCM, false},
		{"chacha20-ietf-poly1305", Chacha20IETFPoly1305, false},
		{"rot13", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := ParseKind(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseKind(%q): expected error, got nil", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKind(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseKind(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBytesToKey_Length(t *testing.T) {
	cases := []struct {
		method Kind
		size   int
	}{
		{AES128GCM, 16},
		{AES192GCM, 24},
		{AES256GCM, 32},
		{Chacha20IETFPoly1305, 32},
	}
	for _, c := range cases {
		key, err := BytesToKey(c.method, "hunter2")
		if err != nil {
			t.Fatalf("BytesToKey(%s): %v", c.method, err)
		}
		if len(key) != c.size {
			t.Errorf("BytesToKey(%s): key length = %d, want %d", c.method, len(key), c.size)
		}
	}
}

func TestBytesToKey_Deterministic(t *testing.T) {
	k1, err := BytesToKey(AES256GCM, "same-password")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := BytesToKey(AES256GCM, "same-password")
	if err != nil {
		t.Fatal(err)
	}
	if string(k1) != string(k2) {
		t.Error("expected identical keys for identical password and method")
	}
}

func TestNewStreamCipher(t *testing.T) {
	key, err := BytesToKey(AES128GCM, "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewStreamCipher(AES128GCM, key); err != nil {
		t.Fatalf("NewStreamCipher: %v", err)
	}
}

func TestNewStreamCipher_BadMethod(t *testing.T) {
	if _, err := NewStreamCipher(Kind("not-a-cipher"), []byte("short")); err == nil {
		t.Fatal("expected error for unsupported cipher method")
	}
}
