package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfigFile(t, `
local: "127.0.0.1:1080"
http_proxy: "127.0.0.1:8080"
server:
  - host: proxy.example.com
    port: 8388
    password: hunter2
    method: aes-256-gcm
timeout: 30s
forbidden_ip:
  - 10.0.0.1
enable_udp: true
`)
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Local != "127.0.0.1:1080" {
		t.Errorf("Local = %q", f.Local)
	}
	if len(f.Server) != 1 || f.Server[0].Host != "proxy.example.com" {
		t.Errorf("Server = %+v", f.Server)
	}
	if !f.EnableUDP {
		t.Error("expected EnableUDP true")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	f, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if f.Local != "" || len(f.Server) != 0 {
		t.Errorf("expected zero File, got %+v", f)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestParseServer(t *testing.T) {
	s, err := ParseServer("proxy.example.com:8388:aes-256-gcm:hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if s.Host != "proxy.example.com" || s.Port != 8388 || s.Method != "aes-256-gcm" || s.Password != "hunter2" {
		t.Errorf("ParseServer = %+v", s)
	}
}

func TestParseServer_Malformed(t *testing.T) {
	if _, err := ParseServer("not-enough-parts"); err == nil {
		t.Fatal("expected error for malformed --server value")
	}
}

func TestResolve_FlagsOverrideFile(t *testing.T) {
	f := File{Local: "127.0.0.1:1080", Server: []Server{{Host: "a", Port: 1, Method: "aes-128-gcm", Password: "p"}}}
	cfg, err := Resolve(f, "0.0.0.0:2000", "", nil, 0, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Local != "0.0.0.0:2000" {
		t.Errorf("Local = %q, want flag override", cfg.Local)
	}
}

func TestResolve_NoServers(t *testing.T) {
	f := File{Local: "127.0.0.1:1080"}
	if _, err := Resolve(f, "", "", nil, 0, nil, false); err == nil {
		t.Fatal("expected error for empty upstream pool")
	}
}

func TestResolve_NoListenEndpoint(t *testing.T) {
	f := File{Server: []Server{{Host: "a", Port: 1, Method: "aes-128-gcm", Password: "p"}}}
	if _, err := Resolve(f, "", "", nil, 0, nil, false); err == nil {
		t.Fatal("expected error when neither --local nor --http-proxy is set")
	}
}

func TestResolve_TimeoutFromFile(t *testing.T) {
	f := File{Local: "127.0.0.1:1080", Timeout: "15s", Server: []Server{{Host: "a", Port: 1, Method: "aes-128-gcm", Password: "p"}}}
	cfg, err := Resolve(f, "", "", nil, 0, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Timeout)
	}
}

func TestResolve_BadMethod(t *testing.T) {
	f := File{Local: "127.0.0.1:1080", Server: []Server{{Host: "a", Port: 1, Method: "rot13", Password: "p"}}}
	if _, err := Resolve(f, "", "", nil, 0, nil, false); err == nil {
		t.Fatal("expected error for unsupported cipher method")
	}
}
