// Package config loads the proxy-local configuration: a YAML file (spec
// §6) optionally overlaid with CLI flags, the same "file plus flag
// overlay" shape the teacher uses for --file proxy lists, exposed here as
// a single Config value consumed by cmd and internal/selector.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/romeomihailus/proxyrotator/internal/cipher"
	"github.com/romeomihailus/proxyrotator/internal/selector"
)

// Server is one upstream entry as it appears in the YAML file.
type Server struct {
	Host     string `yaml:"host"`
	Port     uint16 `yaml:"port"`
	Password string `yaml:"password"`
	Method   string `yaml:"method"`
}

// File is the on-disk shape of the YAML config (spec §6).
type File struct {
	Local       string   `yaml:"local"`
	HTTPProxy   string   `yaml:"http_proxy"`
	Server      []Server `yaml:"server"`
	Timeout     string   `yaml:"timeout"`
	ForbiddenIP []string `yaml:"forbidden_ip"`
	EnableUDP   bool     `yaml:"enable_udp"`
}

// Config is the fully resolved, validated runtime configuration.
type Config struct {
	Local       string
	HTTPProxy   string
	Servers     []selector.Upstream
	Timeout     time.Duration
	ForbiddenIP []string
	EnableUDP   bool
}

// Load reads and parses a YAML config file at path. An empty path returns
// a zero File, letting CLI flags fully populate the config.
func Load(path string) (File, error) {
	if path == "" {
		return File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// ParseServer parses one --server flag value of the form
// host:port:method:password.
func ParseServer(raw string) (Server, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) != 4 {
		return Server{}, fmt.Errorf("--server %q: want host:port:method:password", raw)
	}
	var port uint16
	if _, err := fmt.Sscanf(parts[1], "%d", &port); err != nil {
		return Server{}, fmt.Errorf("--server %q: bad port: %w", raw, err)
	}
	return Server{Host: parts[0], Port: port, Method: parts[2], Password: parts[3]}, nil
}

// Resolve merges a loaded File with flag-sourced overrides (flags win when
// non-zero) and validates the result, returning a ready-to-use Config
// (spec §6, §7.4 "configuration error -> fail fast at startup").
func Resolve(f File, flagLocal, flagHTTPProxy string, flagServers []Server, flagTimeout time.Duration, flagForbidden []string, flagEnableUDP bool) (Config, error) {
	c := Config{
		Local:       f.Local,
		HTTPProxy:   f.HTTPProxy,
		ForbiddenIP: append([]string{}, f.ForbiddenIP...),
		EnableUDP:   f.EnableUDP,
	}

	if flagLocal != "" {
		c.Local = flagLocal
	}
	if flagHTTPProxy != "" {
		c.HTTPProxy = flagHTTPProxy
	}
	if flagEnableUDP {
		c.EnableUDP = true
	}
	c.ForbiddenIP = append(c.ForbiddenIP, flagForbidden...)

	if flagTimeout > 0 {
		c.Timeout = flagTimeout
	} else if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("timeout %q: %w", f.Timeout, err)
		}
		c.Timeout = d
	}

	servers := f.Server
	if len(flagServers) > 0 {
		servers = flagServers
	}
	if len(servers) == 0 {
		return Config{}, fmt.Errorf("no upstream servers configured (need server[] in config or --server flag)")
	}
	for _, s := range servers {
		method, err := cipher.ParseKind(s.Method)
		if err != nil {
			return Config{}, fmt.Errorf("server %s: %w", s.Host, err)
		}
		c.Servers = append(c.Servers, selector.Upstream{
			Host:     s.Host,
			Port:     s.Port,
			Password: s.Password,
			Method:   method,
		})
	}

	if c.Local == "" && c.HTTPProxy == "" {
		return Config{}, fmt.Errorf("no listen endpoint configured: set --local and/or --http-proxy")
	}

	return c, nil
}
