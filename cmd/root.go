// Package cmd implements the proxyrotator CLI using Cobra.
package cmd

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/romeomihailus/proxyrotator/internal/acceptor"
	"github.com/romeomihailus/proxyrotator/internal/config"
	"github.com/romeomihailus/proxyrotator/internal/httpproxy"
	"github.com/romeomihailus/proxyrotator/internal/relay"
	"github.com/romeomihailus/proxyrotator/internal/selector"
	"github.com/romeomihailus/proxyrotator/internal/socks5"
)

// version is injected at build time via ldflags.
var version = "dev"

// -----------------------------------------------------------------------
// Flag variables
// -----------------------------------------------------------------------

var (
	flagConfig string

	flagLocal     string
	flagHTTPProxy string
	flagServers   []string

	flagTimeout     string
	flagForbidden   []string
	flagEnableUDP   bool
	flagLocalUDPStr string
)

// -----------------------------------------------------------------------
// Root command
// -----------------------------------------------------------------------

var rootCmd = &cobra.Command{
	Use:   "proxyrotator",
	Short: "Local shadowsocks-style proxy with SOCKS5 and HTTP front-ends",
	Long: `proxyrotator — a local forward proxy that speaks SOCKS5 and/or plain
HTTP on the client-facing side and tunnels the traffic through an
encrypted connection to one of a configured pool of upstream servers.

Upstreams are tried round-robin; a DNS cache avoids re-resolving the same
host on every pick, and any upstream whose resolved address falls in
--forbidden-ip is skipped rather than dialed.

At least one of --local (SOCKS5) or --http-proxy (HTTP) must be set.
`,
	Version:      version,
	SilenceUsage: true,
	RunE:         run,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.Flags()

	f.StringVarP(&flagConfig, "config", "c", "", "Path to YAML config file")

	f.StringVarP(&flagLocal, "local", "l", "", "Local SOCKS5 listen address (host:port)")
	f.StringVar(&flagHTTPProxy, "http-proxy", "", "Local HTTP proxy listen address (host:port)")
	f.StringArrayVar(&flagServers, "server", nil, "Upstream server host:port:method:password (repeatable)")

	f.StringVar(&flagTimeout, "timeout", "", "Per-connection read timeout (e.g. 30s). 0 or empty uses the config file's timeout (none if unset).")
	f.StringArrayVar(&flagForbidden, "forbidden-ip", nil, "IP to skip after DNS resolution (repeatable)")
	f.BoolVar(&flagEnableUDP, "enable-udp", false, "Reply to SOCKS5 UDP_ASSOCIATE instead of rejecting it")
	f.StringVar(&flagLocalUDPStr, "local-udp", "", "Local UDP endpoint advertised in a UDP_ASSOCIATE reply (host:port)")
}

// -----------------------------------------------------------------------
// Main run logic
// -----------------------------------------------------------------------

func run(_ *cobra.Command, _ []string) error {
	file, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	var servers []config.Server
	for _, raw := range flagServers {
		s, err := config.ParseServer(raw)
		if err != nil {
			return err
		}
		servers = append(servers, s)
	}

	var timeout time.Duration
	if flagTimeout != "" && flagTimeout != "0" {
		timeout, err = time.ParseDuration(flagTimeout)
		if err != nil {
			return fmt.Errorf("--timeout: %w", err)
		}
	}

	cfg, err := config.Resolve(file, flagLocal, flagHTTPProxy, servers, timeout, flagForbidden, flagEnableUDP)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	var localUDPAddr net.Addr
	if flagLocalUDPStr != "" {
		udpAddr, err := net.ResolveUDPAddr("udp", flagLocalUDPStr)
		if err != nil {
			return fmt.Errorf("--local-udp: %w", err)
		}
		localUDPAddr = udpAddr
	}

	sel := selector.New(cfg.Servers, cfg.ForbiddenIP)
	log.Printf("[init] loaded %d upstream servers", sel.Len())

	var acceptors []*acceptor.Acceptor

	if cfg.Local != "" {
		opts := socks5.Options{EnableUDP: cfg.EnableUDP, LocalUDPAddr: localUDPAddr}
		acceptors = append(acceptors, &acceptor.Acceptor{
			Name:        "socks5",
			ListenAddr:  cfg.Local,
			ReadTimeout: cfg.Timeout,
			Selector:    sel,
			FrontEnd: func(ctx context.Context, conn net.Conn, up socks5.Upstream) {
				socks5.Handle(ctx, conn, up, relay.Pump, opts)
			},
		})
	}

	if cfg.HTTPProxy != "" {
		acceptors = append(acceptors, &acceptor.Acceptor{
			Name:        "http",
			ListenAddr:  cfg.HTTPProxy,
			ReadTimeout: cfg.Timeout,
			Selector:    sel,
			FrontEnd:    httpproxy.Handle,
		})
	}

	printBanner(cfg, sel.Len())

	errCh := make(chan error, len(acceptors))
	for _, a := range acceptors {
		a := a
		go func() { errCh <- a.Start() }()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("[init] received %s — shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("[init] acceptor stopped: %v", err)
		}
	}

	for _, a := range acceptors {
		_ = a.Stop()
	}
	return nil
}

// -----------------------------------------------------------------------
// Startup banner
// -----------------------------------------------------------------------

func printBanner(cfg config.Config, poolSize int) {
	socksStr := "<disabled>"
	if cfg.Local != "" {
		socksStr = cfg.Local
	}
	httpStr := "<disabled>"
	if cfg.HTTPProxy != "" {
		httpStr = cfg.HTTPProxy
	}
	udpStr := "disabled"
	if cfg.EnableUDP {
		udpStr = "enabled"
	}
	timeoutStr := "none"
	if cfg.Timeout > 0 {
		timeoutStr = cfg.Timeout.String()
	}

	fmt.Printf(`
╔══════════════════════════════════════════════════════════════╗
║                     proxyrotator %s
╠══════════════════════════════════════════════════════════════╣
║  SOCKS5 listen : %s
║  HTTP listen   : %s
║  UDP_ASSOCIATE : %s
║  Upstream pool : %d servers
║  Read timeout  : %s
╚══════════════════════════════════════════════════════════════╝

`, padRight(version, 44),
		padRight(socksStr, 46),
		padRight(httpStr, 46),
		padRight(udpStr, 46),
		poolSize,
		padRight(timeoutStr, 46),
	)
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
