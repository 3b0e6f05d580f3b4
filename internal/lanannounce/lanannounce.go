// Package lanannounce advertises the signaling endpoint over mDNS so clients
// on the local network can find it without configuration.
package lanannounce

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	DefaultService = "_aero-signal._tcp"
	DefaultDomain  = "local."
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)

type Config struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	// Path is the WebSocket path, published as TXT path=.
	Path    string
	Version string

	registerFn registerFunc
}

func (c Config) withDefaults() Config {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.registerFn == nil {
		c.registerFn = zeroconf.Register
	}
	return c
}

type Announcer struct {
	server *zeroconf.Server
}

// Start registers the service record. Stop it on shutdown so the record is
// withdrawn.
func Start(cfg Config) (*Announcer, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.Instance) == "" {
		return nil, errors.New("mDNS instance name is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid mDNS port %d", cfg.Port)
	}

	txt := []string{"path=" + cfg.Path}
	if cfg.Version != "" {
		txt = append(txt, "version="+cfg.Version)
	}
	server, err := cfg.registerFn(cfg.Instance, cfg.Service, cfg.Domain, cfg.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return &Announcer{server: server}, nil
}

func (a *Announcer) Stop() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// PortOf returns the TCP port of a listener address, or 0.
func PortOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
