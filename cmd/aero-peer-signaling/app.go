package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/lanannounce"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/registry"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/signaling"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/turnrest"
)

// app is the wired process: registry, hub, transports and background loops.
type app struct {
	cfg   config.Config
	log   *slog.Logger
	build httpserver.BuildInfo

	metrics   *metrics.Metrics
	reg       *registry.Registry
	hub       *signaling.Hub
	sig       *signaling.Server
	heartbeat *signaling.Heartbeat
	srv       *httpserver.Server
}

func newApp(cfg config.Config, logger *slog.Logger, build httpserver.BuildInfo) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := metrics.New()
	reg := registry.New(registry.Config{
		MaxPeers:           cfg.MaxPeers,
		ConnectionIDLength: cfg.ConnectionIDLength,
	})

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.AuthTokenSecret,
		TTL:    cfg.AuthTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	hub, err := signaling.NewHub(signaling.HubConfig{
		Registry:   reg,
		Tokens:     tokens,
		TURN:       newTURNIssuer(cfg),
		ICEServers: cfg.ICEServers,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	sig, err := signaling.NewServer(hub, signaling.ServerConfig{
		Path:              cfg.SignalPath,
		AllowedOrigins:    cfg.AllowedOrigins,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		MaxMessageBytes:   cfg.MaxSignalingMessageBytes,
		MessagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
		SendQueueBytes:    cfg.SendQueueBytes,
		Metrics:           m,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	srv := httpserver.New(cfg, logger, build)
	srv.SetICESource(hub)
	sig.RegisterRoutes(srv.Mux())
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m, reg.Len))

	return &app{
		cfg:     cfg,
		log:     logger,
		build:   build,
		metrics: m,
		reg:     reg,
		hub:     hub,
		sig:     sig,
		heartbeat: signaling.NewHeartbeat(hub, signaling.HeartbeatConfig{
			Interval:        cfg.HeartbeatInterval,
			MaxMissed:       cfg.HeartbeatMaxMissed,
			StaleAfter:      cfg.PeerStaleAfter,
			RefreshInterval: cfg.CredentialRefreshInterval,
		}),
		srv: srv,
	}, nil
}

func newTURNIssuer(cfg config.Config) *turnrest.Issuer {
	return turnrest.NewIssuer(turnrest.IssuerConfig{
		SharedSecret: cfg.TURNREST.SharedSecret,
		TTLSeconds:   cfg.TURNREST.TTLSeconds,
	})
}

// applyConfig swaps in the settings that can change without a restart: ICE
// servers, TURN REST credentials and allowed origins.
func (a *app) applyConfig(next config.Config) {
	if err := next.ICEConfigError(); err != nil {
		a.log.Warn("reloaded ICE config is invalid; keeping previous settings", "err", err)
		return
	}
	a.hub.SetCredentials(next.ICEServers, newTURNIssuer(next))
	a.sig.SetAllowedOrigins(next.AllowedOrigins)
	a.srv.UpdateConfig(next)
	a.log.Info("applied reloaded settings",
		"ice_servers", len(next.ICEServers),
		"turn_rest_enabled", next.TURNREST.Enabled(),
		"allowed_origins", next.AllowedOrigins,
	)
}

func (a *app) startAnnouncer(ln net.Listener) *lanannounce.Announcer {
	if !a.cfg.MDNSEnabled {
		return nil
	}
	ann, err := lanannounce.Start(lanannounce.Config{
		Instance: a.cfg.MDNSInstance,
		Port:     lanannounce.PortOf(ln.Addr()),
		Path:     a.cfg.SignalPath,
		Version:  a.build.Commit,
	})
	if err != nil {
		a.log.Warn("mDNS announcement disabled", "err", err)
		return nil
	}
	a.log.Info("announcing over mDNS", "instance", a.cfg.MDNSInstance, "service", lanannounce.DefaultService)
	return ann
}

// run serves on ln until ctx is cancelled or the server fails, then stops the
// background loops before closing every session.
func (a *app) run(ctx context.Context, ln net.Listener) error {
	bgCtx, cancelBG := context.WithCancel(ctx)
	defer cancelBG()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.heartbeat.Run(bgCtx)
	}()
	if a.cfg.ConfigFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := config.WatchFile(bgCtx, a.cfg, a.log, a.applyConfig); err != nil {
				a.log.Warn("config watcher stopped", "err", err)
			}
		}()
	}

	ann := a.startAnnouncer(ln)
	defer ann.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		cancelBG()
		wg.Wait()
		a.hub.CloseAll()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	}

	cancelBG()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("http server shutdown failed", "err", err)
	}
	a.hub.CloseAll()

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
