// Command sessionprobe connects a realtime session for one identity
// and reports its state transitions. Used to verify a deployment's
// realtime endpoints and handshake behavior.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/novalearn/realtime/internal/config"
	"github.com/novalearn/realtime/internal/session"
	"github.com/novalearn/realtime/internal/transport"
	"github.com/novalearn/realtime/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/realtime.local.yaml", "path to config file")
	subjectID := flag.Int64("subject", 0, "subject id to connect as")
	role := flag.String("role", session.RoleStudent, "role to connect as")
	flag.Parse()

	// Set up structured logging; level is refined after config load.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting sessionprobe",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if *subjectID == 0 {
		logger.Error("missing required flag", "flag", "-subject")
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"websocket_url", cfg.Server.WebSocketURL,
		"polling_url", cfg.Server.PollingURL,
	)

	trCfg := transportConfig(cfg)
	mgr := session.NewManager(session.Config{
		NewTransport: func(l *slog.Logger) transport.Transport {
			return transport.NewConn(trCfg, l)
		},
		AckTimeout: cfg.Session.AckTimeout,
		OnState: func(old, new session.State) {
			logger.Info("session state", "from", old, "to", new)
		},
	}, logger)

	identity := session.Identity{SubjectID: *subjectID, Role: *role}
	handle, err := mgr.Connect(identity)
	if err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}

	readyCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Session.AckTimeout+trCfg.DialTimeout)
	err = handle.Ready(readyCtx)
	cancel()
	if err != nil {
		logger.Error("session did not become active", "error", err)
		mgr.Disconnect()
		os.Exit(1)
	}

	logger.Info("session active",
		"handle_id", handle.ID(),
		"identity", handle.Identity(),
		"connected", handle.Connected(),
	)

	// Hold the session until interrupted, reporting inbound traffic.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			mgr.Disconnect()
			if _, ok := mgr.Handle(); ok {
				logger.Error("handle still present after disconnect")
				os.Exit(1)
			}
			logger.Info("session closed cleanly")
			return

		case msg := <-handle.Receive():
			logger.Info("message received", "bytes", len(msg))
		}
	}
}

// transportConfig maps file configuration onto the transport policy.
func transportConfig(cfg *config.Config) transport.Config {
	fallback := make([]transport.LinkKind, 0, len(cfg.Transport.Fallback))
	for _, link := range cfg.Transport.Fallback {
		fallback = append(fallback, transport.LinkKind(link))
	}

	return transport.Config{
		WebSocketURL: cfg.Server.WebSocketURL,
		PollingURL:   cfg.Server.PollingURL,
		Fallback:     fallback,
		Reconnect:    !cfg.Transport.DisableReconnect,
		MaxAttempts:  cfg.Transport.MaxAttempts,
		BaseDelay:    cfg.Transport.BaseDelay,
		MaxDelay:     cfg.Transport.MaxDelay,
		DialTimeout:  cfg.Transport.DialTimeout,
		PingInterval: cfg.Transport.PingInterval,
		StaleTimeout: cfg.Transport.StaleTimeout,
		WriteTimeout: cfg.Transport.WriteTimeout,
		BufferSize:   cfg.Transport.BufferSize,
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
