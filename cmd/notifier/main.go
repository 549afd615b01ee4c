// notifier runs the realtime notification client: it holds the WebSocket
// session for a user, dispatches inbound frames, and optionally archives
// notifications to PostgreSQL.
//
// Usage: notifier --config configs/notifier.local.yaml --user user-42 venue-9 promos
//
// Positional arguments are channels to subscribe once connected.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/venuepulse/notify/internal/archive"
	"github.com/venuepulse/notify/internal/config"
	"github.com/venuepulse/notify/internal/connection"
	"github.com/venuepulse/notify/internal/database"
	"github.com/venuepulse/notify/internal/dispatch"
	"github.com/venuepulse/notify/internal/session"
	"github.com/venuepulse/notify/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/notifier.local.yaml", "path to config file")
	userFlag := flag.String("user", "", "user id to connect with (defaults to instance id)")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting notifier",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.Server.WSURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connection manager
	mgr := connection.NewManager(managerConfig(cfg), logger)
	defer mgr.Close()

	// Dispatcher consumes the manager's frames and replies to pings
	// through it.
	disp := dispatch.New(dispatch.Config{
		StreamBufferSize: cfg.Connection.StreamBufferSize,
	}, mgr.Frames(), mgr, logger)

	if err := disp.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	// Optional notification archive
	var pool *pgxpool.Pool
	var arch *archive.Writer
	if cfg.Archive.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		arch = archive.NewWriter(archive.Config{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, disp, pool, logger)

		if err := arch.Start(ctx); err != nil {
			logger.Error("failed to start archive writer", "error", err)
			os.Exit(1)
		}

		logger.Info("notification archive enabled")
	}

	// Session provider drives the connection lifecycle through the binder.
	provider := session.NewMemoryProvider(logger)
	binder := session.NewBinder(provider, mgr, logger)
	if err := binder.Start(ctx); err != nil {
		logger.Error("failed to start session binder", "error", err)
		os.Exit(1)
	}

	userID := *userFlag
	if userID == "" {
		userID = cfg.Instance.ID
	}
	provider.Set(session.Session{UserID: userID, Role: session.RoleRegistered})

	channels := flag.Args()

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(mgr, disp, arch, pool),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	// Log state transitions and subscribe the requested channels once the
	// connection comes up. Subscriptions added while connected are
	// replayed by the manager on reconnect.
	g.Go(func() error {
		states, cancelStates := mgr.States()
		defer cancelStates()

		subscribed := false
		for {
			select {
			case <-gctx.Done():
				return nil
			case st := <-states:
				logger.Info("connection state", "status", st.Status, "reason", st.Reason)
				if st.Status == connection.StatusConnected && !subscribed {
					for _, ch := range channels {
						mgr.Subscribe(ch)
					}
					subscribed = true
				}
			}
		}
	})

	logger.Info("notifier running",
		"instance_id", cfg.Instance.ID,
		"user_id", userID,
		"channels", channels,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("component failed", "error", err)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	binder.Stop(shutdownCtx)
	if arch != nil {
		arch.Stop(shutdownCtx)
	}
	disp.Stop(shutdownCtx)

	logger.Info("notifier stopped")
}

// managerConfig maps the loaded YAML config onto the connection manager.
func managerConfig(cfg *config.ClientConfig) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.WSURL = cfg.Server.WSURL
	mc.Token = cfg.Server.Token
	mc.UserAgent = cfg.Server.UserAgent
	mc.Subprotocols = cfg.Server.Subprotocols
	mc.HandshakeTimeout = cfg.Server.HandshakeTimeout
	mc.WriteTimeout = cfg.Server.WriteTimeout
	mc.PingTimeout = cfg.Server.PingTimeout
	mc.ConnectThrottle = cfg.Connection.ConnectThrottle
	mc.ReconnectDelay = cfg.Connection.ReconnectDelay
	mc.BackoffFactor = cfg.Connection.BackoffFactor
	mc.ReconnectMaxDelay = cfg.Connection.ReconnectMaxDelay
	mc.MaxAttempts = cfg.Connection.MaxAttempts
	mc.SocketBufferSize = cfg.Connection.SocketBufferSize
	mc.StreamBufferSize = cfg.Connection.StreamBufferSize
	return mc
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(mgr connection.Manager, disp *dispatch.Dispatcher, arch *archive.Writer, pool *pgxpool.Pool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		state := mgr.CurrentState()
		health.Components["connection"] = map[string]interface{}{
			"status": state.Status.String(),
			"reason": state.Reason,
			"stats":  mgr.Stats(),
		}
		if state.Status != connection.StatusConnected {
			health.Status = "degraded"
		}

		health.Components["dispatcher"] = disp.Stats()

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}
		if arch != nil {
			health.Components["archive"] = arch.Stats()
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
