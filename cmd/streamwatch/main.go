// streamwatch connects to the notification server and streams forwarded
// frames to the console. Useful for poking at a server by hand.
//
// Usage: go run ./cmd/streamwatch --config configs/notifier.local.yaml --user user-42 venue-9 promos
//
// Positional arguments are channels to subscribe once connected.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/venuepulse/notify/internal/config"
	"github.com/venuepulse/notify/internal/connection"
	"github.com/venuepulse/notify/internal/dispatch"
	"github.com/venuepulse/notify/internal/protocol"
)

func main() {
	configPath := flag.String("config", "configs/notifier.example.yaml", "path to config file")
	userID := flag.String("user", "", "user id to connect with")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *userID == "" {
		logger.Error("--user is required")
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Connection manager
	mgrCfg := connection.DefaultManagerConfig()
	mgrCfg.WSURL = cfg.Server.WSURL
	mgrCfg.Token = cfg.Server.Token
	mgrCfg.UserAgent = cfg.Server.UserAgent

	mgr := connection.NewManager(mgrCfg, logger)
	defer mgr.Close()

	// Dispatcher on top of the manager's frame channel
	disp := dispatch.New(dispatch.DefaultConfig(), mgr.Frames(), mgr, logger)
	if err := disp.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	channels := flag.Args()

	// Subscribe the requested channels once connected
	go func() {
		states, cancelStates := mgr.States()
		defer cancelStates()

		subscribed := false
		for {
			select {
			case <-ctx.Done():
				return
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
	}()

	// Console printer
	go printFrames(ctx, disp, *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dispStats := disp.Stats()
				mgrStats := mgr.Stats()
				logger.Info("stats",
					"state", mgrStats.State.Status.String(),
					"subscriptions", mgrStats.Subscriptions,
					"reconnect_attempts", mgrStats.ReconnectAttempts,
					"received", dispStats.Received,
					"forwarded", dispStats.Forwarded,
					"duplicates", dispStats.Duplicates,
					"pings", dispStats.Pings,
				)
			}
		}
	}()

	logger.Info("connecting", "user_id", *userID, "channels", channels)
	mgr.ConnectWithUser(*userID)

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	disp.Stop(shutdownCtx)
	mgr.Disconnect()

	logger.Info("shutdown complete")
}

func printFrames(ctx context.Context, disp *dispatch.Dispatcher, verbose bool) {
	msgs, cancel := disp.Messages()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}

			if verbose {
				var pretty json.RawMessage = []byte(raw)
				data, err := json.MarshalIndent(pretty, "", "  ")
				if err != nil {
					fmt.Printf("[RAW] %s\n", raw)
					continue
				}
				fmt.Printf("[FRAME] %s\n", data)
				continue
			}

			if n, err := protocol.ParseNotification([]byte(raw)); err == nil {
				fmt.Printf("[NOTIFICATION] id=%s kind=%s venue=%s title=%q\n",
					n.ID, n.Kind, n.VenueID, n.Title)
			} else {
				fmt.Printf("[FRAME] %s\n", raw)
			}
		}
	}
}
