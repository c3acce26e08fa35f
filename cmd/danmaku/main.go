package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Qiujialin/DouyinDm/internal/config"
	"github.com/Qiujialin/DouyinDm/internal/event"
	"github.com/Qiujialin/DouyinDm/internal/registry"
	"github.com/Qiujialin/DouyinDm/internal/resolver"
	"github.com/Qiujialin/DouyinDm/internal/server"
	"github.com/Qiujialin/DouyinDm/internal/sign"
	"github.com/Qiujialin/DouyinDm/internal/sink"
	"github.com/Qiujialin/DouyinDm/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/danmaku.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting danmaku service",
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
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"push_url", cfg.Douyin.PushURL,
		"state_path", cfg.State.Path,
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

	// Signature SDK is required for resolving and connecting
	signer, err := sign.NewJSSigner(cfg.Signer.SDKPath, cfg.Douyin.UserAgent,
		sign.WithLogger(logger),
		sign.WithMaxAttempts(cfg.Signer.MaxAttempts),
	)
	if err != nil {
		logger.Error("failed to load signature sdk", "path", cfg.Signer.SDKPath, "error", err)
		os.Exit(1)
	}
	logger.Info("signature sdk loaded", "path", cfg.Signer.SDKPath)

	// Room resolver for the enter endpoint
	res := resolver.NewClient(cfg.Douyin.Cookie, cfg.Douyin.UserAgent,
		resolver.WithBaseURL(cfg.Douyin.EnterURL),
		resolver.WithSigner(signer),
		resolver.WithLogger(logger),
	)

	// Event sink and session registry
	snk := sink.New(logger)
	reg := registry.New(registry.Config{
		GlobalBufferSize:  cfg.Buffers.GlobalSize,
		RoomBufferSize:    cfg.Buffers.RoomSize,
		BaseURL:           cfg.Douyin.PushURL,
		Cookie:            cfg.Douyin.Cookie,
		UserAgent:         cfg.Douyin.UserAgent,
		HeartbeatInterval: cfg.Session.HeartbeatInterval,
	}, signer, res, snk, logger)

	// Rebuild the room list from the persisted state file
	if cfg.State.Path != "" {
		restoreState(cfg.State.Path, reg, logger)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, reg, snk, cfg.State.Path, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.ShutdownTimeout)
	})

	logger.Info("danmaku service running",
		"api_url", fmt.Sprintf("http://%s/api/status", addr),
	)

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
	}

	logger.Info("shutting down...")
	reg.Shutdown()
	snk.Close()
	logger.Info("danmaku service stopped")
}

// restoreState re-registers persisted rooms and the filter. A broken state
// file is logged and skipped; it never prevents startup.
func restoreState(path string, reg *registry.Registry, logger *slog.Logger) {
	rf, err := config.LoadRoomFile(path)
	if err != nil {
		logger.Warn("failed to load room file", "path", path, "error", err)
		return
	}

	for _, info := range rf.Rooms {
		if info.RoomID == "" {
			continue
		}
		_, err := reg.Restore(event.Origin{
			RoomID: info.RoomID,
			WebRID: info.WebRID,
			Title:  info.Title,
			Owner:  info.Owner,
		})
		if err != nil {
			logger.Warn("failed to restore room", "room_id", info.RoomID, "error", err)
		}
	}
	if rf.Filter != "" {
		if err := reg.SetFilter(rf.Filter); err != nil {
			logger.Warn("persisted filter rejected", "pattern", rf.Filter, "error", err)
		}
	}

	logger.Info("state restored", "path", path, "rooms", len(rf.Rooms), "filter", rf.Filter)
}
