package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcopiovanello/ytdl-eta/server"
	"github.com/marcopiovanello/ytdl-eta/server/config"
)

//go:embed frontend/index.html
var frontend embed.FS

func main() {
	// Parse optional config path from flag
	var configFile string
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	var appFS fs.FS
	if fp := cfg.Paths.FrontendPath; fp != "" {
		appFS = os.DirFS(fp)
	} else {
		sub, err := fs.Sub(frontend, "frontend")
		if err != nil {
			slog.Error("failed to load embedded frontend", slog.Any("err", err))
			os.Exit(1)
		}
		appFS = sub
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("backend", cfg.Source.Backend),
	)

	if err := server.Run(ctx, &server.RunConfig{App: appFS}); err != nil {
		slog.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
