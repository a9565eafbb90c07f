// a stupid package name...
package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/marcopiovanello/ytdl-eta/server/config"
	"github.com/marcopiovanello/ytdl-eta/server/internal/downloads"
	"github.com/marcopiovanello/ytdl-eta/server/logging"
	"github.com/marcopiovanello/ytdl-eta/server/rest"
	ytdlRPC "github.com/marcopiovanello/ytdl-eta/server/rpc"
	"github.com/marcopiovanello/ytdl-eta/server/status"
)

type RunConfig struct {
	App fs.FS
}

type serverConfig struct {
	frontend fs.FS
	dir      string
	dm       *downloads.Manager
	hub      *ytdlRPC.Hub
	rpc      *rpc.Server
	release  func()
}

var observableLogger = logging.NewObservableLogger()

func Run(ctx context.Context, rc *RunConfig) error {
	conf := config.Instance()

	// ---- LOGGING ---------------------------------------------------
	closeLogs, err := logging.Setup(ctx, conf.Logging, os.Stdout, observableLogger)
	if err != nil {
		return err
	}
	defer closeLogs()
	// ----------------------------------------------------------------

	scfg, err := newServerConfig(ctx, conf, rc.App)
	if err != nil {
		return err
	}

	if err := scfg.hub.Listen(); err != nil {
		return err
	}

	srv := newServer(scfg)

	go gracefulShutdown(ctx, srv, scfg)

	var (
		network = "tcp"
		address = conf.Addr()
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.Any("err", err))
		return err
	}

	slog.Info("ytdl-eta started",
		slog.String("address", address),
		slog.String("backend", conf.Source.Backend),
		slog.String("download_path", conf.Paths.DownloadPath),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("http server stopped", slog.Any("err", err))
		return err
	}

	return nil
}

func newServerConfig(ctx context.Context, conf *config.Config, frontend fs.FS) (*serverConfig, error) {
	bus := EventBus.New()

	dm, release, err := downloads.FromConfig(ctx, conf, bus)
	if err != nil {
		return nil, err
	}

	rpcServer, err := ytdlRPC.Container(dm)
	if err != nil {
		release()
		return nil, err
	}

	return &serverConfig{
		frontend: frontend,
		dir:      conf.Paths.DownloadPath,
		dm:       dm,
		hub:      ytdlRPC.NewHub(bus),
		rpc:      rpcServer,
		release:  release,
	}, nil
}

func newServer(c *serverConfig) *http.Server {
	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)

	baseUrl := config.Instance().Server.BaseURL
	r.Mount(baseUrl+"/", http.StripPrefix(baseUrl, http.FileServerFS(c.frontend)))

	// RPC handlers
	r.Route("/rpc", ytdlRPC.ApplyRouter(c.rpc, c.hub, c.dm))

	// REST API handlers
	r.Route("/api/v1", rest.ApplyRouter(&rest.ContainerArgs{
		DM: c.dm,
	}))

	// Logging
	r.Route("/log", logging.ApplyRouter(observableLogger))

	// Status
	r.Route("/status", status.ApplyRouter(c.dm, c.dir))

	return &http.Server{Handler: r}
}

func gracefulShutdown(ctx context.Context, srv *http.Server, cfg *serverConfig) {
	<-ctx.Done()
	slog.Info("shutdown signal received")

	if d, err := cfg.dm.Stop(); err == nil {
		<-d.Done()
	}

	// websocket clients are hijacked and not tracked by Shutdown
	cfg.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown http server", slog.Any("err", err))
	}

	cfg.release()
}
