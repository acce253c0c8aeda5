package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/piratechad/media-grab/server/config"
	"github.com/piratechad/media-grab/server/internal/extractor"
	"github.com/piratechad/media-grab/server/rest"
)

func Run(ctx context.Context, cfg *config.Config) error {
	// ---- LOGGING ---------------------------------------------------
	logWriters := []io.Writer{os.Stdout}

	if cfg.Logging.EnableFileLogging {
		fd, err := os.OpenFile(cfg.Logging.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}

		defer fd.Close()
		logWriters = append(logWriters, fd)
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(logWriters...), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	slog.SetDefault(logger)
	// ----------------------------------------------------------------

	tools := extractor.Detect(cfg)

	if !tools.Extractor.Available {
		slog.Warn("no working extractor found, API calls will fail until one is installed")
	}

	srv := newServer(cfg, tools)

	go gracefulShutdown(ctx, srv)

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(cfg.Server.Host, "/") {
		network = "unix"
		address = cfg.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("media-grab started", slog.String("address", address))

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		slog.Warn("http server stopped", slog.String("err", err.Error()))
	}

	return nil
}

func newServer(cfg *config.Config, tools *extractor.Tools) *http.Server {
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

	if fp := cfg.Frontend.FrontendPath; fp != "" {
		baseURL := cfg.Server.BaseURL
		r.Mount(baseURL+"/", http.StripPrefix(baseURL, http.FileServer(http.FS(os.DirFS(fp)))))
	}

	// REST API handlers
	r.Route("/api", rest.ApplyRouter(&rest.ContainerArgs{
		Config: cfg,
		Tools:  tools,
	}))

	return &http.Server{Handler: r}
}

func gracefulShutdown(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	slog.Info("shutdown signal received")

	srv.Shutdown(context.Background())
}
