package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itsChris/qrcomposer/internal/certs"
	"github.com/itsChris/qrcomposer/internal/composer"
	"github.com/itsChris/qrcomposer/internal/config"
	"github.com/itsChris/qrcomposer/internal/logging"
	"github.com/itsChris/qrcomposer/internal/matrix"
	"github.com/itsChris/qrcomposer/internal/sdnotify"
	"github.com/itsChris/qrcomposer/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "listen address (default: 127.0.0.1:8080)")
	cmd.Flags().Int("cache-size", composer.DefaultCacheSize, "number of compositions kept in memory, 0 disables the cache")
	cmd.Flags().String("tls-mode", "", "certificate source: off, self-signed, acme or manual (default: off)")
	return cmd
}

func serverDefaults(cfg *config.Config) server.Defaults {
	return server.Defaults{
		Size:            cfg.Render.Size,
		Level:           matrix.Level(cfg.Render.Level),
		Color:           cfg.Render.Color,
		BackgroundColor: cfg.Render.BackgroundColor,
		QuietZone:       cfg.Render.QuietZone,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// ── Load configuration ───────────────────────────────────────────
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Normalise the level once so reloads compare like with like.
	level, _ := matrix.ParseLevel(cfg.Render.Level)
	cfg.Render.Level = string(level)

	// ── Create logger ────────────────────────────────────────────────
	ring := logging.NewRingBuffer(logging.DefaultRingSize)
	logger := logging.NewWithRing(loggingConfig(cfg), ring)

	logger.Info("qrcomposer_starting",
		"version", version,
		"go_version", runtime.Version(),
		"os", runtime.GOOS,
		"arch", runtime.GOARCH,
		"pid", os.Getpid(),
		"listen", cfg.Server.Listen,
		"log_level", cfg.Logging.Level,
		"dev_mode", cfg.Server.DevMode,
		"db_path", cfg.Database.Path,
		"cache_size", cfg.Cache.Size,
		"component", "main",
	)

	// ── Open database and run migrations ─────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := openDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.MarkStarted(ctx, version, time.Now()); err != nil {
		return fmt.Errorf("record start: %w", err)
	}

	// ── Create HTTP server ───────────────────────────────────────────
	srv := server.New(server.Config{
		Composer:  composer.New(composer.Config{CacheSize: cfg.Cache.Size, Logger: logger}),
		DB:        database,
		Logger:    logger,
		Ring:      ring,
		Defaults:  serverDefaults(cfg),
		DevMode:   cfg.Server.DevMode,
		Version:   version,
		RateLimit: cfg.Server.RateLimit,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── TLS ──────────────────────────────────────────────────────────
	provider, err := certs.New(tlsConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if provider != nil {
		httpServer.TLSConfig = provider.TLSConfig()
	}

	// ── Signal handling ──────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_listening",
			"addr", cfg.Server.Listen,
			"tls", provider != nil,
			"component", "main",
		)
		var err error
		if provider != nil {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
	}()

	var redirectServer *http.Server
	if provider != nil && cfg.TLS.HTTPListen != "" {
		redirectServer = &http.Server{
			Addr:         cfg.TLS.HTTPListen,
			Handler:      provider.ChallengeHandler(redirectToHTTPS(cfg.Server.Listen)),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("http_redirect_listening",
				"addr", cfg.TLS.HTTPListen,
				"component", "main",
			)
			if err := redirectServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http redirect listen: %w", err)
			}
		}()
	}

	// ── systemd integration ──────────────────────────────────────────
	notifier := sdnotify.FromEnv(logger)
	notifier.Ready()
	notifier.Status("listening on %s", cfg.Server.Listen)
	go notifier.RunWatchdog(ctx, sdnotify.WatchdogInterval())

	// ── Main loop: wait for signals or fatal errors ──────────────────
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("config_reload_requested", "component", "main")
				notifier.Reloading()
				reloadConfig(cmd, cfg, srv, logger)
				// Ready again even after a failed reload so systemd does
				// not consider the service stuck.
				notifier.Ready()

			case syscall.SIGTERM, syscall.SIGINT:
				logger.Info("shutdown_requested",
					"signal", sig.String(),
					"component", "main",
				)
				notifier.Stopping()

				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancelShutdown()

				if redirectServer != nil {
					redirectServer.Shutdown(shutdownCtx)
				}
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("shutdown_error",
						"error", err,
						"component", "main",
					)
					return fmt.Errorf("shutdown: %w", err)
				}

				logger.Info("shutdown_complete", "component", "main")
				return nil
			}

		case err := <-errCh:
			return err
		}
	}
}

func tlsConfig(cfg *config.Config) certs.Config {
	c := certs.Config{
		Mode:     cfg.TLS.Mode,
		Domain:   cfg.TLS.Domain,
		Email:    cfg.TLS.Email,
		CertFile: cfg.TLS.CertFile,
		KeyFile:  cfg.TLS.KeyFile,
		Dir:      cfg.TLS.Dir,
	}
	if host, _, err := net.SplitHostPort(cfg.Server.Listen); err == nil {
		if ip := net.ParseIP(host); host != "" && (ip == nil || !ip.IsUnspecified()) {
			c.Hosts = append(c.Hosts, host)
		}
	}
	if cfg.TLS.Domain != "" {
		c.Hosts = append(c.Hosts, cfg.TLS.Domain)
	}
	return c
}

// redirectToHTTPS sends plain HTTP requests to the same host on the TLS
// listener's port.
func redirectToHTTPS(listen string) http.Handler {
	_, port, _ := net.SplitHostPort(listen)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(r.Host); err == nil {
			host = h
		}
		if port != "" && port != "443" {
			host = net.JoinHostPort(host, port)
		}
		http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// reloadConfig applies the render defaults of a freshly loaded config.
// Settings bound at startup only take effect after a restart.
func reloadConfig(cmd *cobra.Command, current *config.Config, srv *server.Server, logger *slog.Logger) {
	next, err := loadConfig(cmd)
	if err != nil {
		logger.Error("config_reload_failed",
			"error", err,
			"component", "main",
		)
		return
	}
	level, _ := matrix.ParseLevel(next.Render.Level)
	next.Render.Level = string(level)

	srv.SetDefaults(serverDefaults(next))

	for _, key := range restartRequired(current, next) {
		logger.Warn("config_change_requires_restart",
			"key", key,
			"component", "main",
		)
	}
	*current = *next

	logger.Info("config_reloaded",
		"render_size", next.Render.Size,
		"render_level", next.Render.Level,
		"component", "main",
	)
}

// restartRequired lists changed keys that cannot be applied live.
func restartRequired(a, b *config.Config) []string {
	var keys []string
	if a.Server.Listen != b.Server.Listen {
		keys = append(keys, "server.listen")
	}
	if a.Server.DevMode != b.Server.DevMode {
		keys = append(keys, "server.dev_mode")
	}
	if a.Server.RateLimit != b.Server.RateLimit {
		keys = append(keys, "server.rate_limit")
	}
	if a.Database.Path != b.Database.Path {
		keys = append(keys, "database.path")
	}
	if a.Logging != b.Logging {
		keys = append(keys, "logging")
	}
	if a.Cache != b.Cache {
		keys = append(keys, "cache.size")
	}
	if a.TLS != b.TLS {
		keys = append(keys, "tls")
	}
	return keys
}
