package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prasenjit/firescope/internal/api"
	"github.com/prasenjit/firescope/internal/apidoc"
	"github.com/prasenjit/firescope/internal/capture"
	"github.com/prasenjit/firescope/internal/config"
	"github.com/prasenjit/firescope/internal/correlator"
	"github.com/prasenjit/firescope/internal/logging"
	"github.com/prasenjit/firescope/internal/resolver"
	"github.com/prasenjit/firescope/internal/stats"
	"github.com/prasenjit/firescope/internal/storage"
	"github.com/prasenjit/firescope/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the FireScope server",
	Long: `Starts the capture proxy and the admin API.

The server will:
  - Forward every request outside /_api/ to the Firestore upstream and decode it
  - Capture browser tabs over DevTools when capture.browserURL is set
  - Stream decoded records to websocket listeners at /_api/stream
  - Expose the Admin API at /_api/ and metrics at /metrics

Point the Firestore SDK host setting at this server to capture an application.`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, gin debug output)")
	serveCmd.Flags().IntP("port", "p", 0, "Override server port")
	serveCmd.Flags().String("browser", "", "DevTools websocket URL of a Chrome instance to capture")
	serveCmd.Flags().String("storage", "", "Record storage: memory or sqlite")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("capture.browserURL", serveCmd.Flags().Lookup("browser"))
	viper.BindPFlag("storage.type", serveCmd.Flags().Lookup("storage"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if devMode {
		cfg.Logging.Level = "debug"
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.Setup(os.Stderr, cfg.Logging)

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("record storage ready", "type", cfg.Storage.Type, "maxRecords", cfg.Storage.MaxRecords)

	statsCollector := stats.NewCollector()
	hub := transport.NewHub(cfg.Transport.Heartbeat, logger)
	defer hub.Close()

	corr := correlator.New(correlator.Options{
		APIHost:       cfg.Capture.APIHost,
		MaxAge:        cfg.Capture.MaxPendingAge,
		SweepInterval: cfg.Capture.SweepInterval,
		Logger:        logger,
	}, store, statsCollector, hub)
	statsCollector.SetPendingSource(corr.Pending)

	res, closeResolver, err := newResolver(cfg.Resolver, logger)
	if err != nil {
		return err
	}
	defer closeResolver()

	proxy, err := capture.NewProxy(cfg.Capture.UpstreamURL, corr, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize capture proxy: %w", err)
	}

	doc, err := apidoc.Load()
	if err != nil {
		return fmt.Errorf("failed to load API document: %w", err)
	}

	router := api.NewRouter(api.Options{
		Store:    store,
		Stats:    statsCollector,
		Pipeline: corr,
		Resolver: res,
		Document: doc,
		Stream:   hub,
		Proxy:    proxy,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go corr.Run(ctx)

	if cfg.Capture.BrowserURL != "" {
		browser := capture.NewBrowser(cfg.Capture.BrowserURL, corr, logger)
		go func() {
			if err := browser.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("browser capture stopped", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	// No write timeout: Listen channels and the record stream are long-lived
	server := &http.Server{
		Addr:        addr,
		Handler:     router.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting FireScope server", "addr", addr, "upstream", cfg.Capture.UpstreamURL)
		logger.Info("admin API available", "url", fmt.Sprintf("http://%s/_api/", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStorage creates the configured record store
func openStorage(cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Type == "sqlite" {
		store, err := storage.NewSQLiteStorage(cfg.Path, cfg.MaxRecords)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		return store, nil
	}
	return storage.NewMemoryStorage(cfg.MaxRecords), nil
}

// newResolver creates the configured console link resolver and a func
// releasing its cache
func newResolver(cfg config.ResolverConfig, logger *slog.Logger) (resolver.Resolver, func(), error) {
	if cfg.Type != "remote" {
		return resolver.Local{}, func() {}, nil
	}

	var (
		cache   resolver.Cache = resolver.NewMemoryCache()
		closeFn                = func() {}
	)
	if cfg.Cache == "redis" {
		rc, err := resolver.NewRedisCache(cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect link cache: %w", err)
		}
		cache = rc
		closeFn = func() { rc.Close() }
		logger.Info("link cache connected", "addr", cfg.RedisAddr)
	}

	return resolver.NewRemote(resolver.RemoteOptions{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Cache:   cache,
		TTL:     cfg.CacheTTL,
		Logger:  logger,
	}), closeFn, nil
}
