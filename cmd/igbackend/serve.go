package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"igbackend/pkg/api"
	"igbackend/pkg/auth"
	"igbackend/pkg/config"
	"igbackend/pkg/history"
	"igbackend/pkg/instagram"
	"igbackend/pkg/logger"
	"igbackend/pkg/ratelimit"
	"igbackend/pkg/scraper"
	"igbackend/pkg/session"
	"igbackend/pkg/ui"
)

// shutdownTimeout bounds how long in-flight requests get on shutdown
const shutdownTimeout = 15 * time.Second

var (
	serveHost        string
	servePort        int
	serveDownloadDir string
	serveHistory     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP backend",
	Long: `Run the HTTP backend the browser extension talks to.

Endpoints:
  GET  /          health and active account
  POST /login     password or browser-cookie login
  POST /logout    drop the active session
  GET  /status    verify the active session with Instagram
  GET  /download  download posts, reels and stories of an account
  GET  /history   recorded runs (unless the history driver is "none")

Configuration is read from flags, IGBACKEND_* environment variables, .env
files and the YAML config file, in that order of precedence.`,
	Example: `  # Listen on the default 127.0.0.1:5000
  igbackend serve

  # Another port and download folder, no run history
  igbackend serve --port 5055 --download-dir ~/Downloads/ig --history none`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port")
	serveCmd.Flags().StringVarP(&serveDownloadDir, "download-dir", "o", "", "base download directory")
	serveCmd.Flags().StringVar(&serveHistory, "history", "", "run history driver (file, postgres, none)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, map[string]interface{}{
		"host":         serveHost,
		"port":         servePort,
		"download-dir": serveDownloadDir,
		"history":      serveHistory,
		"log-level":    logLevel,
		"log-file":     logFile,
	})
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	p := newPrinter(cmd)
	p.Banner("igbackend", version)
	p.Info("Listening", listenerURL(cfg.Server))
	p.Info("Downloads", cfg.Download.BaseDirectory)

	return serveHTTP(ctx, &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}, log)
}

// buildBackend wires the session manager, orchestrator, history and router.
// cleanup releases the history store.
func buildBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (http.Handler, func(), error) {
	gin.SetMode(cfg.Server.Mode)

	store, err := auth.NewManager(cfg.Session.Directory, cfg.Session.UseKeyring, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session store: %w", err)
	}

	factory := instagram.NewFactory(instagram.Options{
		BaseURL:   cfg.Instagram.BaseURL,
		UserAgent: cfg.Instagram.UserAgent,
		AppID:     cfg.Instagram.AppID,
		Timeout:   cfg.Instagram.Timeout,
		// one throttle for every adapter, so re-logins do not reset it
		Limiter: ratelimit.NewPerMinute(cfg.Instagram.RequestsPerMinute, cfg.Instagram.BurstSize),
	}, log)
	sessions := session.NewManager(factory, store, cfg.Session.Browsers, log)

	runs, err := history.Open(ctx, cfg.History, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	cleanup := func() {
		if runs == nil {
			return
		}
		if err := runs.Close(); err != nil {
			log.WithError(err).Warn("Failed to close run history")
		}
	}

	var downloads api.Downloader = scraper.New(sessions, scraper.Options{
		Root:        cfg.Download.BaseDirectory,
		WriteRunLog: cfg.Download.WriteRunLog,
		History:     runs,
		Logger:      log,
	})
	if cfg.Server.Notifications {
		downloads = &notifyingDownloader{next: downloads, notifier: ui.NewNotifier(), log: log}
	}

	server := api.New(api.Options{
		Sessions:   sessions,
		Downloader: downloads,
		History:    runs,
		Defaults:   cfg.Download,
		Logger:     log,
	})

	logger.LogComponentStart(log, "backend", map[string]interface{}{
		"addr":          cfg.Server.Addr(),
		"download_dir":  cfg.Download.BaseDirectory,
		"history":       cfg.History.Driver,
		"notifications": cfg.Server.Notifications,
		"rpm":           cfg.Instagram.RequestsPerMinute,
	})
	return server.Router(), cleanup, nil
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully
func serveHTTP(ctx context.Context, srv *http.Server, log logger.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.LogComponentStop(log, "http", "shutdown requested")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
