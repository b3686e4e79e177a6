package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/raaihank/pdf-redactor/internal/account"
	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/privacy"
	"github.com/raaihank/pdf-redactor/internal/security"
	"github.com/raaihank/pdf-redactor/internal/server"
	"github.com/raaihank/pdf-redactor/internal/session"
	"github.com/raaihank/pdf-redactor/internal/websocket"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

const statusInterval = 30 * time.Second

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		envFile     = flag.String("env-file", ".env", "Environment file loaded before the configuration")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
		printConfig = flag.Bool("print-config", false, "Print the effective configuration as YAML and exit")
		setTier     = flag.String("set-tier", "", "Set a user's tier (user=premium|standard) and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("PDF Redactor %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck(cfg.Server.Port)
		return
	}

	if *printConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render configuration: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	acct, err := openAccounts(cfg, log)
	if err != nil {
		log.Fatal("Failed to open account store", zap.Error(err))
	}
	defer acct.close()

	if *setTier != "" {
		if err := acct.setTier(*setTier); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to set tier: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Tier updated")
		return
	}

	log.Info("Starting PDF Redactor",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("accounts", cfg.Accounts.Enabled),
		zap.Bool("tier_cache", acct.cache != nil),
	)

	deps, err := session.NewDeps(cfg, acct.resolver, log)
	if err != nil {
		log.Fatal("Failed to create session dependencies", zap.Error(err))
	}
	sessions := session.NewManager(cfg.Session, deps)
	limiter := security.NewRateLimiter(cfg.RateLimit)
	hub := websocket.NewHub(cfg.WebSocket, log)

	srv := server.New(cfg, server.Deps{
		Sessions: sessions,
		Detector: deps.Detector,
		Limiter:  limiter,
		Hub:      hub,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sessions.Run(ctx)
	go limiter.Run(ctx)
	go hub.Run(ctx)
	go reportStatus(ctx, srv)

	// Rule changes apply to later uploads only; existing sessions keep their matches.
	config.Watch(func(newCfg *config.Config) {
		detector, err := privacy.New(newCfg.Detection, log.WithComponent("privacy"))
		if err != nil {
			log.Error("Ignoring configuration reload", zap.Error(err))
			return
		}
		deps.Detector.Swap(detector)
		log.Info("Detection rules reloaded", zap.Strings("enabled_rules", detector.GetEnabledRules()))
	}, func(err error) {
		log.Warn("Ignoring invalid configuration reload", zap.Error(err))
	})

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()

		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// accounts bundles the optional tier backends.
type accounts struct {
	store    *account.Store
	cache    *account.TierCache
	resolver *account.Resolver
	log      *logger.Logger
}

// openAccounts connects the tier store and cache that are enabled. Without a store every
// user gets the configured default tier. A cache that cannot be reached is skipped.
func openAccounts(cfg *config.Config, log *logger.Logger) (*accounts, error) {
	a := &accounts{log: log}
	defaultTier := privacy.ParseTier(cfg.Accounts.DefaultTier)

	var store account.TierStore
	if cfg.Accounts.Enabled {
		s, err := account.NewStore(cfg.Accounts, log)
		if err != nil {
			return nil, err
		}
		a.store = s
		store = s
		log.Info("Account store connected",
			zap.String("driver", cfg.Accounts.Driver),
			zap.String("dsn", config.MaskDSN(cfg.Accounts.DSN)),
		)
	}

	var cache account.Cache
	if cfg.Accounts.Enabled && cfg.Cache.Enabled {
		c, err := account.NewTierCache(cfg.Cache, log)
		if err != nil {
			log.Warn("Tier cache unavailable, continuing without it", zap.Error(err))
		} else {
			a.cache = c
			cache = c
		}
	}

	a.resolver = account.NewResolver(store, cache, defaultTier, log)
	return a, nil
}

// setTier applies a "user=tier" assignment.
func (a *accounts) setTier(assignment string) error {
	if a.store == nil {
		return errors.New("accounts are disabled in the configuration")
	}
	userID, tierName, ok := strings.Cut(assignment, "=")
	userID = strings.TrimSpace(userID)
	tierName = strings.TrimSpace(tierName)
	if !ok || userID == "" || (tierName != "premium" && tierName != "standard") {
		return fmt.Errorf("expected user=premium|standard, got %q", assignment)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.store.SetTier(ctx, userID, privacy.ParseTier(tierName)); err != nil {
		return err
	}
	if a.cache != nil {
		if err := a.cache.Invalidate(ctx, userID); err != nil {
			a.log.Warn("Failed to invalidate cached tier", zap.Error(err))
		}
	}
	return nil
}

func (a *accounts) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// reportStatus broadcasts the system status periodically
func reportStatus(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.BroadcastStatus()
		}
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(port int) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
