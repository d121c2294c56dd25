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

	"github.com/isdelr/ender-accounts/internal/api"
	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/cache"
	"github.com/isdelr/ender-accounts/internal/config"
	"github.com/isdelr/ender-accounts/internal/credential"
	"github.com/isdelr/ender-accounts/internal/database"
	"github.com/isdelr/ender-accounts/internal/logger"
	"github.com/isdelr/ender-accounts/internal/monitoring"
	"github.com/isdelr/ender-accounts/internal/policy"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/isdelr/ender-accounts/internal/store"
	"github.com/isdelr/ender-accounts/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Set up database
	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub for the live audit feed
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Set up services
	engine := policy.NewEngine(policy.NewOverrideSet(cfg.AdminOverrideIDs...))
	auditService := services.NewAuditService(db, cfg.DatabaseDriver, engine, hub)

	var accountCache services.AccountCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, running without account cache")
		} else {
			defer rdb.Close()
			accountCache = cache.NewAccountCache(rdb, cfg.CacheTTL)
			log.Info().Str("addr", cfg.RedisAddr).Msg("Account cache enabled")
		}
	}

	accountService := services.NewAccountService(
		store.NewSQLStore(db, cfg.DatabaseDriver),
		credential.NewBcryptCodec(cfg.BcryptCost),
		engine,
		auditService,
		accountCache,
		cfg.MaxPageSize,
	)

	if cfg.BootstrapManagerLogin != "" {
		manager, err := accountService.EnsureManager(ctx, cfg.BootstrapManagerLogin, cfg.BootstrapManagerPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap manager account")
		}
		log.Info().Str("account_id", manager.ID).Msg("Manager account ready")
	}

	// Set up and run the audit retention job
	retention, err := monitoring.NewRetentionJob(auditService, cfg.AuditRetention, cfg.RetentionSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule audit retention")
	}
	retention.Run()

	// Set up router
	router := api.NewRouter(api.Deps{
		Issuer:          auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Hub:             hub,
		Accounts:        accountService,
		Audit:           auditService,
		DB:              db,
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultPageSize: cfg.DefaultPageSize,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	retention.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stop() // closes audit feed clients

	log.Info().Msg("Server exiting")
}
