package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commute-rewards/config"
	httpHandler "commute-rewards/internal/adapter/http/handler"
	pgStorage "commute-rewards/internal/adapter/storage/postgres"
	redisStorage "commute-rewards/internal/adapter/storage/redis"
	"commute-rewards/internal/core/ports"
	"commute-rewards/internal/service"
	"commute-rewards/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Commute Rewards")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountStore := pgStorage.NewAccountStore(pool, log)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	voucherRepo := pgStorage.NewVoucherRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	catalogSvc := service.NewCatalogService(cfg.Catalog)
	auditSvc := service.NewAuditService(auditRepo, log)
	earnSvc := service.NewEarnService(
		accountStore,
		ledgerRepo,
		idempotencyRepo,
		idempotencyCache,
		auditSvc,
		cfg.Points.MaxEarnPerEvent,
		log,
	)
	redeemSvc := service.NewRedemptionService(
		accountStore,
		ledgerRepo,
		voucherRepo,
		idempotencyRepo,
		idempotencyCache,
		catalogSvc,
		auditSvc,
		log,
	)
	voucherSvc := service.NewVoucherService(voucherRepo, auditSvc, log)
	reportingSvc := service.NewReportingService(accountStore, ledgerRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		EarnSvc:        earnSvc,
		RedeemSvc:      redeemSvc,
		VoucherSvc:     voucherSvc,
		ReportingSvc:   reportingSvc,
		Catalog:        catalogSvc,
		TokenSvc:       tokenSvc,
		AccountStore:   accountStore,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
