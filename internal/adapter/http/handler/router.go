package handler

import (
	"commute-rewards/internal/adapter/http/middleware"
	redisStore "commute-rewards/internal/adapter/storage/redis"
	"commute-rewards/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	EarnSvc        ports.EarnService
	RedeemSvc      ports.RedemptionService
	VoucherSvc     ports.VoucherService
	ReportingSvc   ports.ReportingService
	Catalog        ports.RewardCatalog
	TokenSvc       ports.TokenService
	AccountStore   ports.AccountStore
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	rewardsHandler := NewRewardsHandler(deps.Catalog)
	v1.GET("/rewards", rewardsHandler.List)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	pointsHandler := NewPointsHandler(deps.EarnSvc, deps.RedeemSvc, deps.ReportingSvc)
	voucherHandler := NewVoucherHandler(deps.VoucherSvc)
	accountHandler := NewAccountHandler(deps.AccountStore)

	points := v1.Group("/points", jwtAuth)
	{
		points.POST("/earn", rl("points_earn"), pointsHandler.Earn)
		points.POST("/redeem", rl("points_redeem"), pointsHandler.Redeem)
		points.GET("/balance", rl("points_read"), pointsHandler.GetBalance)
		points.GET("/ledger", rl("points_read"), pointsHandler.ListLedger)
		points.GET("/ledger/verify", rl("points_read"), pointsHandler.VerifyLedger)
	}

	vouchers := v1.Group("/vouchers", jwtAuth)
	{
		vouchers.GET("", rl("points_read"), voucherHandler.List)
		vouchers.POST("/:id/status", rl("voucher_status"), voucherHandler.UpdateStatus)
	}

	account := v1.Group("/account", jwtAuth)
	{
		account.DELETE("", rl("points_read"), accountHandler.Deactivate)
	}

	return r
}
