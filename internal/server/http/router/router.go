package router

import (
	"context"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/metrics"
	"github.com/polkiloo/payouts/internal/server/http/handlers"
	"github.com/polkiloo/payouts/internal/server/http/middleware"
)

// HealthChecker reports whether backing storage is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Params lists router dependencies.
type Params struct {
	fx.In

	Facade  handlers.PayoutsFacade
	Config  *config.Config
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Health  HealthChecker `optional:"true"`
}

// Setup configures gin router with handlers and middleware.
func Setup(p Params) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(p.Logger.Named("http")))
	engine.Use(middleware.DecompressRequest(middleware.MaxRequestBody))
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	engine.GET("/metrics", gin.WrapH(p.Metrics.Handler()))
	engine.GET("/healthz", healthz(p.Health))

	withdrawalHandler := handlers.NewWithdrawalHandler(p.Facade)
	balanceHandler := handlers.NewBalanceHandler(p.Facade)
	reviewHandler := handlers.NewReviewHandler(p.Facade)

	api := engine.Group("/api")

	user := api.Group("")
	user.Use(middleware.AuthRequired(p.Facade))
	user.POST("/withdrawals", withdrawalHandler.Withdraw)
	user.POST("/withdrawals/transfer", withdrawalHandler.Transfer)
	user.GET("/balance", balanceHandler.Summary)
	user.GET("/balance/history", balanceHandler.History)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired(p.Config.AdminToken))
	admin.GET("/withdrawals/flagged", reviewHandler.Flagged)
	admin.POST("/withdrawals/:id/approve", reviewHandler.Approve)
	admin.POST("/withdrawals/:id/reject", reviewHandler.Reject)

	return engine
}

func healthz(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.Status(http.StatusOK)
			return
		}
		if err := checker.HealthCheck(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	}
}
