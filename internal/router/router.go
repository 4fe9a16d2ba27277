package router

import (
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/identity"
	"stockledger/internal/infra"
	"stockledger/internal/metrics"
	"stockledger/internal/middleware"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Deps are the long-lived collaborators built by the composition root.
type Deps struct {
	Backend  repository.Backend
	Codec    identity.TokenCodec
	Redis    *redis.Client // nil when Redis is not configured
	Metrics  *metrics.Registry
	Notifier service.AlertNotifier // nil disables low-stock alerts
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Executor ← Backend (Postgres/memory)
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Metrics))
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.Origins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(redisOrNil(d.Redis), cfg.RateLimit, time.Minute))

	// ── Services ─────────────────────────────────────────────────────────────
	catalogSvc := service.NewCatalogService(d.Metrics)
	ledgerStore := service.NewLedgerStore(d.Metrics)
	projection := service.NewStockProjection(d.Metrics)
	ledgerSvc := service.NewLedgerService(catalogSvc, ledgerStore, projection, d.Notifier, d.Metrics)

	delegator := identity.NewDelegator(d.Codec, d.Backend, d.Metrics)

	// ── Handlers ─────────────────────────────────────────────────────────────
	productsH := handler.NewProductsHandler(catalogSvc, projection, infra.NewQRCodec(cfg.FrontendURL))
	stockH := handler.NewStockHandler(ledgerSvc, ledgerStore, catalogSvc, projection)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/", handler.Root)
	r.GET("/health", handler.Health(d.Backend, d.Redis))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Everything else runs under the caller's delegated session
	api := r.Group("/", middleware.Delegate(delegator))
	{
		api.GET("/products", productsH.List)
		api.POST("/products", productsH.Create)
		api.GET("/products/lookup", productsH.Lookup)
		api.GET("/products/:id", productsH.Get)
		api.PUT("/products/:id", productsH.Update)
		api.DELETE("/products/:id", productsH.Delete)
		api.GET("/products/:id/qr-code", productsH.QRCode)

		api.POST("/update-stock", stockH.UpdateStock)
		api.GET("/transactions", stockH.Transactions)
		api.GET("/low-stock", stockH.LowStock)
	}

	return r
}

// redisOrNil keeps a nil *redis.Client from becoming a non-nil Cmdable.
func redisOrNil(rdb *redis.Client) redis.Cmdable {
	if rdb == nil {
		return nil
	}
	return rdb
}
