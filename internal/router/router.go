package router

import (
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/config"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/handler"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/infra"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/middleware"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived objects built by the composition root.
type Deps struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Breaker    *infra.Breaker
	Auditor    *worker.Auditor
	Dispatcher *worker.Dispatcher
	Limiter    *middleware.RateLimiter
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	if d.Limiter != nil {
		r.Use(d.Limiter.Middleware())
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(d.DB)
	variantRepo := repository.NewVariantRepository(d.DB)
	movementRepo := repository.NewStockMovementRepository(d.DB)
	priceRepo := repository.NewPriceHistoryRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	productSvc := service.NewProductService(productRepo, variantRepo)
	variantSvc := service.NewVariantService(productRepo, variantRepo, movementRepo, priceRepo)
	unitSvc := service.NewUnitService(variantRepo, movementRepo, cfg.AllocationCandidates)
	stockSvc := service.NewStockService(variantRepo, movementRepo, cfg.AuditBatchSize)

	// ── Handlers ─────────────────────────────────────────────────────────────
	productsH := handler.NewProductsHandler(productSvc, variantSvc)
	variantsH := handler.NewVariantsHandler(variantSvc, unitSvc, stockSvc, d.Dispatcher)
	unitsH := handler.NewUnitsHandler(unitSvc)
	stockH := handler.NewStockHandler(stockSvc, variantSvc, d.Auditor, d.Dispatcher)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(d.DB, d.Redis, d.Breaker))

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	staff := middleware.RequireRole(middleware.RoleCashier, middleware.RoleManager, middleware.RoleAdmin)
	managers := middleware.RequireRole(middleware.RoleManager, middleware.RoleAdmin)

	products := v1.Group("/products")
	{
		products.GET("/:id", staff, productsH.Get)
		products.GET("/:id/variants", staff, productsH.ListVariants)
		products.POST("", managers, productsH.Create)
		products.POST("/:id/variants", managers, productsH.AddVariants)
		products.POST("/:id/finalize", managers, productsH.Finalize)
		products.POST("/:id/parents", managers, productsH.CreateParent)
	}

	variants := v1.Group("/variants")
	{
		variants.GET("/:id", staff, variantsH.Get)
		variants.GET("/:id/prices", staff, variantsH.PriceHistory)
		variants.PUT("/:id/prices", managers, variantsH.UpdatePrices)
		variants.PATCH("/:id/stock", managers, variantsH.AdjustStock)
		variants.POST("/:id/convert", managers, variantsH.ConvertToParent)
		variants.DELETE("/:id", managers, variantsH.Deactivate)

		// Unit ledger, scoped to a parent
		variants.GET("/:id/units", staff, variantsH.AvailableUnits)
		variants.GET("/:id/units/all", staff, variantsH.ListUnits)
		variants.POST("/:id/units", managers, variantsH.ReceiveUnit)
		variants.POST("/:id/units/batch", managers, variantsH.ReceiveUnits)
		variants.POST("/:id/allocate", staff, variantsH.Allocate)
		variants.POST("/:id/recompute", managers, variantsH.Recompute)
	}

	units := v1.Group("/units")
	{
		units.GET("/serial/:serial", staff, unitsH.BySerial)
		units.GET("/serial/:serial/history", staff, unitsH.SerialHistory)
		units.GET("/search", staff, unitsH.Search)
		units.PATCH("/:id", managers, unitsH.Update)
		units.POST("/:id/sell", staff, unitsH.Sell)
		units.POST("/:id/return", managers, unitsH.Return)
		units.DELETE("/:id", managers, unitsH.Remove)
	}

	stock := v1.Group("/stock")
	{
		stock.GET("/low", staff, stockH.LowStock)
		stock.GET("/movements", managers, stockH.Movements)
		stock.POST("/audit", middleware.RequireRole(middleware.RoleAdmin), stockH.Audit)
		stock.POST("/audit/async", middleware.RequireRole(middleware.RoleAdmin), stockH.AuditAsync)
		stock.GET("/audit/last", managers, stockH.LastAudit)
	}

	return r
}

// DefaultLimiter is the per-IP limit applied to the whole API.
func DefaultLimiter() *middleware.RateLimiter {
	return middleware.NewRateLimiter(1000, time.Minute)
}
