// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"larder/internal/domain/allocation"
	"larder/internal/domain/catalog/item"
	"larder/internal/domain/journal"
	"larder/internal/domain/ledger"
	"larder/internal/domain/stockcount"
	"larder/internal/infrastructure/http/v1/handlers"
	"larder/internal/infrastructure/http/v1/middleware"
	"larder/internal/infrastructure/storage/postgres"
	"larder/internal/infrastructure/storage/postgres/catalog_repo"
	"larder/internal/infrastructure/storage/postgres/count_repo"
	"larder/internal/infrastructure/storage/postgres/journal_repo"
	"larder/internal/infrastructure/storage/postgres/ledger_repo"
	"larder/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Logger    *logger.Logger

	// IdempotencyEnabled enables the X-Idempotency-Key middleware on
	// mutating endpoints.
	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Actor())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Repositories share the injected transaction manager; the active
	// transaction travels in the request context.
	itemRepo := catalog_repo.NewItemRepo(cfg.TxManager)
	lotRepo := ledger_repo.NewLotRepo(cfg.TxManager)
	moveRepo := journal_repo.NewMoveRepo(cfg.TxManager)
	countRepo := count_repo.NewCountRepo(cfg.TxManager)

	auditService, err := postgres.NewAuditService(cfg.TxManager)
	if err != nil {
		// zstd encoder construction fails only on bad options.
		panic(err)
	}

	itemService := item.NewService(itemRepo, cfg.TxManager)
	journalService := journal.NewService(moveRepo)
	ledgerService := ledger.NewService(lotRepo, itemRepo, journalService, auditService, cfg.TxManager)
	allocationService := allocation.NewService(lotRepo, itemRepo, journalService, cfg.TxManager)
	countService := stockcount.NewService(countRepo, ledgerService, cfg.TxManager)

	base := handlers.NewBaseHandler()

	api := router.Group("/api/v1")
	if cfg.IdempotencyEnabled {
		ttl := cfg.IdempotencyTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		store := postgres.NewIdempotencyStore(cfg.TxManager, ttl)
		api.Use(middleware.Idempotency(store))
	}

	{
		itemHandler := handlers.NewItemHandler(base, itemService, auditService)
		itemHandler.RegisterRoutes(api.Group("/catalog/items"))

		lotHandler := handlers.NewLotHandler(base, ledgerService, auditService)
		lotHandler.RegisterRoutes(api.Group("/ledger/lots"))

		allocationHandler := handlers.NewAllocationHandler(base, allocationService)
		allocationHandler.RegisterRoutes(api.Group("/ledger/deductions"))

		moveHandler := handlers.NewMoveHandler(base, journalService)
		moveHandler.RegisterRoutes(api.Group("/ledger/moves"))

		countHandler := handlers.NewCountHandler(base, countService)
		countHandler.RegisterRoutes(api.Group("/counts"))
	}

	return router
}
