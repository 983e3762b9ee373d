package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockline-wms/stockline/internal/app"
	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/masterdata/items"
	"github.com/stockline-wms/stockline/internal/masterdata/partners"
	"github.com/stockline-wms/stockline/internal/masterdata/warehouses"
	"github.com/stockline-wms/stockline/internal/observability"
	"github.com/stockline-wms/stockline/internal/platform/cache"
	"github.com/stockline-wms/stockline/internal/platform/db"
	"github.com/stockline-wms/stockline/internal/procurement"
	"github.com/stockline-wms/stockline/internal/sales"
	"github.com/stockline-wms/stockline/internal/shared"
	"github.com/stockline-wms/stockline/internal/transfers"
	"github.com/stockline-wms/stockline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	onhandCache := cache.NewCache(redisClient, cfg.OnhandTTL)

	itemRepo := items.NewRepository(pool)
	itemService := items.NewService(itemRepo)
	itemHandler := items.NewHandler(logger, itemService)

	warehouseRepo := warehouses.NewRepository(pool)
	warehouseService := warehouses.NewService(warehouseRepo)
	warehouseHandler := warehouses.NewHandler(logger, warehouseService)

	supplierService := partners.NewService(partners.NewSupplierRepository(pool))
	supplierHandler := partners.NewHandler(logger, supplierService, "supplier")
	customerService := partners.NewService(partners.NewCustomerRepository(pool))
	customerHandler := partners.NewHandler(logger, customerService, "customer")

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, items.NewCatalog(itemRepo), auditLogger, idempotencyStore, onhandCache, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	transferRepo := transfers.NewRepository(pool)
	transferService := transfers.NewService(logger, transferRepo, inventoryService, auditLogger)
	transferHandler := transfers.NewHandler(logger, transferService)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(logger, procurementRepo, inventoryService, auditLogger, idempotencyStore)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(logger, salesRepo, inventoryService, auditLogger, idempotencyStore)
	salesHandler := sales.NewHandler(logger, salesService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ItemHandler:        itemHandler,
		WarehouseHandler:   warehouseHandler,
		SupplierHandler:    supplierHandler,
		CustomerHandler:    customerHandler,
		InventoryHandler:   inventoryHandler,
		TransferHandler:    transferHandler,
		ProcurementHandler: procurementHandler,
		SalesHandler:       salesHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
