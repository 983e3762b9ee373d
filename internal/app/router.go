package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/masterdata/items"
	"github.com/stockline-wms/stockline/internal/masterdata/partners"
	"github.com/stockline-wms/stockline/internal/masterdata/warehouses"
	"github.com/stockline-wms/stockline/internal/observability"
	"github.com/stockline-wms/stockline/internal/procurement"
	"github.com/stockline-wms/stockline/internal/sales"
	"github.com/stockline-wms/stockline/internal/transfers"
	"github.com/stockline-wms/stockline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ItemHandler      *items.Handler
	WarehouseHandler *warehouses.Handler
	SupplierHandler  *partners.Handler
	CustomerHandler  *partners.Handler

	InventoryHandler   *inventory.Handler
	TransferHandler    *transfers.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler

	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with Stockline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/items", params.ItemHandler.MountRoutes)
		r.Route("/warehouses", params.WarehouseHandler.MountRoutes)
		r.Route("/suppliers", params.SupplierHandler.MountRoutes)
		r.Route("/customers", params.CustomerHandler.MountRoutes)

		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/transfers", params.TransferHandler.MountRoutes)

		r.Route("/purchase-orders", params.ProcurementHandler.MountOrderRoutes)
		r.Route("/purchase-receipts", params.ProcurementHandler.MountReceiptRoutes)
		r.Route("/purchase-returns", params.ProcurementHandler.MountReturnRoutes)

		r.Route("/sales-orders", params.SalesHandler.MountOrderRoutes)
		r.Route("/deliveries", params.SalesHandler.MountDeliveryRoutes)
		r.Route("/invoices", params.SalesHandler.MountInvoiceRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
