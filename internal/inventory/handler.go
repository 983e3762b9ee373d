package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockline-wms/stockline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/onhand", h.handleOnhand)
	r.Get("/stock-card", h.handleStockCard)
	r.Post("/adjustments", h.handleAdjustment)
}

// AdjustmentRequest is the direct add/subtract payload.
type AdjustmentRequest struct {
	WarehouseID int64   `json:"warehouse_id" validate:"required,gt=0"`
	ItemID      int64   `json:"item_id" validate:"required,gt=0"`
	Qty         float64 `json:"qty" validate:"required"`
	Particulars string  `json:"particulars" validate:"max=500"`
	ActorID     int64   `json:"actor_id" validate:"gte=0"`
}

func (h *Handler) handleOnhand(w http.ResponseWriter, r *http.Request) {
	warehouseID, itemID, ok := parsePairQuery(w, r)
	if !ok {
		return
	}
	bal, err := h.service.GetOnhand(r.Context(), warehouseID, itemID)
	if err != nil {
		h.logger.Error("get onhand failed", slog.Any("error", err))
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, bal)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	warehouseID, itemID, ok := parsePairQuery(w, r)
	if !ok {
		return
	}
	filter := StockCardFilter{WarehouseID: warehouseID, ItemID: itemID, Limit: 500}
	q := r.URL.Query()
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	entries, err := h.service.GetStockCard(r.Context(), filter)
	if err != nil {
		h.logger.Error("get stock card failed", slog.Any("error", err))
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		WarehouseID: req.WarehouseID,
		ItemID:      req.ItemID,
		Qty:         req.Qty,
		Note:        req.Particulars,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.logger.Error("post adjustment failed", slog.Any("error", err))
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func parsePairQuery(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	q := r.URL.Query()
	warehouseID, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id required")
		return 0, 0, false
	}
	itemID, err := strconv.ParseInt(q.Get("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_id required")
		return 0, 0, false
	}
	return warehouseID, itemID, true
}

// mapErr translates domain sentinels to the shared HTTP taxonomy.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInsufficientStock):
		return errors.Join(httpx.ErrInsufficientStock, err)
	case errors.Is(err, ErrInvalidQuantity):
		return errors.Join(httpx.ErrValidation, err)
	case errors.Is(err, ErrItemUnknown):
		return errors.Join(httpx.ErrNotFound, err)
	}
	return err
}
