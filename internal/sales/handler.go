package sales

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/platform/httpx"
	"github.com/stockline-wms/stockline/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountOrderRoutes registers sales order endpoints.
func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.Get("/", h.handleListOrders)
	r.Post("/", h.handleCreateOrder)
	r.Get("/{id}", h.handleGetOrder)
	r.Post("/{id}/cancel", h.handleCancelOrder)
	r.Post("/{id}/invoice", h.handleCreateInvoice)
}

// MountDeliveryRoutes registers delivery endpoints.
func (h *Handler) MountDeliveryRoutes(r chi.Router) {
	r.Get("/", h.handleListDeliveries)
	r.Post("/", h.handleCreateDelivery)
	r.Get("/{id}", h.handleGetDelivery)
	r.Post("/{id}/post", h.handlePostDelivery)
}

// MountInvoiceRoutes registers invoice endpoints.
func (h *Handler) MountInvoiceRoutes(r chi.Router) {
	r.Get("/", h.handleListInvoices)
	r.Get("/{id}", h.handleGetInvoice)
	r.Post("/{id}/issue", h.handleIssueInvoice)
	r.Post("/{id}/void", h.handleVoidInvoice)
	r.Post("/{id}/payments", h.handleRegisterPayment)
}

// OrderLineRequest is one ordered line in the creation payload.
type OrderLineRequest struct {
	ItemID    int64           `json:"item_id" validate:"required,gt=0"`
	Qty       float64         `json:"qty" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderRequest is the sales order creation payload.
type CreateOrderRequest struct {
	CustomerID  int64              `json:"customer_id" validate:"required,gt=0"`
	WarehouseID int64              `json:"warehouse_id" validate:"required,gt=0"`
	Note        string             `json:"note" validate:"max=500"`
	OrderedAt   string             `json:"ordered_at" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy   int64              `json:"created_by" validate:"gte=0"`
	Lines       []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// DeliveryLineRequest ships against one order line.
type DeliveryLineRequest struct {
	OrderLineID int64   `json:"order_line_id" validate:"required,gt=0"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
}

// CreateDeliveryRequest is the delivery creation payload.
type CreateDeliveryRequest struct {
	OrderID     int64                 `json:"order_id" validate:"required,gt=0"`
	Note        string                `json:"note" validate:"max=500"`
	DeliveredAt string                `json:"delivered_at" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy   int64                 `json:"created_by" validate:"gte=0"`
	Lines       []DeliveryLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CreateInvoiceRequest bills an order.
type CreateInvoiceRequest struct {
	DueAt   string `json:"due_at" validate:"omitempty,datetime=2006-01-02"`
	ActorID int64  `json:"actor_id" validate:"gte=0"`
}

// PaymentRequest registers money against an invoice.
type PaymentRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	ActorID int64           `json:"actor_id" validate:"gte=0"`
}

// ActorRequest carries the acting user for state transitions.
type ActorRequest struct {
	ActorID int64 `json:"actor_id" validate:"gte=0"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := CreateOrderInput{
		CustomerID:  req.CustomerID,
		WarehouseID: req.WarehouseID,
		Note:        req.Note,
		CreatedBy:   req.CreatedBy,
	}
	if req.OrderedAt != "" {
		t, _ := time.Parse("2006-01-02", req.OrderedAt)
		input.OrderedAt = t
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, OrderLineInput{ItemID: line.ItemID, Qty: line.Qty, UnitPrice: line.UnitPrice})
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	order, lines, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "lines": lines})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter := docFilter(r)
	list, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	writeDocPage(w, list, filter, total)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel order", h.service.CancelOrder)
}

func (h *Handler) handleCreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req CreateDeliveryRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := CreateDeliveryInput{OrderID: req.OrderID, Note: req.Note, CreatedBy: req.CreatedBy}
	if req.DeliveredAt != "" {
		t, _ := time.Parse("2006-01-02", req.DeliveredAt)
		input.DeliveredAt = t
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, DeliveryLineInput{OrderLineID: line.OrderLineID, Qty: line.Qty})
	}
	delivery, err := h.service.CreateDelivery(r.Context(), input)
	if err != nil {
		h.fail(w, "create delivery", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, delivery)
}

func (h *Handler) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	delivery, lines, err := h.service.GetDelivery(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"delivery": delivery, "lines": lines})
}

func (h *Handler) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	filter := docFilter(r)
	list, total, err := h.service.ListDeliveries(r.Context(), filter)
	if err != nil {
		h.fail(w, "list deliveries", err)
		return
	}
	writeDocPage(w, list, filter, total)
}

func (h *Handler) handlePostDelivery(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, "post delivery", h.service.PostDelivery)
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	var req CreateInvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	var dueAt *time.Time
	if req.DueAt != "" {
		t, _ := time.Parse("2006-01-02", req.DueAt)
		dueAt = &t
	}
	invoice, err := h.service.CreateInvoice(r.Context(), id, dueAt, req.ActorID)
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	filter := docFilter(r)
	list, total, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	writeDocPage(w, list, filter, total)
}

func (h *Handler) handleIssueInvoice(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "issue invoice", h.service.IssueInvoice)
}

func (h *Handler) handleVoidInvoice(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "void invoice", h.service.VoidInvoice)
}

func (h *Handler) handleRegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	invoice, err := h.service.RegisterPayment(r.Context(), PaymentInput{InvoiceID: id, Amount: req.Amount, ActorID: req.ActorID})
	if err != nil {
		h.fail(w, "register payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, what string, fn func(ctx context.Context, id, actorID int64) error) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	var req ActorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := fn(r.Context(), id, req.ActorID); err != nil {
		h.fail(w, what, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// reconcile is transition for the stock-moving postings: the response carries
// the per-line ledger balances produced inside the transaction.
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request, what string, fn func(ctx context.Context, id, actorID int64) ([]PostingResult, error)) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	var req ActorRequest
	if !h.decode(w, r, &req) {
		return
	}
	results, err := fn(r.Context(), id, req.ActorID)
	if err != nil {
		h.fail(w, what, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok", "lines": results})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, what string, err error) {
	h.logger.Error(what+" failed", slog.Any("error", err))
	httpx.RespondError(w, mapErr(err))
}

func docID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid document id")
		return 0, false
	}
	return id, true
}

func docFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{Status: q.Get("status")}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	return filter
}

func writeDocPage[T any](w http.ResponseWriter, list []T, filter ListFilter, total int) {
	if list == nil {
		list = []T{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       list,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errors.Join(httpx.ErrNotFound, err)
	case errors.Is(err, ErrInvalidState):
		return errors.Join(httpx.ErrInvalidState, err)
	case errors.Is(err, ErrOverDelivery), errors.Is(err, ErrOverPayment),
		errors.Is(err, ErrValidation), errors.Is(err, ErrNoLines):
		return errors.Join(httpx.ErrValidation, err)
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return errors.Join(httpx.ErrConflict, err)
	case errors.Is(err, inventory.ErrInsufficientStock):
		return errors.Join(httpx.ErrInsufficientStock, err)
	case errors.Is(err, inventory.ErrItemUnknown):
		return errors.Join(httpx.ErrValidation, err)
	default:
		return err
	}
}
