package procurement

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

// MountOrderRoutes registers purchase order endpoints.
func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.Get("/", h.handleListPOs)
	r.Post("/", h.handleCreatePO)
	r.Get("/{id}", h.handleGetPO)
	r.Post("/{id}/approve", h.handleApprovePO)
	r.Post("/{id}/cancel", h.handleCancelPO)
}

// MountReceiptRoutes registers goods receipt endpoints.
func (h *Handler) MountReceiptRoutes(r chi.Router) {
	r.Get("/", h.handleListReceipts)
	r.Post("/", h.handleCreateReceipt)
	r.Get("/{id}", h.handleGetReceipt)
	r.Post("/{id}/post", h.handlePostReceipt)
}

// MountReturnRoutes registers supplier return endpoints.
func (h *Handler) MountReturnRoutes(r chi.Router) {
	r.Get("/", h.handleListReturns)
	r.Post("/", h.handleCreateReturn)
	r.Get("/{id}", h.handleGetReturn)
	r.Post("/{id}/approve", h.handleApproveReturn)
	r.Post("/{id}/reject", h.handleRejectReturn)
}

// POLineRequest is one ordered line in the creation payload.
type POLineRequest struct {
	ItemID    int64           `json:"item_id" validate:"required,gt=0"`
	Qty       float64         `json:"qty" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreatePORequest is the purchase order creation payload.
type CreatePORequest struct {
	SupplierID  int64           `json:"supplier_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	Note        string          `json:"note" validate:"max=500"`
	OrderedAt   string          `json:"ordered_at" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy   int64           `json:"created_by" validate:"gte=0"`
	Lines       []POLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ReceiptLineRequest receives against one order line.
type ReceiptLineRequest struct {
	POLineID int64   `json:"po_line_id" validate:"required,gt=0"`
	Qty      float64 `json:"qty" validate:"required,gt=0"`
}

// CreateReceiptRequest is the goods receipt creation payload.
type CreateReceiptRequest struct {
	POID       int64                `json:"po_id" validate:"required,gt=0"`
	Note       string               `json:"note" validate:"max=500"`
	ReceivedAt string               `json:"received_at" validate:"omitempty,datetime=2006-01-02"`
	CreatedBy  int64                `json:"created_by" validate:"gte=0"`
	Lines      []ReceiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ReturnLineRequest returns against one receipt line.
type ReturnLineRequest struct {
	ReceiptLineID int64   `json:"receipt_line_id" validate:"required,gt=0"`
	Qty           float64 `json:"qty" validate:"required,gt=0"`
}

// CreateReturnRequest is the supplier return creation payload.
type CreateReturnRequest struct {
	ReceiptID int64               `json:"receipt_id" validate:"required,gt=0"`
	Reason    string              `json:"reason" validate:"max=500"`
	CreatedBy int64               `json:"created_by" validate:"gte=0"`
	Lines     []ReturnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ActorRequest carries the acting user for state transitions.
type ActorRequest struct {
	ActorID int64 `json:"actor_id" validate:"gte=0"`
}

func (h *Handler) handleCreatePO(w http.ResponseWriter, r *http.Request) {
	var req CreatePORequest
	if !h.decode(w, r, &req) {
		return
	}
	input := CreatePOInput{
		SupplierID:  req.SupplierID,
		WarehouseID: req.WarehouseID,
		Note:        req.Note,
		CreatedBy:   req.CreatedBy,
	}
	if req.OrderedAt != "" {
		t, _ := time.Parse("2006-01-02", req.OrderedAt)
		input.OrderedAt = t
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, POLineInput{ItemID: line.ItemID, Qty: line.Qty, UnitPrice: line.UnitPrice})
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) handleGetPO(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	po, lines, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": po, "lines": lines})
}

func (h *Handler) handleListPOs(w http.ResponseWriter, r *http.Request) {
	filter := docFilter(r)
	list, total, err := h.service.ListPurchaseOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, "list purchase orders", err)
		return
	}
	writeDocPage(w, list, filter, total)
}

func (h *Handler) handleApprovePO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve purchase order", h.service.ApprovePurchaseOrder)
}

func (h *Handler) handleCancelPO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel purchase order", h.service.CancelPurchaseOrder)
}

func (h *Handler) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	var req CreateReceiptRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := CreateReceiptInput{POID: req.POID, Note: req.Note, CreatedBy: req.CreatedBy}
	if req.ReceivedAt != "" {
		t, _ := time.Parse("2006-01-02", req.ReceivedAt)
		input.ReceivedAt = t
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, ReceiptLineInput{POLineID: line.POLineID, Qty: line.Qty})
	}
	receipt, err := h.service.CreateReceipt(r.Context(), input)
	if err != nil {
		h.fail(w, "create receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	receipt, lines, err := h.service.GetReceipt(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipt": receipt, "lines": lines})
}

func (h *Handler) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	filter := docFilter(r)
	list, total, err := h.service.ListReceipts(r.Context(), filter)
	if err != nil {
		h.fail(w, "list receipts", err)
		return
	}
	writeDocPage(w, list, filter, total)
}

func (h *Handler) handlePostReceipt(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, "post receipt", h.service.PostReceipt)
}

func (h *Handler) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req CreateReturnRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := CreateReturnInput{ReceiptID: req.ReceiptID, Reason: req.Reason, CreatedBy: req.CreatedBy}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, ReturnLineInput{ReceiptLineID: line.ReceiptLineID, Qty: line.Qty})
	}
	ret, err := h.service.CreateReturn(r.Context(), input)
	if err != nil {
		h.fail(w, "create return", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := docID(w, r)
	if !ok {
		return
	}
	ret, lines, err := h.service.GetReturn(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"return": ret, "lines": lines})
}

func (h *Handler) handleListReturns(w http.ResponseWriter, r *http.Request) {
	filter := docFilter(r)
	list, total, err := h.service.ListReturns(r.Context(), filter)
	if err != nil {
		h.fail(w, "list returns", err)
		return
	}
	writeDocPage(w, list, filter, total)
}

func (h *Handler) handleApproveReturn(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, "approve return", h.service.ApproveReturn)
}

func (h *Handler) handleRejectReturn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reject return", h.service.RejectReturn)
}

// transition runs a state change taking (id, actorID).
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
	case errors.Is(err, ErrOverReceipt), errors.Is(err, ErrOverReturn),
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
