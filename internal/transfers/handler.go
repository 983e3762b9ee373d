package transfers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

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

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/reject", h.handleReject)
}

// TransferLineRequest is one item position in the creation payload.
type TransferLineRequest struct {
	ItemID int64   `json:"item_id" validate:"required,gt=0"`
	Qty    float64 `json:"qty" validate:"required,gt=0"`
}

// TransferRequest is the creation payload.
type TransferRequest struct {
	SourceID      int64                 `json:"source_warehouse_id" validate:"required,gt=0"`
	DestinationID int64                 `json:"destination_warehouse_id" validate:"required,gt=0"`
	Note          string                `json:"note" validate:"max=500"`
	RequestedBy   int64                 `json:"requested_by" validate:"gte=0"`
	Lines         []TransferLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// DecisionRequest carries the actor for approve/reject calls.
type DecisionRequest struct {
	ActorID int64  `json:"actor_id" validate:"gte=0"`
	Reason  string `json:"reason" validate:"max=500"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status")
		return
	}
	if v, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64); err == nil {
		filter.WarehouseID = v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}
	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transfers failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Transfer{}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       list,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		SourceID:      req.SourceID,
		DestinationID: req.DestinationID,
		Note:          req.Note,
		RequestedBy:   req.RequestedBy,
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ItemID: l.ItemID, Qty: l.Qty})
	}
	t, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create transfer failed", slog.Any("error", err))
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Approve(r.Context(), id, req.ActorID)
	if err != nil {
		h.logger.Error("approve transfer failed", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Reject(r.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		h.logger.Error("reject transfer failed", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return 0, false
	}
	return id, true
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return errors.Join(httpx.ErrNotFound, err)
	case errors.Is(err, ErrAlreadyDecided):
		return errors.Join(httpx.ErrConflict, err)
	case errors.Is(err, ErrSameWarehouse), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrNoLines), errors.Is(err, ErrDuplicateItem):
		return errors.Join(httpx.ErrValidation, err)
	case errors.Is(err, inventory.ErrInsufficientStock):
		return errors.Join(httpx.ErrInsufficientStock, err)
	case errors.Is(err, inventory.ErrItemUnknown):
		return errors.Join(httpx.ErrValidation, err)
	default:
		return err
	}
}
