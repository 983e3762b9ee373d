package warehouses

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	mdshared "github.com/stockline-wms/stockline/internal/masterdata/shared"
	"github.com/stockline-wms/stockline/internal/platform/httpx"
	"github.com/stockline-wms/stockline/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
}

// WarehouseRequest is the create/update payload.
type WarehouseRequest struct {
	Code     string `json:"code" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=255"`
	Address  string `json:"address" validate:"max=500"`
	IsActive *bool  `json:"is_active"`
}

func (req WarehouseRequest) toWarehouse() Warehouse {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Warehouse{Code: req.Code, Name: req.Name, Address: req.Address, IsActive: active}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := mdshared.ParseListFilters(r)
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list warehouses failed", slog.Any("error", err))
		httpx.RespondError(w, mdshared.MapError(err))
		return
	}
	if list == nil {
		list = []Warehouse{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       list,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := mdshared.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mdshared.MapError(err))
		return
	}
	wh, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, mdshared.MapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, wh)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req WarehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), req.toWarehouse())
	if err != nil {
		h.logger.Error("create warehouse failed", slog.Any("error", err))
		httpx.RespondError(w, mdshared.MapError(err))
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := mdshared.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mdshared.MapError(err))
		return
	}
	var req WarehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.Update(r.Context(), id, req.toWarehouse())
	if err != nil {
		h.logger.Error("update warehouse failed", slog.Any("error", err))
		httpx.RespondError(w, mdshared.MapError(err))
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := mdshared.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mdshared.MapError(err))
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, mdshared.MapError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
