package registry

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"shairing/internal/httpapi"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the item routes, mounted under /api/items.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleAdd)
	r.Get("/{itemID}", h.handleGet)
	r.Patch("/{itemID}", h.handleUpdate)
	r.Delete("/{itemID}", h.handleRemove)
	return r
}

func itemID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	return id, err == nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpapi.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		httpapi.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrItemReferenced), errors.Is(err, ErrVersionConflict):
		httpapi.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidField):
		httpapi.Error(w, http.StatusBadRequest, err.Error())
	default:
		httpapi.Error(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []*Item{}
	}
	httpapi.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID     uuid.UUID `json:"owner_id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Tags        []string  `json:"tags"`
		RiskLevel   string    `json:"risk_level"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OwnerID == uuid.Nil || req.Name == "" {
		httpapi.Error(w, http.StatusBadRequest, "owner_id and name are required")
		return
	}

	item, err := h.service.AddItem(r.Context(), req.OwnerID, req.Name, req.Description, req.Tags, req.RiskLevel)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		httpapi.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		httpapi.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req struct {
		UserID      uuid.UUID `json:"user_id"`
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		Tags        *[]string `json:"tags"`
		Status      *string   `json:"status"`
		RiskLevel   *string   `json:"risk_level"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		httpapi.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	item, err := h.service.UpdateItem(r.Context(), id, req.UserID, ItemUpdate{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Status:      req.Status,
		RiskLevel:   req.RiskLevel,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		httpapi.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	if err := h.service.RemoveItem(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
