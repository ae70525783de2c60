package residents

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

// Routes returns the resident routes, mounted under /api/residents.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleAdd)
	r.Get("/{residentID}", h.handleGet)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	residents, err := h.service.ListResidents(r.Context())
	if err != nil {
		httpapi.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if residents == nil {
		residents = []*Resident{}
	}
	httpapi.JSON(w, http.StatusOK, residents)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Floor   int    `json:"floor"`
		Flat    string `json:"flat"`
		Contact string `json:"contact"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		httpapi.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	resident, err := h.service.AddResident(r.Context(), req.Name, req.Floor, req.Flat, req.Contact)
	if err != nil {
		httpapi.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpapi.JSON(w, http.StatusCreated, resident)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "residentID"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid resident id")
		return
	}

	resident, err := h.service.GetResident(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpapi.Error(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		httpapi.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpapi.JSON(w, http.StatusOK, resident)
}
