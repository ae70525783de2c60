package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"time"

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

// Routes returns the borrowing routes, mounted under /api/borrowings.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleRequest)
	r.Get("/", h.handleListForUser)
	r.Get("/pending", h.handlePending)
	r.Get("/stale", h.handleStale)
	r.Get("/{borrowingID}", h.handleGet)
	r.Get("/{borrowingID}/events", h.handleEvents)
	r.Post("/{borrowingID}/confirm", h.transitionHandler("lender_id", Service.ConfirmBorrowing))
	r.Post("/{borrowingID}/reject", h.transitionHandler("lender_id", Service.RejectBorrowing))
	r.Post("/{borrowingID}/cancel", h.transitionHandler("borrower_id", Service.CancelBorrowing))
	r.Post("/{borrowingID}/request-return", h.transitionHandler("borrower_id", Service.RequestReturn))
	r.Post("/{borrowingID}/confirm-return", h.transitionHandler("lender_id", Service.ConfirmReturn))
	return r
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpapi.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnauthorized):
		httpapi.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrItemUnavailable), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		httpapi.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidPeriod):
		httpapi.Error(w, http.StatusBadRequest, err.Error())
	default:
		httpapi.Error(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID     uuid.UUID `json:"item_id"`
		BorrowerID uuid.UUID `json:"borrower_id"`
		// LenderID is accepted for compatibility with older clients but
		// ignored: the lender is always the item owner.
		LenderID uuid.UUID `json:"lender_id"`
		Start    time.Time `json:"start"`
		Due      time.Time `json:"due"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID == uuid.Nil || req.BorrowerID == uuid.Nil {
		httpapi.Error(w, http.StatusBadRequest, "item_id and borrower_id are required")
		return
	}
	if req.Start.IsZero() || req.Due.IsZero() {
		httpapi.Error(w, http.StatusBadRequest, "start and due are required")
		return
	}

	b, err := h.service.RequestBorrowing(r.Context(), req.ItemID, req.BorrowerID, req.Start, req.Due)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusCreated, b)
}

// transitionHandler builds the handler for one lifecycle event; field
// names the JSON key carrying the actor identity.
func (h *Handler) transitionHandler(field string, op func(Service, context.Context, uuid.UUID, uuid.UUID) (*Borrowing, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "borrowingID"))
		if err != nil {
			httpapi.Error(w, http.StatusBadRequest, "invalid borrowing id")
			return
		}

		var body map[string]string
		if err := httpapi.Decode(r, &body); err != nil {
			httpapi.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		actorID, err := uuid.Parse(body[field])
		if err != nil {
			httpapi.Error(w, http.StatusBadRequest, field+" is required")
			return
		}

		b, err := op(h.service, r.Context(), id, actorID)
		if err != nil {
			writeError(w, err)
			return
		}
		httpapi.JSON(w, http.StatusOK, b)
	}
}

func (h *Handler) handleListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	asLender, asBorrower, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, map[string][]*Borrowing{
		"as_lender":   asLender,
		"as_borrower": asBorrower,
	})
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	pending, err := h.service.PendingForLender(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	returns, err := h.service.PendingReturnsForLender(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, map[string][]*Borrowing{
		"as_lender":       pending,
		"return_requests": returns,
	})
}

func (h *Handler) handleStale(w http.ResponseWriter, r *http.Request) {
	stale, err := h.service.StaleRequests(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if stale == nil {
		stale = []*Borrowing{}
	}
	httpapi.JSON(w, http.StatusOK, stale)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "borrowingID"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid borrowing id")
		return
	}
	b, err := h.service.GetBorrowing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httpapi.JSON(w, http.StatusOK, b)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "borrowingID"))
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid borrowing id")
		return
	}
	events, err := h.service.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []TransitionEvent{}
	}
	httpapi.JSON(w, http.StatusOK, events)
}
