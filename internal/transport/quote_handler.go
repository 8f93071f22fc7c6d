package transport

import (
	"net/http"

	"pipe-company/internal/middleware"
	"pipe-company/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuoteItemRequest is one requested product line
type QuoteItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=1000000"`
	Notes     string    `json:"notes" validate:"max=1000"`
}

// QuoteRequest represents a customer quote submission
type QuoteRequest struct {
	CustomerName string             `json:"customer_name" validate:"required,max=255"`
	Email        string             `json:"email" validate:"required,email,max=255"`
	Phone        string             `json:"phone" validate:"omitempty,phone"`
	Company      string             `json:"company" validate:"max=255"`
	Message      string             `json:"message" validate:"max=5000"`
	Items        []QuoteItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

// QuoteStatusRequest moves a quote along its workflow. Omitting admin_notes keeps the current notes.
type QuoteStatusRequest struct {
	Status     string  `json:"status" validate:"required,quote_status"`
	AdminNotes *string `json:"admin_notes" validate:"omitempty,max=5000"`
}

// QuoteHandler handles quote intake and the back-office quote queue
type QuoteHandler struct {
	quoteService service.QuoteService
	logger       *zap.Logger
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler(quoteService service.QuoteService, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService, logger: logger}
}

// RegisterRoutes registers the quote routes
func (h *QuoteHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/quotes", func(r chi.Router) {
		r.Post("/", h.Submit)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.With(middleware.RequirePermission(middleware.PermQuotesRead, h.logger)).Get("/", h.List)
			r.With(middleware.RequirePermission(middleware.PermQuotesRead, h.logger)).Get("/{id}", h.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(middleware.PermQuotesWrite, h.logger))
				r.Patch("/{id}", h.UpdateStatus)
				r.Delete("/{id}", h.Delete)
			})
		})
	})
}

// Submit accepts a quote request from the storefront
func (h *QuoteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	in := service.QuoteInput{
		CustomerName: req.CustomerName,
		Email:        req.Email,
		Phone:        req.Phone,
		Company:      req.Company,
		Message:      req.Message,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, service.QuoteItemInput(item))
	}

	quote, err := h.quoteService.Submit(r.Context(), in)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to submit quote request")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, quote)
}

// List pages quote requests, optionally filtered by ?status=
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	quotes, total, err := h.quoteService.List(r.Context(), r.URL.Query().Get("status"), page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list quote requests")
		return
	}
	resp := newListResponse(quotes, page, pageSize, total)
	respondPage(w, resp, resp.Total, resp.TotalPages)
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	quote, err := h.quoteService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get quote request")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, quote)
}

// UpdateStatus changes a quote's status and admin notes
func (h *QuoteHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req QuoteStatusRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	quote, err := h.quoteService.UpdateStatus(r.Context(), id, req.Status, req.AdminNotes, middleware.ActorID(r.Context()))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update quote request")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, quote)
}

func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.quoteService.Delete(r.Context(), id, middleware.ActorID(r.Context())); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete quote request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
