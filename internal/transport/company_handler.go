package transport

import (
	"net/http"

	"pipe-company/internal/domain"
	"pipe-company/internal/middleware"
	"pipe-company/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CompanyRequest represents the editable company details
type CompanyRequest struct {
	Name          string `json:"name" validate:"required,max=255"`
	Tagline       string `json:"tagline" validate:"max=255"`
	Description   string `json:"description" validate:"max=20000"`
	Email         string `json:"email" validate:"omitempty,email,max=255"`
	Phone         string `json:"phone" validate:"omitempty,phone"`
	Address       string `json:"address" validate:"max=1000"`
	BusinessHours string `json:"business_hours" validate:"max=1000"`
}

// CompanyHandler serves the storefront's company details
type CompanyHandler struct {
	companyService service.CompanyService
	logger         *zap.Logger
}

// NewCompanyHandler creates a new CompanyHandler
func NewCompanyHandler(companyService service.CompanyService, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{companyService: companyService, logger: logger}
}

// RegisterRoutes registers the company routes
func (h *CompanyHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/api/company", h.Get)
	r.With(authMiddleware, middleware.RequirePermission(middleware.PermCompanyWrite, h.logger)).
		Put("/api/company", h.Update)
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.companyService.Get(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get company info")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, info)
}

func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req CompanyRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	info, err := h.companyService.Update(r.Context(), domain.CompanyInfo{
		Name:          req.Name,
		Tagline:       req.Tagline,
		Description:   req.Description,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		BusinessHours: req.BusinessHours,
	}, middleware.ActorID(r.Context()))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update company info")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, info)
}
