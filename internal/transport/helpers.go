package transport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"pipe-company/internal/backup"
	"pipe-company/internal/catalog"
	"pipe-company/internal/middleware"
	"pipe-company/internal/repository"
	"pipe-company/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListResponse wraps a paged listing
type ListResponse[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newListResponse[T any](items []T, page, pageSize, total int) ListResponse[T] {
	page, pageSize = catalog.NormalizePage(page, pageSize)
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}

// respondPage writes a paged body and mirrors its totals into headers
func respondPage(w http.ResponseWriter, body any, total, totalPages int) {
	w.Header().Set(middleware.HeaderTotalCount, strconv.Itoa(total))
	w.Header().Set(middleware.HeaderTotalPages, strconv.Itoa(totalPages))
	middleware.RespondWithJSON(w, http.StatusOK, body)
}

// decodeRequest decodes and validates the JSON body into v, writing the error response
// itself. It reports whether the handler should continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathUUID parses a uuid URL parameter, answering 400 when it is malformed
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// pageParams reads page and page_size. Bad values fall back to defaults.
func pageParams(r *http.Request) (int, int) {
	page, _ := queryInt(r, "page")
	pageSize, _ := queryInt(r, "page_size")
	return catalog.NormalizePage(page, pageSize)
}

// respondServiceError maps service and repository errors onto HTTP statuses. Anything
// unrecognized is logged and reported as a 500 with the fallback message.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var status int
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidQuantity),
		errors.Is(err, repository.ErrDuplicateTier),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, backup.ErrInvalidID),
		errors.Is(err, backup.ErrInvalidLabel):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnsupportedContentType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrQuoteNotFound),
		errors.Is(err, repository.ErrMediaNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, backup.ErrBackupNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateSlug),
		errors.Is(err, repository.ErrUserAlreadyExists),
		errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, backup.ErrChecksumMismatch),
		errors.Is(err, backup.ErrSizeMismatch),
		errors.Is(err, backup.ErrMetadataCorrupted):
		status = http.StatusUnprocessableEntity
	default:
		logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
		return
	}

	logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	middleware.RespondWithError(w, status, err.Error())
}
