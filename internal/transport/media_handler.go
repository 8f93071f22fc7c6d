package transport

import (
	"errors"
	"net/http"

	"pipe-company/internal/middleware"
	"pipe-company/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartOverhead is allowed on top of the file limit for form boundaries and fields
const multipartOverhead = 1 << 20

// MediaHandler handles the media library
type MediaHandler struct {
	mediaService service.MediaService
	maxBytes     int64
	logger       *zap.Logger
}

// NewMediaHandler creates a new MediaHandler. maxBytes bounds one uploaded file.
func NewMediaHandler(mediaService service.MediaService, maxBytes int64, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{mediaService: mediaService, maxBytes: maxBytes, logger: logger}
}

// RegisterRoutes registers the media routes. Every media route needs media:write.
func (h *MediaHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/media", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequirePermission(middleware.PermMediaWrite, h.logger))

		r.Get("/", h.List)
		r.Post("/", h.Upload)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	items, total, err := h.mediaService.List(r.Context(), page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list media")
		return
	}
	resp := newListResponse(items, page, pageSize, total)
	respondPage(w, resp, resp.Total, resp.TotalPages)
}

// Upload accepts a multipart form with a "file" part and an optional "alt_text" field
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, service.ErrFileTooLarge.Error())
			return
		}
		h.logger.Debug("Invalid multipart upload", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	media, err := h.mediaService.Upload(r.Context(), service.UploadInput{
		FileName: header.Filename,
		Size:     header.Size,
		Body:     file,
		AltText:  r.FormValue("alt_text"),
	}, middleware.ActorID(r.Context()))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to upload file")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, media)
}

func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.mediaService.Delete(r.Context(), id, middleware.ActorID(r.Context())); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete media")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
