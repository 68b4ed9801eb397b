package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/msomdec/color-hunt/internal/domain"
	"github.com/msomdec/color-hunt/internal/metrics"
	"github.com/msomdec/color-hunt/internal/service"
)

// PhotoHandler handles photo upload, retrieval, and deletion.
type PhotoHandler struct {
	photos   *service.PhotoService
	maxBytes int64
}

// NewPhotoHandler creates a new PhotoHandler. maxBytes caps the whole
// multipart request.
func NewPhotoHandler(photos *service.PhotoService, maxBytes int64) *PhotoHandler {
	return &PhotoHandler{photos: photos, maxBytes: maxBytes}
}

// HandleAdd stores a captured photo at its position, replacing any photo
// already there.
// POST /api/photo/add (multipart: sessionId, position, image, thumbnail)
// Response: {"photoId":"...","originalUrl":"...","thumbnailUrl":"..."}
func (h *PhotoHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		metrics.RecordUpload("rejected", 0)
		writeError(w, http.StatusBadRequest, "Invalid or oversized upload.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	sessionID := r.FormValue("sessionId")
	position, err := strconv.Atoi(r.FormValue("position"))
	if sessionID == "" || err != nil {
		metrics.RecordUpload("rejected", 0)
		writeError(w, http.StatusBadRequest, "sessionId and position are required.")
		return
	}

	full, err := formFile(r.MultipartForm, "image")
	if err != nil {
		metrics.RecordUpload("rejected", 0)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	thumb, err := formFile(r.MultipartForm, "thumbnail")
	if err != nil {
		metrics.RecordUpload("rejected", 0)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	photo, err := h.photos.Upload(r.Context(), DeviceFromContext(r.Context()), sessionID, position, full, thumb)
	if err != nil {
		metrics.RecordUpload("rejected", 0)
		writeServiceError(w, "upload photo", err)
		return
	}
	metrics.RecordUpload("success", photo.Size)

	writeJSON(w, http.StatusOK, map[string]any{
		"photoId":      photo.ID,
		"originalUrl":  imageURL(photo.ID, domain.PhotoKindOriginal),
		"thumbnailUrl": imageURL(photo.ID, domain.PhotoKindThumbnail),
	})
}

// HandleImage serves one rendition of a photo.
// GET /api/image/{photoId}/{type}
func (h *PhotoHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	kind := domain.PhotoKind(r.PathValue("type"))
	data, contentType, err := h.photos.GetFile(r.Context(), DeviceFromContext(r.Context()), r.PathValue("photoId"), kind)
	if err != nil {
		writeServiceError(w, "serve image", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Warn("write image", "error", err)
	}
}

// HandleDelete removes a photo and its stored renditions.
// DELETE /api/photo/{photoId}
// Response: 204 No Content
func (h *PhotoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.photos.Delete(r.Context(), DeviceFromContext(r.Context()), r.PathValue("photoId")); err != nil {
		writeServiceError(w, "delete photo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func formFile(form *multipart.Form, field string) ([]byte, error) {
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, fmt.Errorf("no %s file provided", field)
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, fmt.Errorf("unreadable %s file", field)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unreadable %s file", field)
	}
	return data, nil
}
