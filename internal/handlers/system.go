package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lostfound/apiserver/internal/services"
	"github.com/lostfound/apiserver/internal/storage"
)

// SystemHandler serves liveness, readiness and stored images.
type SystemHandler struct {
	items   *services.ItemService
	assets  *services.AssetManager
	backend string
	logger  *zap.Logger
}

func NewSystemHandler(items *services.ItemService, assets *services.AssetManager, backend string, logger *zap.Logger) *SystemHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemHandler{items: items, assets: assets, backend: backend, logger: logger}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Lost & Found API is running",
	})
}

// Ready reports 503 while the item store does not answer.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Ready(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Kind:    kindBackend,
			Error:   "item store unavailable",
			Details: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "backend": h.backend})
}

// Upload streams one stored image.
func (h *SystemHandler) Upload(w http.ResponseWriter, r *http.Request) {
	key, ok := services.KeyFromURL(services.URLPrefix + chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, kindNotFound, "File not found")
		return
	}

	rc, err := h.assets.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, kindNotFound, "File not found")
			return
		}
		h.logger.Error("open upload", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, kindBackend, "Failed to read file")
		return
	}
	defer rc.Close()

	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Debug("upload stream interrupted", zap.String("key", key), zap.Error(err))
	}
}
