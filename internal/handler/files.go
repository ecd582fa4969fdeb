package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spsc/goldledger/internal/store"
	apperrors "github.com/spsc/goldledger/pkg/errors"
	"github.com/spsc/goldledger/pkg/response"
)

type FileHandler struct {
	blobs store.BlobStore
}

func NewFileHandler(blobs store.BlobStore) *FileHandler {
	return &FileHandler{blobs: blobs}
}

// ServeFile handles GET /files/{id}, streaming back an uploaded blob.
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	blob, err := h.blobs.Open(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrEntryNotFound) {
			response.NotFound(w, "File not found")
			return
		}
		response.InternalServerError(w, "Failed to read file", err)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Content)
}
