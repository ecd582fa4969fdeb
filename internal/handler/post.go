package handler

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spsc/goldledger/internal/service"
	"github.com/spsc/goldledger/pkg/response"
)

// maxImageSize caps multipart uploads at 10 MiB.
const maxImageSize = 10 << 20

type PostHandler struct {
	service *service.LedgerService
}

func NewPostHandler(service *service.LedgerService) *PostHandler {
	return &PostHandler{service: service}
}

// CreatePost handles POST /api/v1/posts: a multipart form with an "image"
// file and a "description" field, both required.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		response.BadRequest(w, "Invalid multipart form", err)
		return
	}

	description := r.FormValue("description")
	if description == "" {
		response.BadRequest(w, "Description is required", nil)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		response.BadRequest(w, "Image file is required", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		response.InternalServerError(w, "Failed to read image", err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	post, err := h.service.PostImage(r.Context(), header.Filename, contentType, data, description)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Created(w, post)
}

// ListPosts handles GET /api/v1/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.Posts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, posts)
}

// DeletePost handles DELETE /api/v1/posts/{key}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if err := h.service.DeletePost(r.Context(), key); err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, map[string]string{"key": key})
}
