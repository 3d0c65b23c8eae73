package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/threadboard/internal/content"
	"github.com/hitoshi/threadboard/internal/middleware"
	"github.com/hitoshi/threadboard/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	CreatePost(ctx context.Context, actor *model.User, input content.PostInput) (*model.Post, error)
	ListPosts(ctx context.Context) ([]*model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	UpdatePost(ctx context.Context, actor *model.User, id int64, input content.PostInput) (*model.Post, error)
	DeletePost(ctx context.Context, actor *model.User, id int64) error
}

// PostHandler は投稿のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// postRequest は投稿作成・更新リクエストのボディ。
type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ListPosts は投稿一覧を新しい順に返す。
// GET /api/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// GetPost は投稿詳細を返す。
// GET /api/posts/{postId}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "postId")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	post, err := h.service.GetPost(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// CreatePost は投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	post, err := h.service.CreatePost(r.Context(), actor, content.PostInput{Title: req.Title, Content: req.Content})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(post))
}

// UpdatePost は投稿を更新する。
// PUT /api/posts/{postId}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "postId")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	post, err := h.service.UpdatePost(r.Context(), actor, id, content.PostInput{Title: req.Title, Content: req.Content})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// DeletePost は投稿を削除する。
// DELETE /api/posts/{postId}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "postId")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	if err := h.service.DeletePost(r.Context(), actor, id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Post deleted successfully"})
}
