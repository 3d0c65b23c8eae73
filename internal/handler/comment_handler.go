package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/threadboard/internal/content"
	"github.com/hitoshi/threadboard/internal/middleware"
	"github.com/hitoshi/threadboard/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	CreateComment(ctx context.Context, actor *model.User, postID int64, input content.CommentInput) (*model.Comment, error)
	ListCommentsForPost(ctx context.Context, postID int64) ([]*model.CommentThread, error)
	UpdateComment(ctx context.Context, actor *model.User, id int64, input content.CommentInput) (*model.Comment, error)
	DeleteComment(ctx context.Context, actor *model.User, id int64) error
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

// createCommentRequest はコメント作成リクエストのボディ。
// parentIdは数値・数値文字列のどちらでも受け付ける。
type createCommentRequest struct {
	Content  string     `json:"content"`
	ParentID optionalID `json:"parentId"`
}

// updateCommentRequest はコメント更新リクエストのボディ。
type updateCommentRequest struct {
	Content string `json:"content"`
}

// ListComments は投稿のコメントをスレッド形式で返す。
// GET /api/posts/{postId}/comments
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postId")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	threads, err := h.service.ListCommentsForPost(r.Context(), postID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentThreadResponses(threads))
}

// CreateComment はコメントまたは返信を作成する。
// POST /api/posts/{postId}/comments
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	postID, err := parseIDParam(r, "postId")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	comment, err := h.service.CreateComment(r.Context(), actor, postID, content.CommentInput{
		Content:  req.Content,
		ParentID: req.ParentID.Value,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(comment))
}

// UpdateComment はコメント本文を更新する。
// PUT /api/comments/{id}
func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req updateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	comment, err := h.service.UpdateComment(r.Context(), actor, id, content.CommentInput{Content: req.Content})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponse(comment))
}

// DeleteComment はコメントを削除する。
// DELETE /api/comments/{id}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	if err := h.service.DeleteComment(r.Context(), actor, id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Comment deleted successfully"})
}
