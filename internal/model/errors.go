// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// サービス層が業務ルール違反を明示的に返すときに使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, system
	Detail   string // 診断用の詳細（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated       = "UNAUTHENTICATED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodePostNotFound          = "POST_NOT_FOUND"
	ErrCodeCommentNotFound       = "COMMENT_NOT_FOUND"
	ErrCodeParentCommentNotFound = "PARENT_COMMENT_NOT_FOUND"
	ErrCodeReplyDepthExceeded    = "REPLY_DEPTH_EXCEEDED"
	ErrCodeValidationFailed      = "VALIDATION_FAILED"
	ErrCodeInvalidID             = "INVALID_ID"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeStorageFailure        = "STORAGE_FAILURE"
)

// NewUnauthenticatedError はログインが必要な操作を未認証で呼び出した場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
	}
}

// NewForbiddenError は作成者以外が変更・削除しようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "権限がありません。",
		Category: "auth",
	}
}

// NewPostNotFoundError は投稿が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID int64) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("投稿が存在しません: %d", postID),
		Category: "content",
	}
}

// NewCommentNotFoundError はコメントが見つからない場合のエラーを生成する。
func NewCommentNotFoundError(commentID int64) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("コメントが存在しません: %d", commentID),
		Category: "content",
	}
}

// NewParentCommentNotFoundError は返信先のコメントが存在しない、
// または別の投稿に属している場合のエラーを生成する。
func NewParentCommentNotFoundError(parentID int64) *APIError {
	return &APIError{
		Code:     ErrCodeParentCommentNotFound,
		Message:  fmt.Sprintf("返信先のコメントがこの投稿に存在しません: %d", parentID),
		Category: "content",
	}
}

// NewReplyDepthExceededError は返信への返信を作成しようとした場合のエラーを生成する。
func NewReplyDepthExceededError(parentID int64) *APIError {
	return &APIError{
		Code:     ErrCodeReplyDepthExceeded,
		Message:  fmt.Sprintf("返信に対して返信することはできません: %d", parentID),
		Category: "validation",
	}
}

// NewValidationError は必須項目の欠落や長さ超過のエラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容が正しくありません。",
		Category: "validation",
		Detail:   detail,
	}
}

// NewInvalidIDError はパスのIDが整数として解釈できない場合のエラーを生成する。
func NewInvalidIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("無効なIDです: %s", raw),
		Category: "validation",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Detail:   detail,
	}
}
