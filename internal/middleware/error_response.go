package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/threadboard/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// Errorは500応答のときのみ、原因となったエラーの文字列を含む。
type ErrorResponseBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	body := ErrorResponseBody{
		Code:    apiErr.Code,
		Message: apiErr.Message,
	}
	if apiErr.Detail != "" {
		body.Error = apiErr.Detail
	}
	writeErrorBody(w, statusCode, body)
}

// WriteInternalServerError はストレージ障害などの予期しないエラーを500で書き込む。
// errの文字列をerrorフィールドに含める。
func WriteInternalServerError(w http.ResponseWriter, err error) {
	body := ErrorResponseBody{
		Code:    model.ErrCodeStorageFailure,
		Message: "内部エラーが発生しました。",
	}
	if err != nil {
		body.Error = err.Error()
	}
	writeErrorBody(w, http.StatusInternalServerError, body)
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body ErrorResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
