package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/threadboard/internal/middleware"
	"github.com/hitoshi/threadboard/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの読み取り上限。
const maxRequestBodySize = 1 << 20

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外は予期しないエラーとして500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w, err)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodePostNotFound, model.ErrCodeCommentNotFound, model.ErrCodeParentCommentNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidationFailed, model.ErrCodeReplyDepthExceeded,
		model.ErrCodeInvalidID, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseIDParam はURLパラメータを正の整数IDとして解釈する。
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewInvalidIDError(raw)
	}
	return id, nil
}

// decodeJSON はリクエストボディをvにデコードする。失敗時はINVALID_REQUESTを返す。
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return model.NewInvalidRequestError(err.Error())
	}
	if err := json.Unmarshal(body, v); err != nil {
		return model.NewInvalidRequestError(err.Error())
	}
	return nil
}

// writeJSON はvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// messageResponse は削除・ログアウトなどの結果メッセージ。
type messageResponse struct {
	Message string `json:"message"`
}

// optionalID はJSONの数値・数値文字列・nullのいずれも受け付けるID。
// IDは1から採番されるため、0は未指定として扱う。
type optionalID struct {
	Value *int64
}

// UnmarshalJSON は 5, "5", null を受け付ける。0, "0", "" はnullと同じ扱いになる。
func (o *optionalID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("id must be a number or numeric string")
		}
		if s == "" {
			o.Value = nil
			return nil
		}
		n = json.Number(s)
	}

	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", n.String())
	}
	if id == 0 {
		o.Value = nil
		return nil
	}
	o.Value = &id
	return nil
}
