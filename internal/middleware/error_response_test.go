package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/threadboard/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットで書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusNotFound, model.NewPostNotFoundError(42))

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if raw["code"] != model.ErrCodePostNotFound {
		t.Errorf("code = %v, want %s", raw["code"], model.ErrCodePostNotFound)
	}
	if msg, _ := raw["message"].(string); !strings.Contains(msg, "42") {
		t.Errorf("message = %q, should mention the id", msg)
	}
	if _, ok := raw["error"]; ok {
		t.Errorf("error field should be omitted, got %v", raw["error"])
	}
}

// TestWriteErrorResponse_IncludesDetail は詳細がerrorフィールドに出力されることを検証する。
func TestWriteErrorResponse_IncludesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("title is required"))

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != model.ErrCodeValidationFailed || body.Error != "title is required" {
		t.Errorf("body = %+v", body)
	}
}

// TestWriteInternalServerError はエラー文字列を含む500レスポンスを検証する。
func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w, errors.New("failed to list posts: connection reset"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != model.ErrCodeStorageFailure {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeStorageFailure)
	}
	if body.Error != "failed to list posts: connection reset" {
		t.Errorf("error = %q", body.Error)
	}
	if body.Message == "" {
		t.Error("message should not be empty")
	}
}
