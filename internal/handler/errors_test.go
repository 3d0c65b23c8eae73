package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/threadboard/internal/model"
)

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewUnauthenticatedError(), http.StatusUnauthorized},
		{model.NewForbiddenError(), http.StatusForbidden},
		{model.NewPostNotFoundError(1), http.StatusNotFound},
		{model.NewCommentNotFoundError(1), http.StatusNotFound},
		{model.NewParentCommentNotFoundError(1), http.StatusNotFound},
		{model.NewReplyDepthExceededError(1), http.StatusBadRequest},
		{model.NewValidationError("title is required"), http.StatusBadRequest},
		{model.NewInvalidIDError("abc"), http.StatusBadRequest},
		{model.NewInvalidRequestError("bad json"), http.StatusBadRequest},
		{&model.APIError{Code: model.ErrCodeStorageFailure}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.Join(errors.New("context"), model.NewForbiddenError()))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if body := decodeErrorBody(t, w); body["code"] != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeForbidden)
	}
}

func TestHandleServiceError_UnexpectedErrorIsStorageFailure(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body["code"] != model.ErrCodeStorageFailure {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeStorageFailure)
	}
	if !strings.Contains(body["error"], "connection refused") {
		t.Errorf("error = %q, should contain the cause", body["error"])
	}
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "42", want: 42},
		{raw: "1", want: 1},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "1.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tt.raw)
			got, err := parseIDParam(req, "id")
			if tt.wantErr {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidID {
					t.Fatalf("err = %v, want INVALID_ID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("id = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOptionalID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    *int64
		wantErr bool
	}{
		{name: "number", json: `{"parentId": 5}`, want: ptr(5)},
		{name: "numeric string", json: `{"parentId": "7"}`, want: ptr(7)},
		{name: "null", json: `{"parentId": null}`},
		{name: "empty string", json: `{"parentId": ""}`},
		{name: "absent", json: `{}`},
		{name: "non numeric string", json: `{"parentId": "abc"}`, wantErr: true},
		{name: "boolean", json: `{"parentId": true}`, wantErr: true},
		{name: "fraction", json: `{"parentId": 1.5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req createCommentRequest
			err := json.Unmarshal([]byte(tt.json), &req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch {
			case tt.want == nil && req.ParentID.Value != nil:
				t.Errorf("parentId = %d, want nil", *req.ParentID.Value)
			case tt.want != nil && (req.ParentID.Value == nil || *req.ParentID.Value != *tt.want):
				t.Errorf("parentId = %v, want %d", req.ParentID.Value, *tt.want)
			}
		})
	}
}

func TestDecodeJSON_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	var v postRequest
	err := decodeJSON(req, &v)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
}

func ptr(v int64) *int64 { return &v }
