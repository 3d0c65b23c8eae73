// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/threadboard/internal/model"
)

// SessionCookieName はセッションIDを保持するCookie名。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// actorContextKey はリクエストコンテキストに操作主体を格納するためのキー。
var actorContextKey = contextKey("actor")

// ActorResolver はセッションIDからユーザーを解決する。
// セッションが無効な場合は nil, nil を返す。auth.Serviceが実装する。
type ActorResolver interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// NewSessionMiddleware はCookieのセッションIDから操作主体を解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未ログインのリクエストもそのまま通し、認証の要否はRequireAuthとサービス層が判断する。
func NewSessionMiddleware(resolver ActorResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			actor, err := resolver.GetCurrentUser(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w, err)
				return
			}
			if actor == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireAuth は操作主体のいないリクエストを401で拒否する。
// NewSessionMiddlewareの内側で使用する。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorFromContext(r.Context()) == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFromContext はリクエストコンテキストから操作主体を取得する。
// 未ログインの場合はnilを返す。
func ActorFromContext(ctx context.Context) *model.User {
	actor, _ := ctx.Value(actorContextKey).(*model.User)
	return actor
}

// ContextWithActor はコンテキストに操作主体を注入する。
func ContextWithActor(ctx context.Context, actor *model.User) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}
