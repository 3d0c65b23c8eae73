package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/threadboard/internal/metrics"
	"github.com/hitoshi/threadboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	ActorResolver     middleware.ActorResolver
	CORSAllowedOrigin string
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 投稿・コメント
	PostService    PostServiceInterface
	CommentService CommentServiceInterface

	// 運用
	Health          HealthChecker
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Logging → Metrics
//
// Sessionは操作主体を解決するだけで、未ログインでも通過させる。
// 変更系のルートにはRequireAuthを個別に適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.ActorResolver))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(metrics.NewHTTPMiddleware(collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	postHandler := NewPostHandler(deps.PostService)
	commentHandler := NewCommentHandler(deps.CommentService)

	r.Get("/health", NewHealthHandler(deps.Health))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RequireAuth).Get("/me", authHandler.Me)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.ListPosts)
			r.With(middleware.RequireAuth).Post("/", postHandler.CreatePost)

			r.Route("/{postId}", func(r chi.Router) {
				r.Get("/", postHandler.GetPost)
				r.With(middleware.RequireAuth).Put("/", postHandler.UpdatePost)
				r.With(middleware.RequireAuth).Delete("/", postHandler.DeletePost)

				r.Get("/comments", commentHandler.ListComments)
				r.With(middleware.RequireAuth).Post("/comments", commentHandler.CreateComment)
			})
		})

		r.Route("/comments/{id}", func(r chi.Router) {
			r.With(middleware.RequireAuth).Put("/", commentHandler.UpdateComment)
			r.With(middleware.RequireAuth).Delete("/", commentHandler.DeleteComment)
		})
	})

	return r
}
