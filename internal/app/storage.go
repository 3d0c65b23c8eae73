package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/threadboard/internal/config"
	"github.com/hitoshi/threadboard/internal/database"
	"github.com/hitoshi/threadboard/internal/handler"
	"github.com/hitoshi/threadboard/internal/repository"
	"github.com/hitoshi/threadboard/internal/repository/memory"
)

// storage はSTORAGE_DRIVERに応じて構築したリポジトリ群。
type storage struct {
	users      repository.UserRepository
	identities repository.IdentityRepository
	sessions   repository.SessionRepository
	posts      repository.PostRepository
	comments   repository.CommentRepository

	// health はDB疎通確認。インメモリ構成ではnil。
	health handler.HealthChecker
	// inMemory はプロセス内ストアかどうか。
	inMemory bool
	close    func() error
}

// openStorage は設定に従ってストレージを開く。
// PostgreSQLの場合はDBが接続を受け付けるまでDB_CONNECT_TIMEOUTまで待機する。
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		slog.Warn("using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &storage{
			users:      store.Users(),
			identities: store.Identities(),
			sessions:   store.Sessions(),
			posts:      store.Posts(),
			comments:   store.Comments(),
			inMemory:   true,
			close:      func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.WaitForReady(ctx, db, cfg.DBConnectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	return &storage{
		users:      repository.NewPostgresUserRepo(db),
		identities: repository.NewPostgresIdentityRepo(db),
		sessions:   repository.NewPostgresSessionRepo(db),
		posts:      repository.NewPostgresPostRepo(db),
		comments:   repository.NewPostgresCommentRepo(db),
		health:     db,
		close:      db.Close,
	}, nil
}
