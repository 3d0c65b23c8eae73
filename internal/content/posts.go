package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/threadboard/internal/metrics"
	"github.com/hitoshi/threadboard/internal/model"
	"github.com/hitoshi/threadboard/internal/policy"
)

// CreatePost はactorを作成者として投稿を作成する。
func (s *Service) CreatePost(ctx context.Context, actor *model.User, input PostInput) (*model.Post, error) {
	if err := policy.RequireActor(actor); err != nil {
		return nil, err
	}

	if err := s.checkPost(input); err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:    input.Title,
		Content:  input.Content,
		AuthorID: actor.ID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	post.Author = actor

	s.metrics.RecordContentEvent(metrics.KindPost, metrics.ActionCreated)
	slog.Info("post created", "post_id", post.ID, "author_id", actor.ID)

	return post, nil
}

// ListPosts は全投稿を作成日時の新しい順に返す。
func (s *Service) ListPosts(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return posts, nil
}

// GetPost は指定IDの投稿を返す。
func (s *Service) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return post, nil
}

// UpdatePost は投稿のタイトルと本文を上書きする。作成者のみ実行できる。
// 検査順序は 未認証 → 存在 → 所有者 → 入力 の順。
func (s *Service) UpdatePost(ctx context.Context, actor *model.User, id int64, input PostInput) (*model.Post, error) {
	if err := policy.RequireActor(actor); err != nil {
		return nil, err
	}

	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, post.AuthorID); err != nil {
		return nil, err
	}

	if err := s.checkPost(input); err != nil {
		return nil, err
	}

	post.Title = input.Title
	post.Content = input.Content
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}

	s.metrics.RecordContentEvent(metrics.KindPost, metrics.ActionUpdated)
	slog.Info("post updated", "post_id", post.ID, "author_id", actor.ID)

	return post, nil
}

// DeletePost は投稿を削除する。作成者のみ実行できる。
// 投稿に付いたコメントと返信も削除される。
func (s *Service) DeletePost(ctx context.Context, actor *model.User, id int64) error {
	if err := policy.RequireActor(actor); err != nil {
		return err
	}

	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, post.AuthorID); err != nil {
		return err
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	s.metrics.RecordContentEvent(metrics.KindPost, metrics.ActionDeleted)
	slog.Info("post deleted", "post_id", id, "author_id", actor.ID)

	return nil
}
