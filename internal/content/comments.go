package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/threadboard/internal/metrics"
	"github.com/hitoshi/threadboard/internal/model"
	"github.com/hitoshi/threadboard/internal/policy"
	"github.com/hitoshi/threadboard/internal/repository"
)

// CreateComment は投稿にコメントを作成する。
// ParentIDを指定した場合は返信となり、親は同じ投稿のトップレベルコメントでなければならない。
func (s *Service) CreateComment(ctx context.Context, actor *model.User, postID int64, input CommentInput) (*model.Comment, error) {
	if err := policy.RequireActor(actor); err != nil {
		return nil, err
	}

	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	if input.ParentID != nil {
		parent, err := s.comments.FindByID(ctx, *input.ParentID)
		if err != nil {
			return nil, fmt.Errorf("返信先コメントの取得に失敗しました: %w", err)
		}
		if parent == nil || parent.PostID != postID {
			return nil, model.NewParentCommentNotFoundError(*input.ParentID)
		}
		if !parent.IsTopLevel() {
			return nil, model.NewReplyDepthExceededError(parent.ID)
		}
	}

	if err := s.checkComment(input); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		Content:  input.Content,
		AuthorID: actor.ID,
		PostID:   postID,
		ParentID: input.ParentID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		// 存在確認の後に投稿や親コメントが削除された場合
		switch {
		case errors.Is(err, repository.ErrPostNotFound):
			return nil, model.NewPostNotFoundError(postID)
		case errors.Is(err, repository.ErrParentCommentNotFound):
			return nil, model.NewParentCommentNotFoundError(*input.ParentID)
		}
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	comment.Author = actor

	s.metrics.RecordContentEvent(commentKind(comment), metrics.ActionCreated)
	slog.Info("comment created",
		"comment_id", comment.ID,
		"post_id", postID,
		"parent_id", input.ParentID,
		"author_id", actor.ID,
	)

	return comment, nil
}

// ListCommentsForPost は投稿のコメントをスレッド形式で返す。
// トップレベルコメントと各返信はいずれも作成日時の古い順に並ぶ。
// 返信は全トップレベルコメント分を1回のクエリでまとめて取得する。
// 存在しない投稿に対しては空のスライスを返す。
func (s *Service) ListCommentsForPost(ctx context.Context, postID int64) ([]*model.CommentThread, error) {
	topLevel, err := s.comments.ListTopLevelByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	threads := make([]*model.CommentThread, 0, len(topLevel))
	if len(topLevel) == 0 {
		return threads, nil
	}

	parentIDs := make([]int64, len(topLevel))
	for i, c := range topLevel {
		parentIDs[i] = c.ID
	}
	replies, err := s.comments.ListRepliesByParentIDs(ctx, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("返信一覧の取得に失敗しました: %w", err)
	}

	for _, c := range topLevel {
		r := replies[c.ID]
		if r == nil {
			r = []*model.Comment{}
		}
		threads = append(threads, &model.CommentThread{Comment: c, Replies: r})
	}
	return threads, nil
}

// getComment は指定IDのコメントを返す。
func (s *Service) getComment(ctx context.Context, id int64) (*model.Comment, error) {
	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if comment == nil {
		return nil, model.NewCommentNotFoundError(id)
	}
	return comment, nil
}

// UpdateComment はコメント本文を上書きする。作成者のみ実行できる。
// input.ParentIDは無視され、返信関係は変更されない。
func (s *Service) UpdateComment(ctx context.Context, actor *model.User, id int64, input CommentInput) (*model.Comment, error) {
	if err := policy.RequireActor(actor); err != nil {
		return nil, err
	}

	comment, err := s.getComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, comment.AuthorID); err != nil {
		return nil, err
	}

	input = CommentInput{Content: input.Content}
	if err := s.checkComment(input); err != nil {
		return nil, err
	}

	comment.Content = input.Content
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, fmt.Errorf("コメントの更新に失敗しました: %w", err)
	}

	s.metrics.RecordContentEvent(commentKind(comment), metrics.ActionUpdated)
	slog.Info("comment updated", "comment_id", id, "author_id", actor.ID)

	return comment, nil
}

// DeleteComment はコメントを削除する。作成者のみ実行できる。
// トップレベルコメントを削除した場合は返信も削除される。
func (s *Service) DeleteComment(ctx context.Context, actor *model.User, id int64) error {
	if err := policy.RequireActor(actor); err != nil {
		return err
	}

	comment, err := s.getComment(ctx, id)
	if err != nil {
		return err
	}
	if err := policy.Authorize(actor, comment.AuthorID); err != nil {
		return err
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}

	s.metrics.RecordContentEvent(commentKind(comment), metrics.ActionDeleted)
	slog.Info("comment deleted", "comment_id", id, "post_id", comment.PostID, "author_id", actor.ID)

	return nil
}
