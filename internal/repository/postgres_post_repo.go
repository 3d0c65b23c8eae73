package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/threadboard/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const selectPostWithAuthor = `SELECT t.id, t.title, t.content, t.author_id, t.created_at, t.updated_at, ` +
	authorColumns + `
	FROM posts t ` + authorJoin

// FindByID は指定IDの投稿を作成者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx, selectPostWithAuthor+` WHERE t.id = $1`, id)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}
	return post, nil
}

// List は全投稿を作成者情報付きでcreated_at降順に返す。
// 同時刻の投稿はIDの降順で並べる。
func (r *PostgresPostRepo) List(ctx context.Context) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx, selectPostWithAuthor+` ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// Create は投稿を作成し、採番されたIDとタイムスタンプをpostに設定する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (title, content, author_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		post.Title, post.Content, post.AuthorID,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は投稿のtitleとcontentを上書きし、updated_atを更新する。
// author_idは変更しない。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE posts SET title = $1, content = $2, updated_at = now()
		 WHERE id = $3
		 RETURNING updated_at`,
		post.Title, post.Content, post.ID,
	).Scan(&post.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("post not found: %d", post.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return nil
}

// Delete は指定IDの投稿を削除する。
// comments.post_idのON DELETE CASCADEによりコメントと返信も削除される。
func (r *PostgresPostRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %d", id)
	}
	return nil
}

func scanPost(row rowScanner) (*model.Post, error) {
	post := &model.Post{Author: &model.User{}}
	dest := append([]any{
		&post.ID, &post.Title, &post.Content, &post.AuthorID, &post.CreatedAt, &post.UpdatedAt,
	}, authorDest(post.Author)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return post, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
