package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/threadboard/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

const selectCommentWithAuthor = `SELECT t.id, t.content, t.author_id, t.post_id, t.parent_id, t.created_at, t.updated_at, ` +
	authorColumns + `
	FROM comments t ` + authorJoin

// FindByID は指定IDのコメントを作成者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id int64) (*model.Comment, error) {
	row := r.db.QueryRowContext(ctx, selectCommentWithAuthor+` WHERE t.id = $1`, id)

	comment, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment by ID: %w", err)
	}
	return comment, nil
}

// ListTopLevelByPost は投稿のトップレベルコメントをcreated_at昇順で返す。
func (r *PostgresCommentRepo) ListTopLevelByPost(ctx context.Context, postID int64) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		selectCommentWithAuthor+`
		 WHERE t.post_id = $1 AND t.parent_id IS NULL
		 ORDER BY t.created_at ASC, t.id ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// ListRepliesByParentIDs は親コメント群への返信を1クエリで取得し、親IDごとにまとめる。
// 各親の返信はcreated_at昇順。
func (r *PostgresCommentRepo) ListRepliesByParentIDs(ctx context.Context, parentIDs []int64) (map[int64][]*model.Comment, error) {
	replies := make(map[int64][]*model.Comment, len(parentIDs))
	if len(parentIDs) == 0 {
		return replies, nil
	}

	rows, err := r.db.QueryContext(ctx,
		selectCommentWithAuthor+`
		 WHERE t.parent_id = ANY($1)
		 ORDER BY t.created_at ASC, t.id ASC`,
		pq.Array(parentIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		replies[*c.ParentID] = append(replies[*c.ParentID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate replies: %w", err)
	}
	return replies, nil
}

// Create はコメントを作成し、採番されたIDとタイムスタンプをcommentに設定する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (content, author_id, post_id, parent_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		comment.Content, comment.AuthorID, comment.PostID, nullableInt64(comment.ParentID),
	).Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		switch foreignKeyViolation(err) {
		case commentPostFK:
			return fmt.Errorf("%w: %d", ErrPostNotFound, comment.PostID)
		case commentParentFK:
			return fmt.Errorf("%w: %d", ErrParentCommentNotFound, *comment.ParentID)
		}
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// Update はコメントのcontentを上書きし、updated_atを更新する。
func (r *PostgresCommentRepo) Update(ctx context.Context, comment *model.Comment) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE comments SET content = $1, updated_at = now()
		 WHERE id = $2
		 RETURNING updated_at`,
		comment.Content, comment.ID,
	).Scan(&comment.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("comment not found: %d", comment.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return nil
}

// Delete は指定IDのコメントを削除する。
// comments.parent_idのON DELETE CASCADEにより返信も削除される。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("comment not found: %d", id)
	}
	return nil
}

func scanComment(row rowScanner) (*model.Comment, error) {
	c := &model.Comment{Author: &model.User{}}
	var parentID sql.NullInt64
	dest := append([]any{
		&c.ID, &c.Content, &c.AuthorID, &c.PostID, &parentID, &c.CreatedAt, &c.UpdatedAt,
	}, authorDest(c.Author)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.Int64
	}
	return c, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
