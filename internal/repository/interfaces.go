// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/threadboard/internal/model"
)

// ErrDuplicateIdentity は(provider, provider_user_id)が既に登録済みの場合に返される。
// 同一ユーザーの初回ログインが並行した場合に発生し得る。
var ErrDuplicateIdentity = errors.New("identity already exists")

// ErrPostNotFound はコメント作成時に対象の投稿が存在しない場合に返される。
// 投稿の存在確認後、登録までの間に投稿が削除された場合に発生し得る。
var ErrPostNotFound = errors.New("post not found")

// ErrParentCommentNotFound はコメント作成時に親コメントが存在しない場合に返される。
var ErrParentCommentNotFound = errors.New("parent comment not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// identityが既に存在する場合はErrDuplicateIdentityを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿を作成者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Post, error)

	// List は全投稿を作成者情報付きでcreated_at降順に返す。
	List(ctx context.Context) ([]*model.Post, error)

	// Create は投稿を作成し、採番されたIDとタイムスタンプをpostに設定する。
	Create(ctx context.Context, post *model.Post) error

	// Update は投稿のtitleとcontentを上書きし、updated_atを更新する。
	Update(ctx context.Context, post *model.Post) error

	// Delete は指定IDの投稿を削除する。
	// 関連するコメントと返信はCASCADE削除される。
	Delete(ctx context.Context, id int64) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを作成者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Comment, error)

	// ListTopLevelByPost は投稿のトップレベルコメント（parent_id IS NULL）を
	// 作成者情報付きでcreated_at昇順に返す。
	ListTopLevelByPost(ctx context.Context, postID int64) ([]*model.Comment, error)

	// ListRepliesByParentIDs は指定した親コメント群への返信を一括で取得し、
	// 親IDごとにcreated_at昇順でまとめて返す。
	ListRepliesByParentIDs(ctx context.Context, parentIDs []int64) (map[int64][]*model.Comment, error)

	// Create はコメントを作成し、採番されたIDとタイムスタンプをcommentに設定する。
	// 投稿が存在しない場合はErrPostNotFound、親コメントが存在しない場合は
	// ErrParentCommentNotFoundを返す。
	Create(ctx context.Context, comment *model.Comment) error

	// Update はコメントのcontentを上書きし、updated_atを更新する。
	Update(ctx context.Context, comment *model.Comment) error

	// Delete は指定IDのコメントを削除する。
	// 返信はCASCADE削除される。
	Delete(ctx context.Context, id int64) error
}
