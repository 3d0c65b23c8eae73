package repository

import (
	"errors"

	"github.com/lib/pq"

	"github.com/hitoshi/threadboard/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = "23505"

// pqForeignKeyViolation はPostgreSQLの外部キー制約違反のSQLSTATE。
const pqForeignKeyViolation = "23503"

// comments テーブルの外部キー制約名（PostgreSQLの既定命名）。
const (
	commentPostFK   = "comments_post_id_fkey"
	commentParentFK = "comments_parent_id_fkey"
)

// authorColumns は作成者（users + 最初に紐付いたidentity）を取得するSELECT句。
// authorJoin と組み合わせて使用する。
const authorColumns = `u.id, u.email, u.name, u.picture, u.created_at,
	COALESCE(i.provider, ''), COALESCE(i.provider_user_id, '')`

// authorJoin は author_id を持つテーブル（エイリアス t）に作成者を結合するJOIN句。
const authorJoin = `JOIN users u ON u.id = t.author_id
	LEFT JOIN LATERAL (
		SELECT provider, provider_user_id FROM identities
		WHERE user_id = u.id ORDER BY created_at LIMIT 1
	) i ON true`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// authorDest は作成者カラムのScan先を返す。
func authorDest(u *model.User) []any {
	return []any{&u.ID, &u.Email, &u.Name, &u.Picture, &u.CreatedAt, &u.Provider, &u.ProviderUserID}
}

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}

// foreignKeyViolation はエラーが外部キー制約違反であれば違反した制約名を返す。
// それ以外のエラーでは空文字列を返す。
func foreignKeyViolation(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
		return pqErr.Constraint
	}
	return ""
}
