// Package policy は投稿・コメントの変更可否を判定する。
package policy

import "github.com/hitoshi/threadboard/internal/model"

// CanMutate はactorIDのユーザーがauthorIDの作成物を変更・削除できるかを返す。
// 作成者本人のみが変更でき、空のactorIDは常に拒否される。
func CanMutate(actorID, authorID string) bool {
	return actorID != "" && actorID == authorID
}

// RequireActor は操作主体が存在しない場合に認証エラーを返す。
func RequireActor(actor *model.User) error {
	if actor == nil || actor.ID == "" {
		return model.NewUnauthenticatedError()
	}
	return nil
}

// Authorize はactorがauthorIDの作成物を変更できるかを検査する。
// 未ログインの場合はUNAUTHENTICATED、作成者以外の場合はFORBIDDENを返す。
func Authorize(actor *model.User, authorID string) error {
	if err := RequireActor(actor); err != nil {
		return err
	}
	if !CanMutate(actor.ID, authorID) {
		return model.NewForbiddenError()
	}
	return nil
}
