// Package model はドメインモデルを定義する。
package model

import "time"

// Post はユーザーが投稿した記事を表す。
// Author は読み取り時に結合される作成者情報で、作成後に変更されない。
type Post struct {
	ID        int64
	Title     string
	Content   string
	AuthorID  string
	Author    *User
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Comment は投稿に付くコメントを表す。
// ParentID が nil の場合はトップレベルのコメント、それ以外は1段階の返信。
type Comment struct {
	ID        int64
	Content   string
	AuthorID  string
	Author    *User
	PostID    int64
	ParentID  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTopLevel は親コメントを持たないかどうかを返す。
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == nil
}

// CommentThread はトップレベルのコメントとその返信（作成日時昇順）をまとめたもの。
type CommentThread struct {
	Comment *Comment
	Replies []*Comment
}
