// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Provider と ProviderUserID は紐付いた identities レコードから補完される。
// 作成後にプロフィールを同期・更新することはない。
type User struct {
	ID             string
	Email          string
	Name           string
	Picture        string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// (Provider, ProviderUserID) は最大1件のユーザーに対応する。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
