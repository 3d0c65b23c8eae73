// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupChecker は投稿タイトル・本文・コメントにHTMLタグが含まれるかを判定する。
// 入力テキストは書き換えず、そのまま保存される。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupChecker はユーザー入力テキストのマークアップ検査機能のインターフェースを定義する。
// 投稿・コメントの保存前に使用される。
type MarkupChecker interface {
	// ContainsMarkup は閉じたHTMLタグ・コメントを含む場合にtrueを返す。
	// "a<b" や "&lt;" のような普通のテキストはマークアップとみなさない。
	ContainsMarkup(raw string) bool
}

// markupChecker はMarkupCheckerの実装。
// bluemondayのStrictPolicyは並行利用できる。
type markupChecker struct {
	policy *bluemonday.Policy
}

// NewMarkupChecker はMarkupCheckerの新しいインスタンスを生成する。
func NewMarkupChecker() *markupChecker {
	return &markupChecker{
		policy: bluemonday.StrictPolicy(),
	}
}

// ContainsMarkup はStrictPolicyで除去される要素があるかを判定する。
// ポリシー適用後のテキストを復号して元の復号テキストと比較し、差があればマークアップとみなす。
// 閉じ括弧のない "<" は末尾まで未完のタグとして除去されるため、先に除外する。
// HTMLの字句解析は改行をLFに正規化するので、比較前に元テキストも揃える。
func (c *markupChecker) ContainsMarkup(raw string) bool {
	lt := strings.IndexByte(raw, '<')
	if lt < 0 || !strings.Contains(raw[lt:], ">") {
		return false
	}
	sanitized := html.UnescapeString(c.policy.Sanitize(raw))
	return sanitized != html.UnescapeString(newlines.Replace(raw))
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")
