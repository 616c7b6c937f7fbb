// Package model はドメインモデルを定義する。
package model

import "time"

// Account は認証サービスが発行するアイデンティティを表す。
// idとemailが認証の根拠となり、パスワードハッシュはサービス内部でのみ扱う。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// 外部に渡るのは不透明なトークン（ID）のみで、中身の解釈はサービス側が行う。
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
