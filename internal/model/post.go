package model

import "time"

// Post はコミュニティフィードの投稿を表す。
// IDはサービス側が採番する単調増加の整数で、作成後は不変。
type Post struct {
	ID        int64
	Content   string
	AuthorID  string
	CreatedAt time.Time

	// Author は解決済みの投稿者プロフィール。
	// プロフィールが見つからない場合（投稿者が退会済み等）はnilとなり、
	// その投稿は「孤児投稿」として扱う。nil以外の場合はAuthor.ID == AuthorIDが
	// 常に成立し、部分的に埋まったプロフィールを持つことはない。
	Author *Profile
}
