// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/bitsconnect/internal/model"
)

// AccountRepository はアイデンティティ（認証アカウント）の永続化インターフェース。
type AccountRepository interface {
	// Create はアカウントを作成する。メールアドレス重複時はエラーを返す。
	Create(ctx context.Context, account *model.Account) error

	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
}

// ProfileRepository はユーザープロフィールの永続化インターフェース。
// プロフィールはアカウントIDと1:1で対応する。
type ProfileRepository interface {
	// Create はプロフィールを作成する。ユーザー名重複時はエラーを返す。
	Create(ctx context.Context, profile *model.Profile) error

	// FindByID は指定ID（= アカウントID）のプロフィールを取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// FindByUsername はユーザー名でプロフィールを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Profile, error)

	// Update はプロフィールの表示属性（username, avatar_url, full_name）を更新する。
	Update(ctx context.Context, profile *model.Profile) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByAccountID は指定アカウントの全セッションを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成し、採番されたIDと作成日時を反映して返す。
	Create(ctx context.Context, post *model.Post) (*model.Post, error)

	// ListWithAuthors は全投稿を作成日時の降順で取得し、投稿者プロフィールを
	// サーバーサイドJOIN（単一クエリ）で解決して返す。
	// 投稿者プロフィールが存在しない投稿はAuthor = nilのまま返し、エラーにはしない。
	ListWithAuthors(ctx context.Context) ([]*model.Post, error)
}
