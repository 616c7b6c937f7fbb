package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/bitsconnect/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Create はプロフィールを作成する。ユーザー名重複時はエラーを返す。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, username, avatar_url, full_name, email, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		profile.ID, profile.Username, profile.AvatarURL, profile.FullName, profile.Email, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// FindByID は指定ID（= アカウントID）のプロフィールを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, username, avatar_url, full_name, email, updated_at FROM profiles WHERE id = $1`,
		id,
	))
}

// FindByUsername はユーザー名でプロフィールを検索する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUsername(ctx context.Context, username string) (*model.Profile, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, username, avatar_url, full_name, email, updated_at FROM profiles WHERE username = $1`,
		username,
	))
}

// Update はプロフィールの表示属性を更新し、updated_atを現在時刻に進める。
func (r *PostgresProfileRepo) Update(ctx context.Context, profile *model.Profile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles
		 SET username = $2, avatar_url = $3, full_name = $4, updated_at = $5
		 WHERE id = $1`,
		profile.ID, profile.Username, profile.AvatarURL, profile.FullName, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", profile.ID)
	}
	return nil
}

// scanOne は1行のプロフィールをスキャンする。行が存在しない場合はnilを返す。
func (r *PostgresProfileRepo) scanOne(row *sql.Row) (*model.Profile, error) {
	profile := &model.Profile{}
	var avatarURL, fullName, email sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&profile.ID, &profile.Username, &avatarURL, &fullName, &email, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile.AvatarURL = avatarURL.String
	profile.FullName = fullName.String
	profile.Email = email.String
	profile.UpdatedAt = updatedAt.Time

	return profile, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
