package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bitsconnect/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は投稿を作成し、採番されたIDと作成日時を反映して返す。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) (*model.Post, error) {
	created := &model.Post{
		Content:  post.Content,
		AuthorID: post.AuthorID,
		Author:   post.Author,
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (content, author_id)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		post.Content, post.AuthorID,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	return created, nil
}

// ListWithAuthors は全投稿を作成日時の降順で取得し、投稿者プロフィールを
// LEFT JOINの単一クエリで解決して返す。
// プロフィールが存在しない投稿（孤児投稿）はAuthor = nilのまま返す。
// 作成日時が同一の場合はIDの降順で並べ、順序を安定させる。
func (r *PostgresPostRepo) ListWithAuthors(ctx context.Context) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.content, p.author_id, p.created_at,
		        pr.id, pr.username, pr.avatar_url, pr.full_name, pr.email, pr.updated_at
		 FROM posts p
		 LEFT JOIN profiles pr ON pr.id = p.author_id
		 ORDER BY p.created_at DESC, p.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post := &model.Post{}
		var profileID, username, avatarURL, fullName, email sql.NullString
		var profileUpdatedAt sql.NullTime

		if err := rows.Scan(
			&post.ID, &post.Content, &post.AuthorID, &post.CreatedAt,
			&profileID, &username, &avatarURL, &fullName, &email, &profileUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}

		// LEFT JOINでプロフィール行が存在した場合のみAuthorを組み立てる。
		// 部分的なプロフィールを返さないよう、idの有無で一括判定する。
		if profileID.Valid {
			post.Author = &model.Profile{
				ID:        profileID.String,
				Username:  username.String,
				AvatarURL: avatarURL.String,
				FullName:  fullName.String,
				Email:     email.String,
				UpdatedAt: profileUpdatedAt.Time,
			}
		}

		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
