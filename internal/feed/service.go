// Package feed はコミュニティフィードの組み立てロジックを提供する。
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/bitsconnect/internal/model"
	"github.com/hitoshi/bitsconnect/internal/repository"
)

// ContentSanitizer は投稿本文のサニタイズのインターフェース。
// security.PostSanitizerServiceの部分集合として定義する。
type ContentSanitizer interface {
	Sanitize(raw string) string
}

// Recorder はフィード系メトリクスの記録インターフェース。nilの場合は記録しない。
type Recorder interface {
	RecordPostCreated()
	RecordOrphanedPost()
}

// Service はフィードの組み立てと投稿作成を提供する。
type Service struct {
	postRepo  repository.PostRepository
	sanitizer ContentSanitizer
	metrics   Recorder
}

// NewService はServiceを生成する。
func NewService(postRepo repository.PostRepository, sanitizer ContentSanitizer, metrics Recorder) *Service {
	return &Service{
		postRepo:  postRepo,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// ListPosts は全投稿を作成日時の降順で返す。投稿者の解決はサービス側の
// 単一クエリJOINで行う（クライアント側で2つの結果セットを繋ぎ合わせる方式は
// サポートしない）。
//
// 投稿者プロフィールが見つからない投稿はAuthor = nilのまま返し、エラーには
// しない。リクエスト全体が失敗した場合のみConnectivityErrorを返す。
// 自動リトライは行わない。
func (s *Service) ListPosts(ctx context.Context) ([]*model.Post, error) {
	posts, err := s.postRepo.ListWithAuthors(ctx)
	if err != nil {
		slog.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, model.NewConnectivityError(err.Error())
	}

	if s.metrics != nil {
		for _, p := range posts {
			if p.Author == nil {
				s.metrics.RecordOrphanedPost()
			}
		}
	}

	return posts, nil
}

// CreatePost は認証済みユーザーの投稿を作成する。
//
// 本文は前後の空白を除去して保存する。除去後に空の場合はリモート呼び出しなしで
// ValidationErrorを返す。authorProfileは呼び出し側で解決済みであることを要求し、
// 成功時の戻り値のAuthorにはそのプロフィールをそのまま設定する
// （追加のラウンドトリップは発生しない）。
//
// 失敗時は表示用のエラーを返すのみで、既存のフィード状態には影響しない。
func (s *Service) CreatePost(ctx context.Context, content string, authorProfile *model.Profile) (*model.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, model.NewEmptyPostError()
	}
	if authorProfile == nil {
		return nil, model.NewProfileNotResolvedError()
	}

	// 投稿はプレーンテキスト。マークアップはすべて除去する。
	if s.sanitizer != nil {
		content = strings.TrimSpace(s.sanitizer.Sanitize(content))
		if content == "" {
			return nil, model.NewEmptyPostError()
		}
	}

	created, err := s.postRepo.Create(ctx, &model.Post{
		Content:  content,
		AuthorID: authorProfile.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	created.Author = authorProfile

	if s.metrics != nil {
		s.metrics.RecordPostCreated()
	}
	slog.Info("post created",
		slog.Int64("post_id", created.ID),
		slog.String("author_id", authorProfile.ID),
	)

	return created, nil
}
