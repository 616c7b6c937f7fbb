package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/bitsconnect/internal/middleware"
	"github.com/hitoshi/bitsconnect/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// ListPosts は全投稿を作成日時の降順で返す。
	ListPosts(ctx context.Context) ([]*model.Post, error)
	// CreatePost は認証済みユーザーの投稿を作成する。
	CreatePost(ctx context.Context, content string, authorProfile *model.Profile) (*model.Post, error)
}

// ProfileResolver は投稿者プロフィールの解決に必要なインターフェース。
type ProfileResolver interface {
	ProfileByID(ctx context.Context, id string) (*model.Profile, error)
}

// PostHandler はフィードと投稿のHTTPハンドラー。
type PostHandler struct {
	service  PostServiceInterface
	profiles ProfileResolver
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, profiles ProfileResolver) *PostHandler {
	return &PostHandler{
		service:  service,
		profiles: profiles,
	}
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Content string `json:"content"`
}

// postResponse は投稿のAPIレスポンス。
// 投稿者プロフィールが解決できない投稿はauthorがnullになる。
type postResponse struct {
	ID        int64            `json:"id"`
	Content   string           `json:"content"`
	AuthorID  string           `json:"author_id"`
	CreatedAt time.Time        `json:"created_at"`
	Author    *profileResponse `json:"author"`
}

// ListPosts はフィード（全投稿の新しい順）を返す。
// GET /api/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		resp = append(resp, toPostResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// CreatePost は投稿を作成する。
// POST /api/posts
//
// 投稿者プロフィールはこのハンドラーで解決して渡す。プロフィールが存在しない
// 場合はサービス層がPROFILE_NOT_RESOLVEDを返す。
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	profile, err := h.profiles.ProfileByID(r.Context(), accountID)
	if err != nil {
		slog.Error("profile resolution failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, model.NewProfileResolutionError(err))
		return
	}

	post, err := h.service.CreatePost(r.Context(), req.Content, profile)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(post))
}

// toPostResponse はmodel.PostからAPIレスポンスに変換する。
func toPostResponse(post *model.Post) postResponse {
	resp := postResponse{
		ID:        post.ID,
		Content:   post.Content,
		AuthorID:  post.AuthorID,
		CreatedAt: post.CreatedAt,
	}
	if post.Author != nil {
		pr := toProfileResponse(post.Author)
		resp.Author = &pr
	}
	return resp
}
