package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bitsconnect/internal/middleware"
	"github.com/hitoshi/bitsconnect/internal/model"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// ProfileByID はアカウントIDに対応するプロフィールを取得する。
	// 存在しない場合はnilを返す。
	ProfileByID(ctx context.Context, id string) (*model.Profile, error)
	// UpdateProfile はプロフィールの表示属性を更新する。
	UpdateProfile(ctx context.Context, accountID, username, fullName, avatarURL string) (*model.Profile, error)
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{
		service: service,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// profileResponse はプロフィール情報のAPIレスポンス。
type profileResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	DisplayName string    `json:"display_name"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GetProfile は指定アカウントIDのプロフィールを取得する。
// GET /api/profiles/{id}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")

	profile, err := h.service.ProfileByID(r.Context(), profileID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if profile == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "PROFILE_NOT_FOUND",
			Message:  "指定されたプロフィールが見つかりません。",
			Category: "profile",
			Action:   "プロフィールIDを確認してください。",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(profile))
}

// UpdateProfile は認証済みユーザー自身のプロフィールを更新する。
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, err := middleware.AccountIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), accountID, req.Username, req.FullName, req.AvatarURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProfileResponse(profile))
}

// toProfileResponse はmodel.ProfileからAPIレスポンスに変換する。
func toProfileResponse(profile *model.Profile) profileResponse {
	return profileResponse{
		ID:          profile.ID,
		Username:    profile.Username,
		FullName:    profile.FullName,
		AvatarURL:   profile.AvatarURL,
		DisplayName: profile.DisplayName(),
		UpdatedAt:   profile.UpdatedAt,
	}
}
