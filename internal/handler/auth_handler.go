// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bitsconnect/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// SignUp はアカウントとプロフィールを2段階で作成する。
	SignUp(ctx context.Context, email, password, username string) (*model.Account, error)
	// SignInWithPassword は資格情報を検証しセッションを発行する。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, *model.Account, error)
	// SignOutSession はセッションを破棄する。
	SignOutSession(ctx context.Context, sessionID string) error
	// SessionWithAccount はセッションIDから有効なセッションとアカウントを取得する。
	SessionWithAccount(ctx context.Context, sessionID string) (*model.Session, *model.Account, error)
	// ProfileByID はアカウントIDに対応するプロフィールを取得する。
	ProfileByID(ctx context.Context, id string) (*model.Profile, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// signUpRequest はサインアップリクエストのボディ。
type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// signInRequest はログインリクエストのボディ。
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// accountResponse はアカウント情報のAPIレスポンス。
type accountResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp はサインアップを処理する。
// POST /auth/signup
//
// アカウント作成は成功したがプロフィール作成に失敗した場合、アカウントは
// プロフィール欠落のまま残り、両方の事実を含むエラーメッセージを返す。
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	account, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("signup completed", slog.String("account_id", account.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(accountResponse{
		ID:    account.ID,
		Email: account.Email,
	})
}

// Login はメールアドレスとパスワードでログインし、セッションCookieを設定する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	session, account, err := h.service.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accountResponse{
		ID:    account.ID,
		Email: account.Email,
	})
}

// Logout はセッションを破棄する。
// POST /auth/logout
//
// セッションの破棄に失敗してもCookieはクリアする。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.SignOutSession(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
//
// プロフィールが未作成・取得失敗の場合もエラーにはせず、profileをnullとして
// 返す。UIはメールアドレス由来の表示名へフォールバックする。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	session, account, err := h.service.SessionWithAccount(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to resolve session", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	if session == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// プロフィール解決失敗はnullへ縮退する
	profile, err := h.service.ProfileByID(r.Context(), account.ID)
	if err != nil {
		slog.Error("profile resolution failed",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		profile = nil
	}

	resp := map[string]interface{}{
		"id":      account.ID,
		"email":   account.Email,
		"profile": nil,
	}
	if profile != nil {
		resp["profile"] = toProfileResponse(profile)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
