// Package auth はメール+パスワード認証、セッション管理を提供する。
// 外部認証/データサービスが提供する能力セットをそのまま実装しており、
// internal/session.Backendインターフェースを満たす。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/bitsconnect/internal/model"
	"github.com/hitoshi/bitsconnect/internal/repository"
	"github.com/hitoshi/bitsconnect/internal/session"
)

// AvatarVerifier はアバターURLの安全性検証のインターフェース。
// security.AvatarVerifierServiceの部分集合として定義する。
type AvatarVerifier interface {
	VerifyAvatarURL(ctx context.Context, rawURL string) error
}

// Recorder は認証系メトリクスの記録インターフェース。nilの場合は記録しない。
type Recorder interface {
	RecordSignUp()
	RecordLogin()
	RecordSignOut()
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accountRepo repository.AccountRepository
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	avatarGuard AvatarVerifier
	metrics     Recorder
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	accountRepo repository.AccountRepository,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	avatarGuard AvatarVerifier,
	metrics Recorder,
	config ServiceConfig,
) *Service {
	return &Service{
		accountRepo: accountRepo,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		avatarGuard: avatarGuard,
		metrics:     metrics,
		config:      config,
	}
}

// SignUp はアカウントとプロフィールを2段階で作成する。
//
// ステップ1でアイデンティティ（アカウント）を作成し、成功した場合のみ
// ステップ2でプロフィール行を作成する。2つのステップはトランザクションで
// 結ばれていない: ステップ2が失敗した場合、アカウントはプロフィール欠落の
// 部分状態のまま残り、エラーにはサインアップ成功の事実とプロフィール作成
// 失敗の原因の両方が含まれる。この部分状態は認識済みの正常系であり、
// ログイン自体は可能（プロフィールnullで縮退）。
//
// パスワードが規定の文字数未満の場合はリポジトリ呼び出しを一切行わずに
// ValidationErrorを返す。
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*model.Account, error) {
	// バリデーションはすべてリモート（リポジトリ）呼び出しの前に行う
	if len(password) < model.MinPasswordLength() {
		return nil, model.NewPasswordTooShortError()
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.NewEmptyEmailError()
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, model.NewEmptyUsernameError()
	}

	// 重複チェック
	existing, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}
	existingProfile, err := s.profileRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existingProfile != nil {
		return nil, model.NewUsernameTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// ステップ1: アイデンティティ作成
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// ステップ2: プロフィール作成（アカウントIDをそのままプロフィールIDに使う）
	profile := &model.Profile{
		ID:        account.ID,
		Username:  username,
		Email:     email,
		UpdatedAt: now,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		slog.Error("profile creation failed after account creation",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		return account, model.NewSignUpProfileFailedError(err)
	}

	if s.metrics != nil {
		s.metrics.RecordSignUp()
	}
	slog.Info("new account created",
		slog.String("account_id", account.ID),
		slog.String("username", username),
	)

	return account, nil
}

// SignInWithPassword はメールアドレスとパスワードで認証し、セッションを発行する。
// 資格情報が一致しない場合はAuthErrorを返す。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, *model.Account, error) {
	account, err := s.accountRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLogin()
	}
	slog.Info("user logged in", slog.String("account_id", account.ID))

	return session, account, nil
}

// SignOutSession はセッションを破棄する。
func (s *Service) SignOutSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSignOut()
	}
	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// SessionWithAccount はセッションIDから有効なセッションとアカウントを取得する。
// セッションが存在しない・期限切れの場合は(nil, nil, nil)を返す。
// 同一セッションに対する連続呼び出しは、間にサインイン/アウトがない限り
// 同じアイデンティティ（または同じ不在）を返す。
func (s *Service) SessionWithAccount(ctx context.Context, sessionID string) (*model.Session, *model.Account, error) {
	if sessionID == "" {
		return nil, nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}

	account, err := s.accountRepo.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		// セッションだけ残っている状態は無効として扱う
		return nil, nil, nil
	}

	return session, account, nil
}

// ProfileByID はアカウントIDに対応するプロフィールを取得する。
// 見つからない場合はnilを返す（呼び出し側がプロフィールnullへ縮退する）。
func (s *Service) ProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile はプロフィールの表示属性を更新する。
// アバターURLが指定されている場合はSSRF検証と画像であることの確認を行う。
func (s *Service) UpdateProfile(ctx context.Context, accountID, username, fullName, avatarURL string) (*model.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, model.NewEmptyUsernameError()
	}

	if avatarURL != "" && s.avatarGuard != nil {
		if err := s.avatarGuard.VerifyAvatarURL(ctx, avatarURL); err != nil {
			return nil, model.NewInvalidAvatarURLError(err.Error())
		}
	}

	current, err := s.profileRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if current == nil {
		return nil, model.NewProfileNotResolvedError()
	}

	if username != current.Username {
		taken, err := s.profileRepo.FindByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if taken != nil {
			return nil, model.NewUsernameTakenError()
		}
	}

	current.Username = username
	current.FullName = fullName
	current.AvatarURL = avatarURL

	if err := s.profileRepo.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return current, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, accountID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		AccountID: accountID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// compile-time interface check
var _ session.Backend = (*Service)(nil)
