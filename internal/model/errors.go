package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, config, connectivity, profile, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeConfiguration       = "CONFIGURATION_ERROR"
	ErrCodeConnectivity        = "CONNECTIVITY_ERROR"
	ErrCodePasswordTooShort    = "PASSWORD_TOO_SHORT"
	ErrCodeEmptyUsername       = "EMPTY_USERNAME"
	ErrCodeEmptyEmail          = "EMPTY_EMAIL"
	ErrCodeEmptyPost           = "EMPTY_POST"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeUsernameTaken       = "USERNAME_TAKEN"
	ErrCodeSignUpProfileFailed = "SIGNUP_PROFILE_FAILED"
	ErrCodeProfileResolution   = "PROFILE_RESOLUTION_ERROR"
	ErrCodeProfileNotResolved  = "PROFILE_NOT_RESOLVED"
	ErrCodeInvalidAvatarURL    = "INVALID_AVATAR_URL"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
)

// minPasswordLength はサインアップ時に要求するパスワードの最低文字数。
const minPasswordLength = 6

// MinPasswordLength はパスワードの最低文字数を返す。
func MinPasswordLength() int { return minPasswordLength }

// NewConfigurationError は設定不備エラーを生成する。
// セッション機能全体が縮退し、アプリは静的なエラー画面のみを表示する。
func NewConfigurationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeConfiguration,
		Message:  fmt.Sprintf("アプリケーションが設定されていません: %s", detail),
		Category: "config",
		Action:   "サービスのエンドポイントURLとアクセスキーを環境変数で指定してください。",
	}
}

// NewConnectivityError はリモート呼び出し失敗エラーを生成する。
// インラインメッセージとして表示し、自動リトライは行わない。
func NewConnectivityError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeConnectivity,
		Message:  fmt.Sprintf("サービスへの接続に失敗しました: %s", reason),
		Category: "connectivity",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPasswordTooShortError はパスワード長不足エラーを生成する。
// リモート呼び出しの前に検出される。
func NewPasswordTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("パスワードは%d文字以上で入力してください。", minPasswordLength),
		Category: "validation",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewEmptyUsernameError はユーザー名未入力エラーを生成する。
func NewEmptyUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyUsername,
		Message:  "ユーザー名を入力してください。",
		Category: "validation",
		Action:   "ユーザー名は必須です。",
	}
}

// NewEmptyEmailError はメールアドレス未入力エラーを生成する。
func NewEmptyEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyEmail,
		Message:  "メールアドレスを入力してください。",
		Category: "validation",
		Action:   "メールアドレスは必須です。",
	}
}

// NewEmptyPostError は空投稿エラーを生成する。
// 前後の空白を除去した後に空となる投稿はリモート呼び出しなしで拒否される。
func NewEmptyPostError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyPost,
		Message:  "投稿内容が空です。",
		Category: "validation",
		Action:   "投稿内容を入力してください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に使用されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  "このユーザー名は既に使用されています。",
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewSignUpProfileFailedError はサインアップのステップ2（プロフィール作成）失敗
// エラーを生成する。アイデンティティ作成は成功しているため、メッセージには
// 「サインアップには成功した」事実と、プロフィール作成失敗の原因の両方を含める。
func NewSignUpProfileFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeSignUpProfileFailed,
		Message:  fmt.Sprintf("サインアップには成功しましたが、プロフィールの作成に失敗しました: %v", cause),
		Category: "auth",
		Action:   "ログイン後にプロフィールを設定し直してください。",
	}
}

// NewProfileResolutionError はアイデンティティ解決後のプロフィール取得失敗
// エラーを生成する。ユーザーに遮断的なエラーとしては表示せず、
// プロフィールnullへの縮退とログ記録のみを行う。
func NewProfileResolutionError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeProfileResolution,
		Message:  fmt.Sprintf("プロフィールの取得に失敗しました: %v", cause),
		Category: "profile",
		Action:   "プロフィールなしの状態で続行します。",
	}
}

// NewProfileNotResolvedError はプロフィール未解決のまま投稿しようとした場合の
// エラーを生成する。
func NewProfileNotResolvedError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotResolved,
		Message:  "プロフィールが解決されていないため投稿できません。",
		Category: "profile",
		Action:   "プロフィールを作成してから再度お試しください。",
	}
}

// NewInvalidAvatarURLError はアバターURLの検証失敗エラーを生成する。
func NewInvalidAvatarURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatarURL,
		Message:  fmt.Sprintf("アバターURLが無効です: %s", reason),
		Category: "validation",
		Action:   "公開されているhttps URLを指定してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
