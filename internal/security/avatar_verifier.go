package security

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxAvatarSize はアバター画像の最大サイズ（2MB）。
const maxAvatarSize = 2 * 1024 * 1024

// avatarTimeout はアバター検証リクエストのタイムアウト。
const avatarTimeout = 5 * time.Second

// AvatarVerifierService はアバターURLの検証機能のインターフェース。
// プロフィールの作成・更新時にアバターURLを受理する前に使用される。
type AvatarVerifierService interface {
	// VerifyAvatarURL はアバターURLを検証する。
	// 静的なSSRF検証の後、SSRF防止機能付きHTTPクライアントで実際に取得を試み、
	// 2xx応答かつ画像のContent-Typeであることを確認する。
	// いずれかに失敗した場合はエラーを返す。
	VerifyAvatarURL(ctx context.Context, rawURL string) error
}

// avatarVerifier はAvatarVerifierServiceの実装。
type avatarVerifier struct {
	ssrfGuard SSRFGuardService
}

// NewAvatarVerifier はAvatarVerifierServiceの新しいインスタンスを生成する。
func NewAvatarVerifier(ssrfGuard SSRFGuardService) *avatarVerifier {
	return &avatarVerifier{
		ssrfGuard: ssrfGuard,
	}
}

// VerifyAvatarURL はアバターURLを検証する。
func (v *avatarVerifier) VerifyAvatarURL(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty avatar URL")
	}

	// SSRF検証（DNS解決前の静的チェック）
	if err := v.ssrfGuard.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("unsafe avatar URL: %w", err)
	}

	client := v.ssrfGuard.NewSafeClient(avatarTimeout, maxAvatarSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build avatar request: %w", err)
	}
	req.Header.Set("User-Agent", "BitsConnect/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("avatar URL returned status %d", resp.StatusCode)
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		return fmt.Errorf("avatar URL is not an image: %s", mimeType)
	}

	// ボディは読み捨てる（サイズ上限の超過のみ確認する）
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxAvatarSize+1))
	if err != nil {
		return fmt.Errorf("failed to read avatar response: %w", err)
	}
	if n > maxAvatarSize {
		return fmt.Errorf("avatar exceeds size limit: %d bytes", n)
	}

	return nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ AvatarVerifierService = (*avatarVerifier)(nil)
