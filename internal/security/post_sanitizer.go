package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// PostSanitizerService は投稿本文のサニタイズ機能のインターフェースを定義する。
// 投稿の保存前に使用される。
type PostSanitizerService interface {
	// Sanitize は投稿本文からすべてのHTMLタグを除去し、プレーンテキストを返す。
	// script, iframe等のタグはタグごと除去され、テキスト内容のみが残る。
	// 投稿はテキストとしてのみ描画されるため、HTMLエンティティは
	// エスケープせずそのまま保持する。
	// 空文字列の入力には空文字列を返す。
	Sanitize(raw string) string
}

// postSanitizer はPostSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type postSanitizer struct {
	policy *bluemonday.Policy
}

// NewPostSanitizer はPostSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべての要素と属性を許可しない（タグを全除去する）。
func NewPostSanitizer() *postSanitizer {
	return &postSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は投稿本文からすべてのHTMLタグを除去する。
// bluemondayはタグ除去後に残るテキストをエスケープするため、
// プレーンテキストに戻すためエンティティをアンエスケープする。
func (s *postSanitizer) Sanitize(raw string) string {
	return html.UnescapeString(s.policy.Sanitize(raw))
}

// compile-time interface check
var _ PostSanitizerService = (*postSanitizer)(nil)
