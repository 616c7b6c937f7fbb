package model

import "time"

// Profile はアプリケーション側のユーザープロフィールを表す。
// Account.IDと1:1で対応し、サインアップフローのステップ2で作成される。
// アイデンティティ作成とプロフィール作成はトランザクションで結ばれていないため、
// アカウントだけが存在しプロフィールが欠けた状態は正常系として扱う。
type Profile struct {
	ID        string
	Username  string
	AvatarURL string
	FullName  string
	Email     string
	UpdatedAt time.Time
}

// DisplayName は表示名を返す。
// ユーザー名が未設定（プロフィール欠落からの復元中など）の場合は
// メールアドレスのローカル部にフォールバックする。
func (p *Profile) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return localPart(p.Email)
}

// localPart はメールアドレスの@より前を返す。@がない場合は全体を返す。
func localPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
