// Package session はクライアント側のセッションストアを提供する。
//
// ストアは外部の認証/データサービス（Backendインターフェース）をラップし、
// プロセス内で現在のセッションを1つだけ保持する。サインイン・サインアウト・
// トークンリフレッシュの各イベントは購読者へ非同期に配送される。
// Backendの能力セットは汎用の認証/クエリクライアントそのものであり、
// 同じ能力を持つ実装であればリモート・ローカルを問わず差し替えられる。
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/bitsconnect/internal/model"
)

// EventType はセッション変化イベントの種別を表す。
type EventType string

const (
	// EventSignedIn はアイデンティティが出現したことを示す。
	EventSignedIn EventType = "signed_in"
	// EventSignedOut はアイデンティティが消滅したことを示す。
	EventSignedOut EventType = "signed_out"
	// EventTokenRefreshed はトークンが更新されたことを示す。
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event はセッション変化の通知を表す。
// サインアウト時はSessionとUserがnilになる。
type Event struct {
	Type    EventType
	Session *model.Session
	User    *model.Account
}

// Backend は外部認証/データサービスに要求する能力セット。
// auth.Serviceがプロセス内実装としてこのインターフェースを満たす。
type Backend interface {
	// SignUp はアイデンティティとプロフィールを2段階で作成する。
	SignUp(ctx context.Context, email, password, username string) (*model.Account, error)
	// SignInWithPassword は資格情報を検証しセッションを発行する。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, *model.Account, error)
	// SignOutSession はセッションをサービス側で無効化する。
	SignOutSession(ctx context.Context, sessionID string) error
	// SessionWithAccount はトークンの有効性を検証し、セッションとアイデンティティを返す。
	// 無効・期限切れの場合は(nil, nil, nil)を返す。
	SessionWithAccount(ctx context.Context, sessionID string) (*model.Session, *model.Account, error)
	// ProfileByID はアイデンティティIDに対応するプロフィールを返す。
	// 存在しない場合はnilを返す。
	ProfileByID(ctx context.Context, id string) (*model.Profile, error)
}

// listenerBufferSize は購読者チャネルのバッファサイズ。
// セッション変化イベントはユーザー操作起点の低頻度イベントのため十分な余裕がある。
const listenerBufferSize = 64

// Store はプロセス全体で共有されるセッションストア。
//
// 構成情報（サービスのエンドポイントと鍵）が欠落してbackendが構築できなかった
// 場合、ストアは恒久的なUnconfigured状態となり、以後の全操作はno-opまたは
// 空の結果を返す。アプリケーションはこの状態を検出して専用の設定エラー画面を
// 表示する責任を持つ（部分初期化のまま動作させない）。
type Store struct {
	backend Backend // nilの場合はUnconfigured

	mu       sync.RWMutex
	current  *model.Session
	user     *model.Account
	closed   bool
	nextID   uint64
	watchers map[uint64]chan Event
}

// NewStore はStoreを生成する。backendがnilの場合はUnconfigured状態のストアを返す。
// 構築は失敗しない（fail-soft）。
func NewStore(backend Backend) *Store {
	return &Store{
		backend:  backend,
		watchers: make(map[uint64]chan Event),
	}
}

// Unconfigured はストアが構成不備により縮退しているかどうかを返す。
func (s *Store) Unconfigured() bool {
	return s.backend == nil
}

// Resume は以前発行されたトークンをストアに復元する。
// 有効性は次のCurrentSession呼び出しで検証される。
func (s *Store) Resume(token string) {
	if s.Unconfigured() || token == "" {
		return
	}
	s.mu.Lock()
	s.current = &model.Session{ID: token}
	s.user = nil
	s.mu.Unlock()
}

// CurrentSession は現在の有効なセッションとアイデンティティを返す。
// セッションが無い場合は(nil, nil, nil)。Unconfiguredの場合も空を返す。
// リモート呼び出しが完了できない場合はConnectivityErrorを返し、
// 呼び出し側は「未認証・縮退」として扱う。
func (s *Store) CurrentSession(ctx context.Context) (*model.Session, *model.Account, error) {
	if s.Unconfigured() {
		return nil, nil, nil
	}

	s.mu.RLock()
	held := s.current
	s.mu.RUnlock()

	if held == nil {
		return nil, nil, nil
	}

	sess, user, err := s.backend.SessionWithAccount(ctx, held.ID)
	if err != nil {
		return nil, nil, model.NewConnectivityError(err.Error())
	}
	if sess == nil {
		// サービス側で無効化済み。保持しているトークンを破棄する。
		s.mu.Lock()
		s.current = nil
		s.user = nil
		s.mu.Unlock()
		return nil, nil, nil
	}

	s.mu.Lock()
	s.current = sess
	s.user = user
	s.mu.Unlock()

	return sess, user, nil
}

// SignIn は資格情報でサインインし、セッションを保持してイベントを発行する。
func (s *Store) SignIn(ctx context.Context, email, password string) (*model.Session, *model.Account, error) {
	if s.Unconfigured() {
		return nil, nil, model.NewConfigurationError("サービスが構成されていません")
	}

	sess, user, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.current = sess
	s.user = user
	s.mu.Unlock()

	s.publish(Event{Type: EventSignedIn, Session: sess, User: user})
	return sess, user, nil
}

// SignUp はサインアップをサービスに委譲する。セッションは発行されない
// （確認後に明示的なサインインが必要）。
func (s *Store) SignUp(ctx context.Context, email, password, username string) (*model.Account, error) {
	if s.Unconfigured() {
		return nil, model.NewConfigurationError("サービスが構成されていません")
	}
	return s.backend.SignUp(ctx, email, password, username)
}

// SignOut は現在のセッションをサービス側で無効化する。
// Unconfiguredの場合は何もしない（silent no-op）。
// 状態遷移はこの呼び出しの戻り値ではなく、発行されるイベントによって駆動される。
func (s *Store) SignOut(ctx context.Context) error {
	if s.Unconfigured() {
		return nil
	}

	s.mu.Lock()
	held := s.current
	s.current = nil
	s.user = nil
	s.mu.Unlock()

	if held != nil {
		if err := s.backend.SignOutSession(ctx, held.ID); err != nil {
			// ローカル状態は既にクリア済み。リモート失敗はAuthErrorとして伝播する。
			s.publish(Event{Type: EventSignedOut})
			return err
		}
	}

	s.publish(Event{Type: EventSignedOut})
	return nil
}

// Refresh は保持中のトークンを再検証し、token_refreshedイベントを発行する。
// トークンが無効になっていた場合はsigned_outイベントを発行する。
func (s *Store) Refresh(ctx context.Context) error {
	if s.Unconfigured() {
		return nil
	}

	s.mu.RLock()
	held := s.current
	s.mu.RUnlock()

	if held == nil {
		return nil
	}

	sess, user, err := s.backend.SessionWithAccount(ctx, held.ID)
	if err != nil {
		return model.NewConnectivityError(err.Error())
	}

	s.mu.Lock()
	s.current = sess
	s.user = user
	s.mu.Unlock()

	if sess == nil {
		s.publish(Event{Type: EventSignedOut})
		return nil
	}

	s.publish(Event{Type: EventTokenRefreshed, Session: sess, User: user})
	return nil
}

// ProfileByID はアイデンティティIDに対応するプロフィールを取得する。
// Unconfiguredの場合は空を返す。リモート失敗はConnectivityErrorとして返す。
func (s *Store) ProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	if s.Unconfigured() {
		return nil, nil
	}
	profile, err := s.backend.ProfileByID(ctx, id)
	if err != nil {
		return nil, model.NewConnectivityError(err.Error())
	}
	return profile, nil
}

// Subscribe はセッション変化イベントの購読を開始する。
// 返されるキャンセル関数を呼ぶと購読が解除され、チャネルがクローズされる。
// イベント配送はトリガーとなったクライアント操作に対して非同期であり、
// 操作の復帰前にリスナーが呼ばれることは保証されない。
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	ch := make(chan Event, listenerBufferSize)
	s.watchers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if w, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w)
		}
	}
	return ch, cancel
}

// Close はストアを閉じ、全購読チャネルをクローズする。以後イベントは発行されない。
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
}

// publish は全購読者へイベントを配送する。
// 購読者のバッファが溢れた場合はイベントを破棄して警告ログを残す
// （イベントはユーザー操作起点の低頻度のため、通常は発生しない）。
func (s *Store) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
			slog.Warn("session event dropped: slow subscriber",
				slog.String("event", string(ev.Type)),
			)
		}
	}
}
