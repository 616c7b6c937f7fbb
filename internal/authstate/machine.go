// Package authstate はセッションとプロフィールの同期状態マシンを提供する。
//
// セッションストアの変化通知を購読し、アイデンティティの出現/消滅に応じて
// プロフィールを解決する。解決結果は{State, Session, User, Profile}の
// スナップショットとしてプロセス全体に公開される。書き込みはこの状態マシン
// のみが行い（single writer）、読み取りは任意のコンポーネントから行える。
package authstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/bitsconnect/internal/model"
	"github.com/hitoshi/bitsconnect/internal/session"
)

// State は認証コンテキストの状態を表す。
type State string

const (
	// StateInitializing は初期解決（セッション→プロフィール）が未完了であることを示す。
	StateInitializing State = "initializing"
	// StateUnconfigured はセッションストアの構成不備による恒久的な縮退状態を示す。
	// この状態ではメインアプリを描画せず、設定エラー画面のみを表示する。
	StateUnconfigured State = "unconfigured"
	// StateAnonymous は解決済み・アイデンティティなしの状態を示す。
	StateAnonymous State = "anonymous"
	// StateAuthenticated は解決済み・アイデンティティありの状態を示す。
	// プロフィール取得に失敗した場合、Profileはnilのままこの状態になる。
	StateAuthenticated State = "authenticated"
)

// Snapshot は認証コンテキストの読み取り専用ビュー。
type Snapshot struct {
	State   State
	Session *model.Session
	User    *model.Account
	Profile *model.Profile
	Loading bool
}

// SessionSource は状態マシンが必要とするセッションストアのインターフェース。
// session.Storeの部分集合として定義する。
type SessionSource interface {
	Unconfigured() bool
	CurrentSession(ctx context.Context) (*model.Session, *model.Account, error)
	ProfileByID(ctx context.Context, id string) (*model.Profile, error)
	Subscribe() (<-chan session.Event, func())
	SignOut(ctx context.Context) error
}

// Recorder は状態マシン系メトリクスの記録インターフェース。nilの場合は記録しない。
type Recorder interface {
	RecordProfileResolutionFailure()
}

// watcherBufferSize はスナップショット通知チャネルのバッファサイズ。
const watcherBufferSize = 16

// Machine はセッション/プロフィール同期の状態マシン。
//
// 初期解決と購読イベントは同じ状態を書き換えるため競合しうる。単調増加の
// シーケンストークンを各遷移に割り当て、古いトークンの適用を拒否することで、
// 遅れて完了した初期解決が新しいイベントの結果を上書きすることを防ぐ。
type Machine struct {
	store   SessionSource
	metrics Recorder

	mu       sync.RWMutex
	snap     Snapshot
	applied  uint64
	nextSeq  uint64
	watchers map[uint64]chan Snapshot
	nextID   uint64
	closed   bool

	cancelSub func()
}

// New はMachineを生成する。状態はInitializing、Loading中として始まる。
// metricsはnilでもよい。
func New(store SessionSource, metrics Recorder) *Machine {
	return &Machine{
		store:    store,
		metrics:  metrics,
		snap:     Snapshot{State: StateInitializing, Loading: true},
		watchers: make(map[uint64]chan Snapshot),
	}
}

// Start は初期解決を実行し、セッション変化イベントの処理を開始する。
//
// 初期解決（セッション取得→プロフィール取得、この順序）が完了するまで
// ブロックする。呼び出し側は復帰するまで保護されたコンテンツを描画しては
// ならない。復帰後の遷移はイベント駆動で非同期に行われる。
//
// ストアが構成不備の場合はUnconfiguredへ遷移して終了する（購読しない）。
// セッション取得がConnectivityErrorで失敗した場合は「未認証・縮退」として
// Anonymousへ遷移する。
func (m *Machine) Start(ctx context.Context) {
	if m.store.Unconfigured() {
		m.apply(m.next(), Snapshot{State: StateUnconfigured})
		return
	}

	// 初期解決中のイベントを取りこぼさないよう、購読を先に開始する。
	// 初期解決とイベント処理が同じ状態を書きうるが、シーケンストークンにより
	// 常に新しい側が勝つ。
	events, cancel := m.store.Subscribe()
	m.cancelSub = cancel
	go m.loop(ctx, events)

	token := m.next()

	sess, user, err := m.store.CurrentSession(ctx)
	if err != nil {
		slog.Error("initial session resolution failed",
			slog.String("error", err.Error()),
		)
		m.apply(token, Snapshot{State: StateAnonymous})
		return
	}

	if sess == nil {
		m.apply(token, Snapshot{State: StateAnonymous})
		return
	}

	profile := m.resolveProfile(ctx, user.ID)
	m.apply(token, Snapshot{
		State:   StateAuthenticated,
		Session: sess,
		User:    user,
		Profile: profile,
	})
}

// Snapshot は現在の状態のコピーを返す。
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Watch は状態変化の通知チャネルと購読解除関数を返す。
// 状態が適用されるたびに最新のスナップショットが送られる。
func (m *Machine) Watch() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		ch := make(chan Snapshot)
		close(ch)
		return ch, func() {}
	}

	id := m.nextID
	m.nextID++
	ch := make(chan Snapshot, watcherBufferSize)
	m.watchers[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if w, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(w)
		}
	}
	return ch, cancel
}

// SignOut はサインアウトをセッションストアに委譲する。
// Anonymousへの遷移はこの呼び出しの戻り値ではなく、ストアが発行する
// signed_outイベントによって駆動される。同期的な完了を仮定してはならない。
func (m *Machine) SignOut(ctx context.Context) error {
	return m.store.SignOut(ctx)
}

// Close は購読を解除し、以後の状態遷移を停止する。
func (m *Machine) Close() {
	if m.cancelSub != nil {
		m.cancelSub()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.watchers {
		delete(m.watchers, id)
		close(ch)
	}
}

// loop はセッション変化イベントを配送順に処理する。
func (m *Machine) loop(ctx context.Context, events <-chan session.Event) {
	for ev := range events {
		token := m.next()

		switch ev.Type {
		case session.EventSignedIn, session.EventTokenRefreshed:
			profile := m.resolveProfile(ctx, ev.User.ID)
			m.apply(token, Snapshot{
				State:   StateAuthenticated,
				Session: ev.Session,
				User:    ev.User,
				Profile: profile,
			})

		case session.EventSignedOut:
			m.apply(token, Snapshot{State: StateAnonymous})
		}
	}
}

// resolveProfile はアイデンティティIDからプロフィールを解決する。
// 取得失敗・行欠落のいずれもnilへ縮退し、ログのみ残す。自動リトライはしない。
// UIはプロフィールnullのAuthenticated状態を許容し、アイデンティティの
// メールアドレス由来の表示名へフォールバックする。
func (m *Machine) resolveProfile(ctx context.Context, accountID string) *model.Profile {
	profile, err := m.store.ProfileByID(ctx, accountID)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordProfileResolutionFailure()
		}
		slog.Error("profile resolution failed",
			slog.String("account_id", accountID),
			slog.String("error", model.NewProfileResolutionError(err).Error()),
		)
		return nil
	}
	if profile == nil {
		slog.Warn("profile row missing for authenticated identity",
			slog.String("account_id", accountID),
		)
		return nil
	}
	return profile
}

// next は次のシーケンストークンを払い出す。
func (m *Machine) next() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	return m.nextSeq
}

// apply はトークン付きでスナップショットを適用する。
// 既に適用済みのトークンより古い場合は破棄する（last-write-winsではなく
// newest-token-winsで、初期解決とイベントの競合を決定的に解決する）。
func (m *Machine) apply(token uint64, snap Snapshot) {
	m.mu.Lock()
	if m.closed || token < m.applied {
		m.mu.Unlock()
		return
	}
	m.applied = token
	snap.Loading = false
	m.snap = snap

	notify := make([]chan Snapshot, 0, len(m.watchers))
	for _, ch := range m.watchers {
		notify = append(notify, ch)
	}
	m.mu.Unlock()

	for _, ch := range notify {
		select {
		case ch <- snap:
		default:
			slog.Warn("auth state notification dropped: slow watcher")
		}
	}
}
