package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rickspace/authgate/internal/clock"
	"github.com/rickspace/authgate/internal/model"
	"github.com/rickspace/authgate/internal/repository"
)

// DefaultSessionMaxAge はセッションの有効期間（7日）。
const DefaultSessionMaxAge = 7 * 24 * time.Hour

// sessionIDBytes はセッションIDの乱数部のバイト数。
const sessionIDBytes = 32

// SessionManager はセッションの作成・解決・破棄を行う。
// 有効期限は作成時に固定され、解決時にタイムスタンプの比較だけで判定する。
type SessionManager struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	clock    clock.Clock
	maxAge   time.Duration
	newID    func() (string, error)
}

// NewSessionManager はSessionManagerを生成する。
// maxAgeが0以下の場合はDefaultSessionMaxAgeを使用する。
func NewSessionManager(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	clk clock.Clock,
	maxAge time.Duration,
) *SessionManager {
	if clk == nil {
		clk = clock.Real{}
	}
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		clock:    clk,
		maxAge:   maxAge,
		newID:    generateSessionID,
	}
}

// CreateSession は新しいセッションを発行して永続化する。
// 永続化に失敗した場合はmodel.ErrStorageを返す。呼び出し側はCookieを発行してはならない。
func (m *SessionManager) CreateSession(ctx context.Context, userID, clientIP string) (*model.Session, error) {
	id, err := m.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.clock.Now()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		IPAddress: clientIP,
		ExpiresAt: now.Add(m.maxAge).Unix(),
		CreatedAt: now.Unix(),
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStorage, err)
	}

	return session, nil
}

// ResolveSession はセッションIDからユーザーとセッションを解決する。
//   - セッションが存在しない、または参照先のユーザーが存在しない: model.ErrSessionNotFound
//   - 有効期限切れ: model.ErrSessionExpired（レコードは削除しない）
//   - 読み取り失敗: model.ErrStorage
func (m *SessionManager) ResolveSession(ctx context.Context, sessionID string) (*model.User, *model.Session, error) {
	if sessionID == "" {
		return nil, nil, model.ErrSessionNotFound
	}

	session, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrStorage, err)
	}
	if session == nil {
		return nil, nil, model.ErrSessionNotFound
	}

	if session.IsExpired(m.clock.Now()) {
		return nil, nil, model.ErrSessionExpired
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrStorage, err)
	}
	if user == nil {
		return nil, nil, model.ErrSessionNotFound
	}

	return user, session, nil
}

// DestroySession はセッションを削除する。存在しない場合もエラーにしない。
func (m *SessionManager) DestroySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", model.ErrStorage, err)
	}
	return nil
}

// Now はSessionManagerのClockが示す現在時刻を返す。
func (m *SessionManager) Now() time.Time {
	return m.clock.Now()
}

// generateSessionID は暗号的に安全なセッションIDを生成する（32バイトの16進表現）。
func generateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
