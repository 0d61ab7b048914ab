// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/rickspace/authgate/internal/metrics"
	"github.com/rickspace/authgate/internal/model"
	"github.com/rickspace/authgate/internal/repository"
	"github.com/rickspace/authgate/internal/security"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// AuthorizeURL はOAuth認可URLを生成する。
	AuthorizeURL(state string) string
	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (*model.Token, error)
	// FetchProfile はトークンでユーザーのプロフィールを取得する。
	FetchProfile(ctx context.Context, token *model.Token) (model.Document, error)
}

// CallbackParams はOAuthコールバックの入力。
type CallbackParams struct {
	Code          string // 認可コード（queryのcode）
	Error         string // IdPが返したエラー（queryのerror）
	State         string // queryのstate
	ExpectedState string // ログイン開始時にCookieへ保存したstate
	ClientIP      string
}

// CallbackResult はログイン成功時の結果。
type CallbackResult struct {
	User    *model.User
	Session *model.Session
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth     OAuthProvider
	userRepo  repository.UserRepository
	sessions  *SessionManager
	sanitizer security.ProfileSanitizerService
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。sanitizerとmetricsはnilでもよい。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	sessions *SessionManager,
	sanitizer security.ProfileSanitizerService,
	m metrics.MetricsCollector,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		oauth:     oauth,
		userRepo:  userRepo,
		sessions:  sessions,
		sanitizer: sanitizer,
		metrics:   m,
	}
}

// AuthorizeURL はOAuth認可URLを生成する。
func (s *Service) AuthorizeURL(state string) string {
	return s.oauth.AuthorizeURL(state)
}

// Sessions はServiceが使用するSessionManagerを返す。
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 失敗した場合は到達した状態を持つ*CallbackErrorを返す。
// ユーザーの保存失敗はログに記録して処理を続行する。
func (s *Service) HandleCallback(ctx context.Context, params CallbackParams) (*CallbackResult, error) {
	// 1. クエリパラメータの検証
	if err := validateCallback(params); err != nil {
		s.metrics.RecordLogin(metrics.LoginRedirected)
		return nil, &CallbackError{Stage: StageStart, Err: err}
	}

	// 2. 認可コードをトークンに交換
	token, err := s.oauth.ExchangeCode(ctx, params.Code)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginRedirected)
		return nil, &CallbackError{Stage: StageCodeValidated, Err: err}
	}

	// 3. プロフィールを取得
	profile, err := s.oauth.FetchProfile(ctx, token)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginRedirected)
		return nil, &CallbackError{Stage: StageTokenObtained, Err: err}
	}
	if s.sanitizer != nil {
		profile = s.sanitizer.SanitizeProfile(profile)
	}

	user, err := model.UserFromProfile(profile)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginRedirected)
		return nil, &CallbackError{Stage: StageTokenObtained, Err: fmt.Errorf("%w: %v", model.ErrUpstream, err)}
	}

	// 4. ユーザーを保存（失敗してもログインは続行する）
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		slog.WarnContext(ctx, "failed to upsert user, continuing login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	// 5. セッションを発行
	session, err := s.sessions.CreateSession(ctx, user.ID, params.ClientIP)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginFailed)
		return nil, &CallbackError{Stage: StageUserUpserted, Err: err}
	}

	s.metrics.RecordSessionCreated()
	s.metrics.RecordLogin(metrics.LoginSucceeded)
	slog.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.Int64("expires_at", session.ExpiresAt),
	)

	return &CallbackResult{User: user, Session: session}, nil
}

// validateCallback はコールバックのクエリパラメータを検証する。
func validateCallback(params CallbackParams) error {
	if params.Error != "" {
		return fmt.Errorf("%w: provider returned error %q", model.ErrInvalidCallback, params.Error)
	}
	if params.Code == "" {
		return fmt.Errorf("%w: missing code", model.ErrInvalidCallback)
	}
	if params.ExpectedState == "" ||
		subtle.ConstantTimeCompare([]byte(params.State), []byte(params.ExpectedState)) != 1 {
		return fmt.Errorf("%w: state mismatch", model.ErrInvalidCallback)
	}
	return nil
}
