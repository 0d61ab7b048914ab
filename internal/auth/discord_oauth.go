package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rickspace/authgate/internal/metrics"
	"github.com/rickspace/authgate/internal/model"
)

const (
	defaultDiscordAPIBaseURL = "https://discord.com/api"

	// discordScopes はログイン時に要求するスコープ。
	discordScopes = "identify email"

	// maxProviderResponseBytes はIdPの応答として読み込む最大サイズ。
	maxProviderResponseBytes = 1 << 20
)

// DiscordOAuthConfig はDiscord OAuthプロバイダーの設定。
type DiscordOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// APIBaseURL は各エンドポイントの既定値の基点。空の場合はhttps://discord.com/api。
	APIBaseURL string

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	ProfileURL string

	// HTTPClient はIdP呼び出しに使うクライアント。nilの場合はTimeout付きの標準クライアント。
	HTTPClient *http.Client
	Timeout    time.Duration

	Metrics metrics.MetricsCollector
}

// DiscordOAuthProvider はDiscordのOAuth 2.0認可コードフローを提供する。
type DiscordOAuthProvider struct {
	config  DiscordOAuthConfig
	client  *http.Client
	metrics metrics.MetricsCollector
}

// NewDiscordOAuthProvider はDiscordOAuthProviderを生成する。
func NewDiscordOAuthProvider(config DiscordOAuthConfig) *DiscordOAuthProvider {
	base := strings.TrimRight(config.APIBaseURL, "/")
	if base == "" {
		base = defaultDiscordAPIBaseURL
	}
	if config.AuthURL == "" {
		config.AuthURL = base + "/oauth2/authorize"
	}
	if config.TokenURL == "" {
		config.TokenURL = base + "/oauth2/token"
	}
	if config.ProfileURL == "" {
		config.ProfileURL = base + "/users/@me"
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	var m metrics.MetricsCollector = metrics.Nop{}
	if config.Metrics != nil {
		m = config.Metrics
	}

	return &DiscordOAuthProvider{config: config, client: client, metrics: m}
}

// AuthorizeURL はDiscordの認可URLを生成する。
func (p *DiscordOAuthProvider) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {discordScopes},
	}
	if state != "" {
		params.Set("state", state)
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 通信失敗、2xx以外の応答、デコードできない応答はmodel.ErrUpstreamとして返す。
func (p *DiscordOAuthProvider) ExchangeCode(ctx context.Context, code string) (*model.Token, error) {
	form := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := p.do(req, "exchange_code")
	if err != nil {
		return nil, err
	}

	var token model.Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token response: %v", model.ErrUpstream, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token in response", model.ErrUpstream)
	}

	return &token, nil
}

// FetchProfile はアクセストークンでユーザーのプロフィールを取得する。
// 応答は未知のフィールドを含めてそのままDocumentとして返す。
func (p *DiscordOAuthProvider) FetchProfile(ctx context.Context, token *model.Token) (model.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.ProfileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", tokenType+" "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	body, err := p.do(req, "fetch_profile")
	if err != nil {
		return nil, err
	}

	profile, err := model.DecodeDocument(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	if profile.String("id") == "" {
		return nil, fmt.Errorf("%w: profile has no string id", model.ErrUpstream)
	}

	return profile, nil
}

// do はリクエストを送信し、2xxの応答本文を返す。
func (p *DiscordOAuthProvider) do(req *http.Request, operation string) ([]byte, error) {
	start := time.Now()
	resp, err := p.client.Do(req)
	p.metrics.RecordProviderLatency(operation, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %s request failed: %v", model.ErrUpstream, operation, err)
	}
	defer resp.Body.Close()

	p.metrics.RecordProviderStatus(resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s response: %v", model.ErrUpstream, operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s failed with status %d: %s", model.ErrUpstream, operation, resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// compile-time interface check
var _ OAuthProvider = (*DiscordOAuthProvider)(nil)
