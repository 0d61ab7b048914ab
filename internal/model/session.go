package model

import "time"

// Session はブラウザの認証済み状態を表すサーバー側セッション。
// 有効期限は作成時に固定され、アクセスによって延長されない。
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	IPAddress string `json:"ip_address"`
	ExpiresAt int64  `json:"expires_at"` // Unix秒
	CreatedAt int64  `json:"created_at"` // Unix秒
}

// IsExpired は現在時刻がexpires_atを過ぎているかを判定する。
// expires_atちょうどの時刻はまだ有効とみなす。
func (s *Session) IsExpired(now time.Time) bool {
	return now.Unix() > s.ExpiresAt
}

// SecondsUntilExpiry は有効期限までの残り秒数を返す。期限切れの場合は0を返す。
func (s *Session) SecondsUntilExpiry(now time.Time) int {
	remaining := s.ExpiresAt - now.Unix()
	if remaining < 0 {
		return 0
	}
	return int(remaining)
}

// Token はIdPのトークンエンドポイントの応答。
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}
