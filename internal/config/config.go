package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// ストアのバックエンド種別
const (
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreBackend string
	DatabaseURL  string
	RedisURL     string
	StoreTimeout time.Duration

	// OAuth (Discord)
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string
	DiscordAPIBaseURL   string
	ProviderTimeout     time.Duration

	// Session
	SessionMaxAge       int
	SessionReapInterval time.Duration

	// Rate Limit
	RateLimitPerSecond       float64
	RateLimitBurst           int
	RateLimitCleanupInterval time.Duration

	// Server
	ServerPort        string
	LoginPath         string
	TrustProxyHeaders bool
	LogLevel          string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DiscordClientID = os.Getenv("DISCORD_CLIENT_ID")
	if cfg.DiscordClientID == "" {
		missing = append(missing, "DISCORD_CLIENT_ID")
	}

	cfg.DiscordClientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	if cfg.DiscordClientSecret == "" {
		missing = append(missing, "DISCORD_CLIENT_SECRET")
	}

	cfg.DiscordRedirectURI = os.Getenv("DISCORD_REDIRECT_URI")
	if cfg.DiscordRedirectURI == "" {
		missing = append(missing, "DISCORD_REDIRECT_URI")
	}

	cfg.StoreBackend = strings.ToLower(getEnvString("STORE_BACKEND", StoreBackendPostgres))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	switch cfg.StoreBackend {
	case StoreBackendPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreBackendRedis:
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case StoreBackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND: %q (allowed: postgres, redis, memory)", cfg.StoreBackend)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	redirect, err := url.Parse(cfg.DiscordRedirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("invalid DISCORD_REDIRECT_URI: %q", cfg.DiscordRedirectURI)
	}

	// Optional fields with defaults
	cfg.DiscordAPIBaseURL = strings.TrimRight(getEnvString("DISCORD_API_BASE_URL", "https://discord.com/api"), "/")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 5*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800)
	cfg.SessionReapInterval = getEnvDuration("SESSION_REAP_INTERVAL", 24*time.Hour)
	cfg.RateLimitPerSecond = getEnvFloat("RATE_LIMIT_PER_SECOND", 3)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 5)
	cfg.RateLimitCleanupInterval = getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 60*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "3631")
	cfg.LoginPath = getEnvString("LOGIN_PATH", "/login")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CookieSecure = redirect.Scheme == "https"
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3630")

	if cfg.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive: %d", cfg.SessionMaxAge)
	}

	if err := validateCookieDomain(cfg.CookieDomain); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateCookieDomain はCOOKIE_DOMAINがパブリックサフィックスそのものでないことを検証する。
// "com" や "github.io" のようなドメインにCookieを発行するとブラウザに拒否されるか、
// 無関係なサイトとセッションCookieを共有してしまう。
func validateCookieDomain(domain string) error {
	if domain == "" {
		return nil
	}
	d := strings.TrimPrefix(strings.ToLower(domain), ".")
	suffix, _ := publicsuffix.PublicSuffix(d)
	if suffix == d {
		return fmt.Errorf("COOKIE_DOMAIN must not be a public suffix: %q", domain)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
