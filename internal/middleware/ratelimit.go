package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rickspace/authgate/internal/metrics"
	"github.com/rickspace/authgate/internal/model"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	Rate            rate.Limit    // キーごとの補充レート（req/sec）
	Burst           int           // キーごとのバーストサイズ
	CleanupInterval time.Duration // 古いカウンタを削除する間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す（3 req/sec、バースト5、60秒ごとに掃除）。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            3,
		Burst:           5,
		CleanupInterval: 60 * time.Second,
	}
}

// keyLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はプロセス全体で共有するキーごとのリクエストカウンタ。
// 並行したIncrementと、定期的なEvictStaleによる古いカウンタの削除をサポートする。
type RateLimiter struct {
	config RateLimiterConfig
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*keyLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// CleanupIntervalが正の場合、バックグラウンドで古いカウンタの削除を開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config,
		now:      time.Now,
		limiters: make(map[string]*keyLimiter),
		stopCh:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}

	return rl
}

// Stop はバックグラウンドのゴルーチンを停止する。複数回呼び出してもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Increment はキーのカウンタを1つ進め、リクエストを許可する場合にtrueを返す。
func (rl *RateLimiter) Increment(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	kl, ok := rl.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.limiters[key] = kl
	}
	kl.lastAccess = now
	rl.mu.Unlock()

	return kl.limiter.AllowN(now, 1)
}

// EvictStale は最後のアクセスからCleanupInterval以上経過したカウンタを削除し、削除数を返す。
// 削除されたキーは次のIncrementで満タンの状態から再作成されるため、挙動は変わらない。
func (rl *RateLimiter) EvictStale() int {
	ttl := rl.config.CleanupInterval
	if ttl <= 0 {
		ttl = DefaultRateLimiterConfig().CleanupInterval
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for key, kl := range rl.limiters {
		if now.Sub(kl.lastAccess) >= ttl {
			delete(rl.limiters, key)
			evicted++
		}
	}
	return evicted
}

// Len は現在保持しているカウンタの数を返す。
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// cleanupLoop はCleanupIntervalごとにEvictStaleを実行する。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := rl.EvictStale(); n > 0 {
				slog.Debug("rate limiter evicted stale counters", slog.Int("count", n))
			}
		case <-rl.stopCh:
			return
		}
	}
}

// Middleware はクライアントIPをキーにレート制限を行うミドルウェアを返す。
func (rl *RateLimiter) Middleware(m metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if m == nil {
		m = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			if !rl.Increment(key) {
				m.RecordRateLimited()
				slog.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("client_ip", key),
					slog.String("path", r.URL.Path),
				)
				writeRateLimitResponse(w, rl.config.Rate)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:    model.ErrCodeRateLimited,
		Message: "Too many requests",
	})
}
