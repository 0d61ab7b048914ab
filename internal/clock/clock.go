// Package clock は現在時刻の取得を差し替え可能にする。
// 有効期限の判定を実時間に依存せずテストするために使う。
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返すインターフェース。
type Clock interface {
	Now() time.Time
}

// Real はシステム時刻を返すClock。
type Real struct{}

// Now は現在のシステム時刻を返す。
func (Real) Now() time.Time {
	return time.Now()
}

// Mock はテスト用の手動で進めるClock。並行アクセスに安全。
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock は指定時刻で停止したMockを生成する。
func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

// Now は現在の固定時刻を返す。
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set は時刻を設定する。
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance は時刻をdだけ進める。
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

var (
	_ Clock = Real{}
	_ Clock = (*Mock)(nil)
)
