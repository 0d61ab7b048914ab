// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 期限切れのセッションは解決時に拒否されるだけで削除されないため、
// このジョブがストアに溜まったレコードを回収する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickspace/authgate/internal/clock"
	"github.com/rickspace/authgate/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const deleteExpiredSessions = `DELETE FROM documents
	WHERE collection = 'sessions'
	  AND (body->>'expires_at')::BIGINT < $1`

// SessionReaper は有効期限切れのセッションを削除するジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type SessionReaper struct {
	db      Executor
	logger  *slog.Logger
	clock   clock.Clock
	metrics metrics.MetricsCollector

	// Grace は期限切れから削除までの猶予期間。
	Grace time.Duration
}

// NewSessionReaper はSessionReaperを生成する。clkとmはnilでもよい。
func NewSessionReaper(db Executor, logger *slog.Logger, clk clock.Clock, m metrics.MetricsCollector) *SessionReaper {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &SessionReaper{
		db:      db,
		logger:  logger,
		clock:   clk,
		metrics: m,
	}
}

// Run はexpires_atが現在時刻からGraceを引いた時刻より前のセッションを削除し、削除件数を返す。
func (j *SessionReaper) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	cutoff := j.clock.Now().Add(-j.Grace).Unix()

	result, err := j.db.ExecContext(ctx, deleteExpiredSessions, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "session reaper failed",
			slog.String("error", err.Error()),
			slog.Int64("cutoff", cutoff),
		)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}

	j.metrics.RecordSessionsReaped(deleted)
	j.logger.InfoContext(ctx, "session reaper completed",
		slog.Int64("deleted_count", deleted),
		slog.Int64("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deleted, nil
}

// Start はinterval間隔でRunを繰り返す。起動直後に1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SessionReaper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("session reaper started", slog.Duration("interval", interval))

	for {
		// 失敗はRun内でログ済み。次の周期で再試行する。
		_, _ = j.Run(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info("session reaper stopped")
			return
		case <-ticker.C:
		}
	}
}
