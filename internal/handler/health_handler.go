package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickspace/authgate/internal/middleware"
	"github.com/rickspace/authgate/internal/model"
)

// HealthChecker は依存サービスの疎通確認を行うインターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// healthStatus は/healthのレスポンスデータ。
type healthStatus struct {
	Status string `json:"status"`
}

// Health はストアへの疎通を確認する。
// GET /health
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := checker.Ping(ctx); err != nil {
				slog.ErrorContext(r.Context(), "health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, model.APIResponse[healthStatus]{
					Data:    healthStatus{Status: "unavailable"},
					Message: "Store unreachable",
					Errors:  []string{model.ErrCodeStorageFailure},
				})
				return
			}
		}

		middleware.WriteJSON(w, http.StatusOK, model.NewAPIResponse(healthStatus{Status: "ok"}, "ok"))
	}
}

// Ping は疎通確認用のエンドポイント。
// GET /api/ping
func Ping(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, model.NewAPIResponse[any](nil, "pong!"))
}
