package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rickspace/authgate/internal/model"
)

// WriteJSON はエンベロープをJSONで書き込む。
func WriteJSON[T any](w http.ResponseWriter, statusCode int, body model.APIResponse[T]) {
	if body.Errors == nil {
		body.Errors = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// WriteErrorResponse はAPIErrorをエンベロープ形式で書き込む。
// messageにはクライアント向けの一般的な文言、errorsには機械可読なコードが入る。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, model.NewErrorResponse(apiErr))
}

// WriteInternalServerError は内部サーバーエラーのレスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
