package model

// APIResponse はすべてのJSONレスポンスで共通のエンベロープ。
// 失敗時もdataとerrorsを省略しない。
type APIResponse[T any] struct {
	Data    T        `json:"data"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// NewAPIResponse は成功レスポンスのエンベロープを生成する。
func NewAPIResponse[T any](data T, message string) APIResponse[T] {
	return APIResponse[T]{
		Data:    data,
		Message: message,
		Errors:  []string{},
	}
}

// NewErrorResponse はAPIErrorからエラーレスポンスのエンベロープを生成する。
// dataはnullになる。
func NewErrorResponse(apiErr *APIError) APIResponse[any] {
	return APIResponse[any]{
		Data:    nil,
		Message: apiErr.Message,
		Errors:  []string{apiErr.Code},
	}
}
