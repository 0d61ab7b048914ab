package auth

import "fmt"

// Stage はOAuthコールバック処理の状態。
type Stage string

// コールバック処理の状態遷移。
// Start → CodeValidated → TokenObtained → ProfileObtained → UserUpserted → SessionCreated → CookieIssued
const (
	StageStart           Stage = "start"
	StageCodeValidated   Stage = "code_validated"
	StageTokenObtained   Stage = "token_obtained"
	StageProfileObtained Stage = "profile_obtained"
	StageUserUpserted    Stage = "user_upserted"
	StageSessionCreated  Stage = "session_created"
	StageCookieIssued    Stage = "cookie_issued"
)

// CallbackError はコールバック処理の失敗を表す。
// Stageは失敗した時点で到達していた最後の状態。
type CallbackError struct {
	Stage Stage
	Err   error
}

// Error はerrorインターフェースを実装する。
func (e *CallbackError) Error() string {
	return fmt.Sprintf("oauth callback aborted after %s: %v", e.Stage, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *CallbackError) Unwrap() error {
	return e.Err
}

// RedirectToLogin はログイン画面へリダイレクトすべき失敗かを返す。
// セッションの永続化失敗だけはリダイレクトせず、エラーとしてクライアントに返す。
func (e *CallbackError) RedirectToLogin() bool {
	return e.Stage != StageUserUpserted
}
