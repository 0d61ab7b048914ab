package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rickspace/authgate/internal/model"
)

// displayFields はマークアップを除去するプロフィールのフィールド。
var displayFields = []string{"username", "global_name"}

// ProfileSanitizerService はIdPのプロフィールに含まれる表示用テキストを無害化するインターフェース。
type ProfileSanitizerService interface {
	// SanitizeProfile は表示用フィールドからHTMLタグを除去したプロフィールのコピーを返す。
	// それ以外のフィールドは変更しない。
	SanitizeProfile(profile model.Document) model.Document
}

// profileSanitizer はbluemondayのStrictPolicyでタグをすべて除去する。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はテキストからHTMLタグを除去する。
// StrictPolicyがエスケープした文字実体は元に戻す（JSONで返すため）。
func (s *profileSanitizer) SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// SanitizeProfile は表示用フィールドを無害化したプロフィールのコピーを返す。
func (s *profileSanitizer) SanitizeProfile(profile model.Document) model.Document {
	out := make(model.Document, len(profile))
	for k, v := range profile {
		out[k] = v
	}

	for _, field := range displayFields {
		if text, ok := out[field].(string); ok {
			out[field] = s.SanitizeText(text)
		}
	}
	return out
}

// compile-time interface check
var _ ProfileSanitizerService = (*profileSanitizer)(nil)
