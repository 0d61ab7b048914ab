// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document はスキーマに依存しないキー・バリュー形式のドキュメント。
// IdPのプロフィールのように未知のフィールドを含む応答を、そのまま保持するために使う。
type Document map[string]any

// DecodeDocument はJSONをDocumentにデコードする。
// 大きな整数（Discordのflags等）の精度を落とさないよう数値はjson.Numberとして保持する。
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document is null")
	}
	return doc, nil
}

// String は指定キーの文字列値を返す。存在しないか文字列でない場合は空文字を返す。
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool は指定キーの真偽値を返す。
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// User はIdPから取得した外部アイデンティティを表す。
// ログインのたびにプロフィール全体で上書きされる（マージしない）。
type User struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	Verified    bool
	Locale      string

	// Profile はIdPが返したプロフィールドキュメント全体。
	// このシステムが解釈しないフィールドもそのまま保持する。
	Profile Document
}

// UserFromProfile はプロフィールドキュメントから必要なフィールドだけを射影してUserを生成する。
// idが文字列として存在しない場合はエラーを返す。
func UserFromProfile(profile Document) (*User, error) {
	id := profile.String("id")
	if id == "" {
		return nil, fmt.Errorf("profile has no string id")
	}

	displayName := profile.String("global_name")
	if displayName == "" {
		displayName = profile.String("username")
	}

	return &User{
		ID:          id,
		Username:    profile.String("username"),
		DisplayName: displayName,
		Email:       profile.String("email"),
		Verified:    profile.Bool("verified"),
		Locale:      profile.String("locale"),
		Profile:     profile,
	}, nil
}
