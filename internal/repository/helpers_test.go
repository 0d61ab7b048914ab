package repository

import (
	"encoding/json"
	"reflect"
	"testing"
)

// assertJSONEqual はJSONとして等価であることを検証する（jsonbはキー順や空白を保持しないため）。
func assertJSONEqual(t *testing.T, got []byte, want string) {
	t.Helper()

	var g, w interface{}
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("invalid JSON %s: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("invalid expected JSON %s: %v", want, err)
	}
	if !reflect.DeepEqual(g, w) {
		t.Errorf("json = %s, want %s", got, want)
	}
}
