package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rickspace/authgate/internal/metrics"
	"github.com/rickspace/authgate/internal/model"
)

type mockSessionResolver struct {
	resolveFn func(ctx context.Context, sessionID string) (*model.User, *model.Session, error)
	calls     int
}

func (m *mockSessionResolver) ResolveSession(ctx context.Context, sessionID string) (*model.User, *model.Session, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, sessionID)
	}
	return nil, nil, model.ErrSessionNotFound
}

var _ SessionResolver = (*mockSessionResolver)(nil)

// resolverFor は指定IDだけを有効なセッションとして解決するモックを返す。
func resolverFor(validID string) *mockSessionResolver {
	return &mockSessionResolver{
		resolveFn: func(_ context.Context, id string) (*model.User, *model.Session, error) {
			switch id {
			case validID:
				return &model.User{ID: "42", Username: "nelly"}, &model.Session{ID: id, UserID: "42"}, nil
			case "expired":
				return nil, nil, model.ErrSessionExpired
			default:
				return nil, nil, model.ErrSessionNotFound
			}
		},
	}
}

func serveGate(t *testing.T, resolver SessionResolver, cookie *http.Cookie) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()

	var got *Identity
	handler := NewAuthGate(resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("identity missing in wrapped handler")
		}
		got = identity
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/@me", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, got
}

func TestAuthGate_ValidSessionAttachesIdentity(t *testing.T) {
	w, identity := serveGate(t, resolverFor("valid"), &http.Cookie{Name: SessionCookieName, Value: "valid"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if identity == nil || identity.User.ID != "42" || identity.Session.ID != "valid" {
		t.Errorf("identity = %+v", identity)
	}
}

// TestAuthGate_UniformRejection はCookieなし・未知・期限切れ・空のCookieで
// まったく同じレスポンスを返すことを検証する。
func TestAuthGate_UniformRejection(t *testing.T) {
	cases := map[string]*http.Cookie{
		"no cookie":       nil,
		"empty cookie":    {Name: SessionCookieName, Value: ""},
		"unknown session": {Name: SessionCookieName, Value: "unknown"},
		"expired session": {Name: SessionCookieName, Value: "expired"},
		"other cookie":    {Name: "sid", Value: "valid"},
	}

	var reference string
	for name, cookie := range cases {
		t.Run(name, func(t *testing.T) {
			handler := NewAuthGate(resolverFor("valid"), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("wrapped handler must not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/users/@me", nil)
			if cookie != nil {
				req.AddCookie(cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			body := w.Body.String()
			if reference == "" {
				reference = body
			} else if body != reference {
				t.Errorf("body = %s, want identical rejection %s", body, reference)
			}
		})
	}
}

func TestAuthGate_StorageErrorIsServerError(t *testing.T) {
	resolver := &mockSessionResolver{
		resolveFn: func(context.Context, string) (*model.User, *model.Session, error) {
			return nil, nil, errors.Join(model.ErrStorage, errors.New("pq: connection refused"))
		},
	}

	handler := NewAuthGate(resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("wrapped handler must not be reached")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/users/@me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "any"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	body := decodeEnvelope(t, w)
	if string(body["errors"]) != `["storage_failure"]` {
		t.Errorf("errors = %s", body["errors"])
	}
	if contains := string(body["message"]); contains != `"Database error"` {
		t.Errorf("message = %s, internal error text must not leak", contains)
	}
}

func TestAuthGate_ResolvesOnEveryRequest(t *testing.T) {
	resolver := resolverFor("valid")
	for i := 0; i < 3; i++ {
		serveGate(t, resolver, &http.Cookie{Name: SessionCookieName, Value: "valid"})
	}
	if resolver.calls != 3 {
		t.Errorf("ResolveSession calls = %d, want 3", resolver.calls)
	}
}

func TestAuthGate_RecordsRejections(t *testing.T) {
	reg := prometheus.NewRegistry()
	handler := NewAuthGate(resolverFor("valid"), metrics.NewCollector(reg))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	families, _ := reg.Gather()
	for _, mf := range families {
		if mf.GetName() == "authgate_gate_rejections_total" {
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Errorf("gate_rejections_total = %v, want 1", v)
			}
			return
		}
	}
	t.Error("authgate_gate_rejections_total not found")
}

func TestUserIDFromContext(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}

	ctx := ContextWithIdentity(context.Background(), &Identity{User: &model.User{ID: "7"}})
	id, err := UserIDFromContext(ctx)
	if err != nil || id != "7" {
		t.Errorf("UserIDFromContext() = %q, %v; want 7", id, err)
	}
}
