package requestctx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"present", "user-1", "user-1", true},
		{"trimmed", "  user-2 ", "user-2", true},
		{"missing", "", "", false},
		{"blank", "   ", "", false},
		{"too long", strings.Repeat("a", 129), "", false},
		{"control char", "a\x01b", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(HeaderUserID, tt.header)
			}
			got, ok := FromRequest(r)
			if got != tt.want || ok != tt.ok {
				t.Errorf("FromRequest() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without header, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "u1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "u1" {
		t.Errorf("expected u1 in context, got %q (status %d)", seen, rec.Code)
	}
}

func TestUserID_Empty(t *testing.T) {
	if _, ok := UserID(context.Background()); ok {
		t.Error("expected no user in empty context")
	}
	if _, ok := UserID(WithUserID(context.Background(), "")); ok {
		t.Error("empty id should not count")
	}
}
