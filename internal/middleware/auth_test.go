package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := AuthMiddleware(ok)

	tests := []struct {
		name   string
		path   string
		cookie string
		header string
		code   int
	}{
		{"login page open", "/login", "", "", http.StatusOK},
		{"login endpoint open", "/auth/login", "", "", http.StatusOK},
		{"page redirects", "/", "", "", http.StatusSeeOther},
		{"api rejected", "/api/status", "", "", http.StatusUnauthorized},
		{"ajax rejected", "/logs/info", "", "XMLHttpRequest", http.StatusUnauthorized},
		{"wrong cookie", "/api/status", "false", "", http.StatusUnauthorized},
		{"authenticated", "/api/status", "true", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AuthCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("X-Requested-With", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tt.code {
				t.Errorf("Expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code == http.StatusSeeOther && rec.Header().Get("Location") != "/login" {
				t.Errorf("Expected redirect to /login, got %q", rec.Header().Get("Location"))
			}
		})
	}
}
