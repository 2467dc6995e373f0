package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func corsRequest(t *testing.T, cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1/addresses", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	}
	rr := httptest.NewRecorder()
	CORS(cfg)(okHandler()).ServeHTTP(rr, req)
	return rr
}

func TestCORS_AllowOrigin(t *testing.T) {
	prod := CORSConfig{
		AllowedOrigins: []string{"https://shop.cartify.io", " https://admin.cartify.io "},
		Environment:    "production",
	}

	tests := []struct {
		name   string
		cfg    CORSConfig
		origin string
		want   string
	}{
		{"development allows any", CORSConfig{Environment: "development"}, "https://evil.com", "*"},
		{"explicit wildcard", CORSConfig{AllowedOrigins: []string{"*"}, Environment: "production"}, "https://a.com", "*"},
		{"listed origin echoed", prod, "https://shop.cartify.io", "https://shop.cartify.io"},
		{"trimmed origin matches", prod, "https://admin.cartify.io", "https://admin.cartify.io"},
		{"unlisted origin rejected", prod, "https://evil.com", ""},
		{"no origin header", prod, "", ""},
		{
			"credentials echo instead of wildcard",
			CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
			"https://shop.cartify.io",
			"https://shop.cartify.io",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := corsRequest(t, tt.cfg, http.MethodGet, tt.origin)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	rr := corsRequest(t, DefaultCORSConfig(), http.MethodOptions, "https://shop.cartify.io")

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Equal(t, "X-Correlation-ID", rr.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_CredentialsHeader(t *testing.T) {
	rr := corsRequest(t, CORSConfig{AllowedOrigins: []string{"https://a.com"}, AllowCredentials: true}, http.MethodGet, "https://a.com")
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))
}
