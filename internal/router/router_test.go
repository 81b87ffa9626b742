package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-credential-auth/config"
	"github.com/FACorreiaa/go-credential-auth/internal/api/auth"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtCfg := config.JWTConfig{SecretKey: "k"}

	registry := auth.NewMemoryRegistry(logger)
	svc := auth.NewAuthService(registry, auth.NewBcryptHasher(auth.WithCost(4)), auth.NewTokenIssuer(jwtCfg), logger)
	gate := auth.NewGate(auth.NewTokenVerifier(jwtCfg))

	return SetupRouter(&Config{
		AuthHandler:            auth.NewAuthHandler(svc, logger, nil),
		AuthenticateMiddleware: auth.Authenticate(logger, gate, nil),
		AllowedOrigins:         []string{"https://app.example.com"},
	})
}

func TestSetupRouter_Routes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"root", http.MethodGet, "/", http.StatusOK, `{"message":"Hello World!"}`},
		{"ping", http.MethodGet, "/ping", http.StatusOK, "pong"},
		{"swagger doc", http.MethodGet, "/swagger/doc.json", http.StatusOK, "/auth/login"},
		{"profile needs token", http.MethodGet, "/api/user/profile", http.StatusUnauthorized, "Token is missing"},
		{"login is post only", http.MethodGet, "/api/auth/login", http.StatusMethodNotAllowed, ""},
		{"unknown", http.MethodGet, "/api/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSetupRouter_CORS(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
