package container

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-credential-auth/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT = config.JWTConfig{SecretKey: "k", AccessTokenTTL: time.Hour}
	cfg.Hasher = config.HasherConfig{Algorithm: "bcrypt", BcryptCost: 4, MaxConcurrent: 2}
	return cfg
}

func TestNewContainer_InMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c, err := NewContainer(context.Background(), testConfig(), logger, nil, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Pool)
	assert.NotNil(t, c.Registry)
	assert.NotNil(t, c.Gate)

	rr := httptest.NewRecorder()
	c.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"username":"alice","password":"pw","email":"a@x.com"}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 1, c.Registry.Len())

	token, err := c.AuthService.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)

	claims, err := c.Gate.Authorize("Bearer " + token)
	require.NoError(t, err)
	assert.True(t, claims.IssuedAt.Time.Equal(now))
}

func TestNewContainer_PostgresMisconfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Repositories.Postgres.Enabled = true

	_, err := NewContainer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	assert.Error(t, err)
}
