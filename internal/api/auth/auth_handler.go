package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	appMiddleware "github.com/FACorreiaa/go-credential-auth/app/middleware"
	"github.com/FACorreiaa/go-credential-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-credential-auth/internal/api"
)

const msgInvalidCredentials = "Invalid username or password"

type AuthHandler struct {
	AuthService AuthService
	logger      *slog.Logger
	metrics     *metrics.AppMetrics
}

func NewAuthHandler(authService AuthService, logger *slog.Logger, m *metrics.AppMetrics) *AuthHandler {
	return &AuthHandler{
		AuthService: authService,
		logger:      logger,
		metrics:     m,
	}
}

// Register godoc
// @Summary      Register
// @Description  Creates a user account. The password is stored only as a salted hash.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body RegisterRequest true "Credentials"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} Response "Missing field"
// @Failure      409 {object} Response "Username already exists"
// @Failure      500 {object} Response "Internal Server Error"
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	l := h.logger.With(slog.String("handler", "Register"))

	outcome := "error"
	defer func() {
		if h.metrics == nil {
			return
		}
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		h.metrics.RegisterRequestsTotal.Add(ctx, 1, attrs)
		h.metrics.RegisterDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.InfoContext(ctx, "Invalid register body", slog.Any("error", err))
		outcome = "invalid"
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.AuthService.Register(ctx, req)
	if err != nil {
		outcome = h.writeError(w, r, err)
		return
	}

	outcome = "success"
	api.WriteJSONResponse(w, r, http.StatusCreated, RegisterResponse{
		Message: "User registered successfully",
		User:    user.View(),
	})
}

// Login godoc
// @Summary      Login
// @Description  Verifies a username and password and returns a signed access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body LoginRequest true "Credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} Response "Missing field"
// @Failure      401 {object} Response "Invalid username or password"
// @Failure      500 {object} Response "Internal Server Error"
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	l := h.logger.With(slog.String("handler", "Login"))

	outcome := "error"
	defer func() {
		if h.metrics == nil {
			return
		}
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		h.metrics.LoginRequestsTotal.Add(ctx, 1, attrs)
		h.metrics.LoginDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.InfoContext(ctx, "Invalid login body", slog.Any("error", err))
		outcome = "invalid"
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.AuthService.Login(ctx, req.Username, req.Password)
	if err != nil {
		outcome = h.writeError(w, r, err)
		return
	}

	outcome = "success"
	api.WriteJSONResponse(w, r, http.StatusOK, LoginResponse{
		Message: "User logged in",
		Token:   token,
	})
}

// Profile godoc
// @Summary      Get Profile
// @Description  Returns the verified identity carried by the bearer token.
// @Tags         User
// @Produce      json
// @Success      200 {object} ProfileResponse
// @Failure      401 {object} Response "Unauthorized"
// @Security     BearerAuth
// @Router       /user/profile [get]
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := appMiddleware.ClaimsFromContext[*Claims](r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "Claims not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ProfileResponse{
		Message: "Reached protected route",
		User:    claims,
	})
}

// writeError maps a service error to a response and returns the metric outcome.
func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return "invalid"
	case errors.Is(err, ErrDuplicateUser):
		api.ErrorResponse(w, r, http.StatusConflict, "Username already exists")
		return "conflict"
	case errors.Is(err, ErrUnauthenticated):
		api.ErrorResponse(w, r, http.StatusUnauthorized, msgInvalidCredentials)
		return "unauthenticated"
	default:
		h.logger.ErrorContext(r.Context(), "Request failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return "error"
	}
}
