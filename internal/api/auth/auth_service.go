package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService registers users and logs them in.
type AuthService interface {
	Register(ctx context.Context, creds Credentials) (*User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

// AuthServiceImpl holds no user state of its own; records live in the registry.
type AuthServiceImpl struct {
	logger   *slog.Logger
	registry UserRegistry
	hashes   *HashPool
	issuer   TokenSigner
	validate *validator.Validate
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type ServiceOption func(*AuthServiceImpl)

// WithClock replaces time.Now as the source of token issue times.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *AuthServiceImpl) { s.now = now }
}

// WithHashPool replaces the default hash pool.
func WithHashPool(p *HashPool) ServiceOption {
	return func(s *AuthServiceImpl) { s.hashes = p }
}

func NewAuthService(registry UserRegistry, hasher Hasher, issuer TokenSigner, logger *slog.Logger, opts ...ServiceOption) *AuthServiceImpl {
	s := &AuthServiceImpl{
		logger:   logger,
		registry: registry,
		hashes:   NewHashPool(hasher, 8),
		issuer:   issuer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates creds, hashes the password and stores a new user.
// ErrDuplicateUser is returned unchanged.
func (s *AuthServiceImpl) Register(ctx context.Context, creds Credentials) (*User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register", trace.WithAttributes(
		attribute.String("username", creds.Username),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("username", creds.Username))

	if err := s.check(creds); err != nil {
		l.InfoContext(ctx, "Rejected registration input", slog.Any("error", err))
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	// Cheap early exit; Create repeats the check atomically.
	if _, err := s.registry.FindByUsername(ctx, creds.Username); err == nil {
		span.SetStatus(codes.Error, "duplicate user")
		return nil, ErrDuplicateUser
	} else if !errors.Is(err, ErrUserNotFound) {
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := s.hashes.Hash(ctx, creds.Password)
	creds.Password = ""
	if err != nil {
		if !errors.Is(err, ErrValidation) {
			l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "hash failed")
		return nil, err
	}

	user, err := s.registry.Create(ctx, creds, hash)
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			l.WarnContext(ctx, "Username already taken")
			span.SetStatus(codes.Error, "duplicate user")
			return nil, ErrDuplicateUser
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	span.SetStatus(codes.Ok, "registered")
	l.InfoContext(ctx, "User registered", slog.Int64("user_id", user.ID))
	return user, nil
}

// Login verifies the password and returns a token issued at the service clock's now.
// Unknown usernames and wrong passwords both wrap ErrUnauthenticated.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login", trace.WithAttributes(
		attribute.String("username", username),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"), slog.String("username", username))

	if err := s.check(LoginRequest{Username: username, Password: password}); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return "", err
	}

	user, err := s.registry.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Spend the same hashing effort as a real check.
			s.burnVerify(ctx, password)
			l.InfoContext(ctx, "Login failed")
			span.SetStatus(codes.Error, "unauthenticated")
			return "", ErrUserNotFound
		}
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		span.RecordError(err)
		return "", fmt.Errorf("looking up user: %w", err)
	}

	ok, err := s.hashes.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		l.ErrorContext(ctx, "Failed to verify password", slog.Int64("user_id", user.ID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
		return "", err
	}
	if !ok {
		l.InfoContext(ctx, "Login failed")
		span.SetStatus(codes.Error, "unauthenticated")
		return "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user, s.now())
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		return "", err
	}

	span.SetStatus(codes.Ok, "logged in")
	l.InfoContext(ctx, "User logged in", slog.Int64("user_id", user.ID))
	return token, nil
}

func (s *AuthServiceImpl) burnVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hashes.hasher.Hash("not-a-real-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hashes.Verify(ctx, password, s.dummyHash)
	}
}

// check runs struct validation and reports the missing fields by name only.
func (s *AuthServiceImpl) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(fields, ", "))
}
