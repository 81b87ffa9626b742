package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-credential-auth/app/observability/metrics"
)

var _ UserStore = (*PostgresUserStore)(nil)

// pgxPool is the subset of *pgxpool.Pool the store needs.
type pgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresUserStore persists user records in the users table.
type PostgresUserStore struct {
	logger  *slog.Logger
	pgpool  pgxPool
	metrics *metrics.AppMetrics
}

func NewPostgresUserStore(pool pgxPool, logger *slog.Logger, m *metrics.AppMetrics) *PostgresUserStore {
	return &PostgresUserStore{
		logger:  logger,
		pgpool:  pool,
		metrics: m,
	}
}

// Load returns every stored user ordered by id.
func (s *PostgresUserStore) Load(ctx context.Context) ([]User, error) {
	start := time.Now()
	rows, err := s.pgpool.Query(ctx,
		"SELECT id, username, email, password_hash, created_at FROM users ORDER BY id")
	if err != nil {
		s.observe(ctx, "load", start, err)
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			s.observe(ctx, "load", start, err)
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		s.observe(ctx, "load", start, err)
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	s.observe(ctx, "load", start, nil)
	return users, nil
}

// Save inserts a new user. A unique violation maps to ErrDuplicateUser.
func (s *PostgresUserStore) Save(ctx context.Context, u User) error {
	start := time.Now()
	_, err := s.pgpool.Exec(ctx,
		"INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)",
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	s.observe(ctx, "save", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateUser
		}
		s.logger.ErrorContext(ctx, "Failed to insert user", slog.Int64("user_id", u.ID), slog.Any("error", err))
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", op))
	s.metrics.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		s.metrics.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}
