package auth

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/FACorreiaa/go-credential-auth/app/observability/metrics"
)

const (
	selectUsersSQL = "SELECT id, username, email, password_hash, created_at FROM users ORDER BY id"
	insertUserSQL  = "INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)"
)

var userColumns = []string{"id", "username", "email", "password_hash", "created_at"}

func TestPostgresUserStore_Load(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      []User
		wantErr   string
	}{
		{
			name: "rows in id order",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectUsersSQL)).
					WillReturnRows(pgxmock.NewRows(userColumns).
						AddRow(int64(1), "alice", "a@x.com", "h1", t0).
						AddRow(int64(2), "bob", "b@x.com", "h2", t0))
			},
			want: []User{
				{ID: 1, Username: "alice", Email: "a@x.com", PasswordHash: "h1", CreatedAt: t0},
				{ID: 2, Username: "bob", Email: "b@x.com", PasswordHash: "h2", CreatedAt: t0},
			},
		},
		{
			name: "empty table",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectUsersSQL)).
					WillReturnRows(pgxmock.NewRows(userColumns))
			},
			want: nil,
		},
		{
			name: "query error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectUsersSQL)).
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: "querying users: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)
			store := NewPostgresUserStore(mock, discardLogger(), nil)

			got, err := store.Load(context.Background())
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresUserStore_Save(t *testing.T) {
	u := User{ID: 3, Username: "carol", Email: "c@x.com", PasswordHash: "h3", CreatedAt: t0}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		errText   string
	}{
		{
			name: "inserted",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs(u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "unique violation",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs(u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: ErrDuplicateUser,
		},
		{
			name: "other failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs(u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt).
					WillReturnError(errors.New("disk full"))
			},
			errText: "inserting user: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)
			store := NewPostgresUserStore(mock, discardLogger(), nil)

			err = store.Save(context.Background(), u)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				assert.EqualError(t, err, tt.errText)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresUserStore_RecordsQueryMetrics(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	m, err := metrics.New(provider.Meter("test"))
	require.NoError(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
		WillReturnError(errors.New("boom"))

	store := NewPostgresUserStore(mock, discardLogger(), m)
	require.Error(t, store.Save(context.Background(), User{ID: 1, Username: "a", CreatedAt: t0}))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
		}
	}
	assert.True(t, names["db_query_duration_seconds"])
	assert.True(t, names["db_query_errors_total"])
}
