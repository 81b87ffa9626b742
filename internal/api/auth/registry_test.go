package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Load(ctx context.Context) ([]User, error) {
	args := m.Called(ctx)
	if u := args.Get(0); u != nil {
		return u.([]User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) Save(ctx context.Context, user User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func TestMemoryRegistry_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(discardLogger())

	_, err := r.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, ErrUserNotFound)

	u, err := r.Create(ctx, Credentials{Username: "alice", Email: "a@x.com"}, "hash-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "hash-a", u.PasswordHash)
	assert.False(t, u.CreatedAt.IsZero())

	found, err := r.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u, found)

	_, err = r.FindByUsername(ctx, "Alice")
	assert.ErrorIs(t, err, ErrUserNotFound, "lookup is case sensitive")
}

func TestMemoryRegistry_IDsIncreaseAndDuplicatesFail(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(discardLogger())

	for i := 1; i <= 5; i++ {
		u, err := r.Create(ctx, Credentials{Username: fmt.Sprintf("user%d", i)}, "h")
		require.NoError(t, err)
		assert.Equal(t, int64(i), u.ID)
	}

	_, err := r.Create(ctx, Credentials{Username: "user3"}, "other")
	assert.ErrorIs(t, err, ErrDuplicateUser)
	assert.Equal(t, 5, r.Len())

	stored, err := r.FindByUsername(ctx, "user3")
	require.NoError(t, err)
	assert.Equal(t, "h", stored.PasswordHash, "a failed create leaves the original untouched")

	u, err := r.Create(ctx, Credentials{Username: "user6"}, "h")
	require.NoError(t, err)
	assert.Equal(t, int64(6), u.ID)
}

func TestMemoryRegistry_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(discardLogger())

	u, err := r.Create(ctx, Credentials{Username: "alice"}, "h")
	require.NoError(t, err)
	u.PasswordHash = "tampered"

	found, err := r.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h", found.PasswordHash)
}

func TestPersistentRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("continues numbering after loaded records", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("Load", ctx).Return([]User{
			{ID: 1, Username: "alice", PasswordHash: "h1"},
			{ID: 7, Username: "bob", PasswordHash: "h7"},
		}, nil)
		store.On("Save", ctx, mock.MatchedBy(func(u User) bool {
			return u.ID == 8 && u.Username == "carol" && u.PasswordHash == "h8"
		})).Return(nil).Once()

		r, err := NewPersistentRegistry(ctx, store, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, 2, r.Len())

		bob, err := r.FindByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(7), bob.ID)

		carol, err := r.Create(ctx, Credentials{Username: "carol"}, "h8")
		require.NoError(t, err)
		assert.Equal(t, int64(8), carol.ID)
		store.AssertExpectations(t)
	})

	t.Run("load failure", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("Load", ctx).Return(nil, errors.New("connection refused"))

		_, err := NewPersistentRegistry(ctx, store, discardLogger())
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("duplicate usernames in store", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("Load", ctx).Return([]User{
			{ID: 1, Username: "alice"},
			{ID: 2, Username: "alice"},
		}, nil)

		_, err := NewPersistentRegistry(ctx, store, discardLogger())
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("save failure consumes the id but stores nothing", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("Load", ctx).Return([]User{}, nil)
		store.On("Save", ctx, mock.MatchedBy(func(u User) bool { return u.ID == 1 })).
			Return(errors.New("disk full")).Once()
		store.On("Save", ctx, mock.MatchedBy(func(u User) bool { return u.ID == 2 })).
			Return(nil).Once()

		r, err := NewPersistentRegistry(ctx, store, discardLogger())
		require.NoError(t, err)

		_, err = r.Create(ctx, Credentials{Username: "alice"}, "h")
		assert.ErrorContains(t, err, "disk full")
		_, err = r.FindByUsername(ctx, "alice")
		assert.ErrorIs(t, err, ErrUserNotFound)

		u, err := r.Create(ctx, Credentials{Username: "alice"}, "h")
		require.NoError(t, err)
		assert.Equal(t, int64(2), u.ID)
		store.AssertExpectations(t)
	})
}
