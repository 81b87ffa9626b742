package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ UserRegistry = (*MemoryRegistry)(nil)

// UserRegistry owns user records keyed by username.
type UserRegistry interface {
	// FindByUsername returns the record with exactly this username, or ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (*User, error)
	// Create stores a new record with the next identifier, or fails with ErrDuplicateUser.
	Create(ctx context.Context, creds Credentials, passwordHash string) (*User, error)
}

// UserStore is the optional durable backing of a MemoryRegistry.
type UserStore interface {
	Load(ctx context.Context) ([]User, error)
	Save(ctx context.Context, user User) error
}

// MemoryRegistry keeps records in memory behind a single mutex, so lookup and
// insert of one username can never interleave with another registration.
type MemoryRegistry struct {
	logger *slog.Logger
	store  UserStore
	now    func() time.Time

	mu     sync.Mutex
	users  map[string]*User
	nextID int64
}

// NewMemoryRegistry creates an empty, non-durable registry.
func NewMemoryRegistry(logger *slog.Logger) *MemoryRegistry {
	return &MemoryRegistry{
		logger: logger,
		now:    time.Now,
		users:  make(map[string]*User),
		nextID: 1,
	}
}

// NewPersistentRegistry creates a registry backed by store, preloaded with
// every record the store holds. Identifiers continue after the highest loaded one.
func NewPersistentRegistry(ctx context.Context, store UserStore, logger *slog.Logger) (*MemoryRegistry, error) {
	r := NewMemoryRegistry(logger)
	r.store = store

	users, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	for i := range users {
		u := users[i]
		if _, exists := r.users[u.Username]; exists {
			return nil, fmt.Errorf("loading users: %w: %q", ErrDuplicateUser, u.Username)
		}
		r.users[u.Username] = &u
		if u.ID >= r.nextID {
			r.nextID = u.ID + 1
		}
	}
	logger.InfoContext(ctx, "User registry loaded", slog.Int("users", len(users)), slog.Int64("next_id", r.nextID))
	return r, nil
}

func (r *MemoryRegistry) FindByUsername(_ context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	found := *u
	return &found, nil
}

func (r *MemoryRegistry) Create(ctx context.Context, creds Credentials, passwordHash string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[creds.Username]; exists {
		return nil, ErrDuplicateUser
	}

	// An id handed out is consumed even if the save below fails.
	id := r.nextID
	r.nextID++

	u := &User{
		ID:           id,
		Username:     creds.Username,
		Email:        creds.Email,
		PasswordHash: passwordHash,
		CreatedAt:    r.now().UTC(),
	}
	if r.store != nil {
		if err := r.store.Save(ctx, *u); err != nil {
			return nil, fmt.Errorf("saving user: %w", err)
		}
	}
	r.users[u.Username] = u

	created := *u
	return &created, nil
}

// Len reports the number of live records.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}
