package repository

import (
	"context"
	"sync"

	"github.com/terrasense/agrigate/internal/domain"
)

var _ UserRepository = (*MemoryUserRepo)(nil)

// MemoryUserRepo keeps users in process memory. It is the default store for
// single-process deployments; Postgres takes over when DATABASE_URL is set.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byEmail map[string]domain.User
}

// NewMemoryUserRepo constructs an empty in-memory store.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{byEmail: make(map[string]domain.User)}
}

// Create inserts the user. The uniqueness check and the insert happen under a
// single lock so concurrent registrations with the same email cannot both win.
func (r *MemoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return domain.User{}, ErrEmailTaken
	}
	r.byEmail[user.Email] = user
	return user, nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[email]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// GetByID scans the map. Linear cost is fine at this scale; the Postgres store
// indexes by id.
func (r *MemoryUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return domain.User{}, ErrNotFound
}
