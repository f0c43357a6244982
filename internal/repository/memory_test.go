package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terrasense/agrigate/internal/domain"
	"github.com/terrasense/agrigate/internal/repository"
)

func TestMemoryUserRepoCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepo()

	user := domain.User{
		ID:    repository.NewID(),
		Email: "ana@example.com",
		Name:  "Ana",
		Role:  domain.RoleUser,
	}

	created, err := repo.Create(ctx, user)
	require.NoError(t, err)
	require.Equal(t, user.ID, created.ID)

	byEmail, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", byID.Email)
}

func TestMemoryUserRepoDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepo()

	first := domain.User{ID: repository.NewID(), Email: "ana@example.com"}
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)

	second := domain.User{ID: repository.NewID(), Email: "ana@example.com"}
	_, err = repo.Create(ctx, second)
	require.ErrorIs(t, err, repository.ErrEmailTaken)

	// The original registration is untouched.
	stored, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)
}

func TestMemoryUserRepoEmailIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepo()

	_, err := repo.Create(ctx, domain.User{ID: repository.NewID(), Email: "Ana@example.com"})
	require.NoError(t, err)

	_, err = repo.GetByEmail(ctx, "ana@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryUserRepoMissingUser(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepo()

	_, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByID(ctx, "no-such-id")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
