package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/terrasense/agrigate/internal/config"
	"github.com/terrasense/agrigate/internal/domain"
	"github.com/terrasense/agrigate/internal/password"
	"github.com/terrasense/agrigate/internal/repository"
)

const (
	demoEmail    = "test@example.com"
	demoName     = "Test User"
	demoPassword = "password123"
)

// SeedDemoUser creates the demo account on startup when SEED_DEMO_USER is
// set, so a fresh dev environment has a known login.
func SeedDemoUser(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.SeedDemoUser {
				return nil
			}
			return seedDemoUser(ctx, users, logger)
		},
	})
}

func seedDemoUser(ctx context.Context, users repository.UserRepository, logger *zap.Logger) error {
	if _, err := users.GetByEmail(ctx, demoEmail); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("seed lookup user: %w", err)
	}

	hashed, err := password.Hash(demoPassword)
	if err != nil {
		return fmt.Errorf("seed hash password: %w", err)
	}

	user := domain.User{
		ID:           repository.NewID(),
		Email:        demoEmail,
		Name:         demoName,
		PasswordHash: hashed,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
		Farms:        []string{},
	}

	created, err := users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil
		}
		return fmt.Errorf("seed create user: %w", err)
	}

	if logger != nil {
		logger.Info("demo user created",
			zap.String("email", created.Email),
			zap.String("user_id", created.ID),
		)
	}
	return nil
}
