package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terrasense/agrigate/internal/domain"
)

var _ UserRepository = (*PostgresUserRepo)(nil)

const uniqueViolationCode = "23505"

const (
	insertUserSQL = `INSERT INTO users (id, email, name, password_hash, role, created_at, farms)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	selectUserByEmailSQL = `SELECT id, email, name, password_hash, role, created_at, farms FROM users WHERE email = $1`
	selectUserByIDSQL    = `SELECT id, email, name, password_hash, role, created_at, farms FROM users WHERE id = $1`
)

// PostgresUserRepo implements UserRepository on pgx. The users table carries a
// unique index on email, so the duplicate check is enforced at the storage
// layer rather than by a read-then-write in the service.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	farms := user.Farms
	if farms == nil {
		farms = []string{}
	}
	_, err := r.db.Exec(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
		farms,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanUser(r.db.QueryRow(ctx, selectUserByEmailSQL, email))
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.db.QueryRow(ctx, selectUserByIDSQL, id))
}

func (r *PostgresUserRepo) scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.Farms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}
