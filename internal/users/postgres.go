// internal/users/postgres.go
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/database"
	"github.com/cventus/azif/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres reads users from the users table. Memberships live in user_games,
// which the game store writes in the same transaction as the game itself.
type Postgres struct {
	pool *pgxpool.Pool
	cost int
}

var _ Directory = (*Postgres)(nil)

// NewPostgres creates a directory over pool. A zero cost uses bcrypt's default.
func NewPostgres(pool *pgxpool.Pool, cost int) *Postgres {
	return &Postgres{pool: pool, cost: cost}
}

func (p *Postgres) Create(ctx context.Context, username, password string) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password, p.cost)
	if err != nil {
		return nil, err
	}

	u := &models.User{ID: uuid.NewString(), Username: username, PasswordHash: hash, GameIDs: []string{}}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
		u.ID, u.Username, u.PasswordHash)
	if database.HasCode(err, database.CodeUniqueViolation) {
		return nil, apperr.Conflictf("username %s is taken", username)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user %s: %w", username, err)
	}
	return u, nil
}

func (p *Postgres) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u := &models.User{Username: username}
	err := p.pool.QueryRow(ctx,
		`SELECT id, password_hash FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", username, err)
	}
	if err := checkPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	if u.GameIDs, err = p.gameIDs(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Postgres) Get(ctx context.Context, userID string) (*models.User, error) {
	u := &models.User{ID: userID}
	err := p.pool.QueryRow(ctx,
		`SELECT username, password_hash FROM users WHERE id = $1`, userID,
	).Scan(&u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("user %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	if u.GameIDs, err = p.gameIDs(ctx, userID); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Postgres) gameIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT game_id FROM user_games WHERE user_id = $1 ORDER BY joined_at, game_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list games of user %s: %w", userID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list games of user %s: %w", userID, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
