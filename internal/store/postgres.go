// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/database"
	"github.com/cventus/azif/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Backend over the games and user_games tables. Players,
// characters and flipped cards are stored as JSONB documents next to the clock.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Backend = (*Postgres)(nil)

// NewPostgres wraps an open pool. The schema is created by database.Migrate.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Insert(ctx context.Context, g *models.Game) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO games (id, name, phase, content_set_ids, clock, created_at, players, characters, flipped_card_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		g.ID, g.Name, string(g.Phase), g.ContentSetIDs, g.Clock, g.CreatedAt,
		g.Players, g.Characters, g.FlippedCardIDs,
	)
	if database.HasCode(err, database.CodeUniqueViolation) {
		return apperr.Conflictf("game %s already exists", g.ID)
	}
	if err != nil {
		return fmt.Errorf("insert game %s: %w", g.ID, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, id string) (*models.Game, error) {
	var (
		g     models.Game
		phase string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, phase, content_set_ids, clock, created_at, players, characters, flipped_card_ids
		FROM games WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &phase, &g.ContentSetIDs, &g.Clock, &g.CreatedAt,
		&g.Players, &g.Characters, &g.FlippedCardIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("game %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	g.Phase = models.Phase(phase)
	g.CreatedAt = g.CreatedAt.UTC()
	return g.Clone(), nil
}

func (p *Postgres) Commit(ctx context.Context, next *models.Game, expected int64) error {
	n, err := update(ctx, p.pool, next, expected)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Conflictf("game %s moved past clock %d", next.ID, expected)
	}
	return nil
}

func (p *Postgres) CommitMembership(ctx context.Context, next *models.Game, expected int64, change MembershipChange) error {
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		n, err := update(ctx, tx, next, expected)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTxCancelled
		}
		if change.Join {
			_, err = tx.Exec(ctx,
				`INSERT INTO user_games (user_id, game_id) VALUES ($1, $2)`,
				change.UserID, change.GameID)
		} else {
			_, err = tx.Exec(ctx,
				`DELETE FROM user_games WHERE user_id = $1 AND game_id = $2`,
				change.UserID, change.GameID)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTxCancelled),
		database.HasCode(err, database.CodeSerializationFailure, database.CodeDeadlockDetected):
		return ErrTxCancelled
	case database.HasCode(err, database.CodeForeignKeyViolation):
		return apperr.NotFoundf("user %s not found", change.UserID)
	case database.HasCode(err, database.CodeUniqueViolation):
		return apperr.Conflictf("user %s is already a member of game %s", change.UserID, change.GameID)
	default:
		return fmt.Errorf("commit membership for game %s: %w", next.ID, err)
	}
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// update performs the clock compare-and-swap and reports affected rows.
func update(ctx context.Context, db execer, next *models.Game, expected int64) (int64, error) {
	tag, err := db.Exec(ctx, `
		UPDATE games
		SET phase = $3, clock = $4, players = $5, characters = $6, flipped_card_ids = $7
		WHERE id = $1 AND clock = $2`,
		next.ID, expected, string(next.Phase), next.Clock,
		next.Players, next.Characters, next.FlippedCardIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("update game %s: %w", next.ID, err)
	}
	return tag.RowsAffected(), nil
}
