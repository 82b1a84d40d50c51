// Package store owns the canonical game records. Every mutation is gated by the
// clock value the caller observed; a stale clock yields an apperr conflict.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxMembershipRetries bounds how often AddPlayer and RemovePlayer re-read the
// game after losing a clock race inside the membership transaction.
const MaxMembershipRetries = 2

// ErrTxCancelled is returned by Backend.CommitMembership when the transaction
// lost a race against another writer and may be retried with fresh state.
var ErrTxCancelled = errors.New("store: transaction cancelled")

// MembershipChange describes the user-side half of a join or leave.
type MembershipChange struct {
	UserID string
	GameID string
	Join   bool // false means leave
}

// Backend persists game records. Implementations compare-and-swap on the
// stored clock; they never evaluate game rules.
type Backend interface {
	// Insert stores a brand-new record.
	Insert(ctx context.Context, g *models.Game) error
	// Load returns the stored record or an apperr not-found error.
	Load(ctx context.Context, id string) (*models.Game, error)
	// Commit replaces the record if its stored clock still equals expected.
	Commit(ctx context.Context, next *models.Game, expected int64) error
	// CommitMembership replaces the record and applies change atomically. A
	// clock mismatch is reported as ErrTxCancelled.
	CommitMembership(ctx context.Context, next *models.Game, expected int64, change MembershipChange) error
}

// GameStore is the set of conditional game operations.
type GameStore interface {
	CreateGame(ctx context.Context, name string, contentSetIDs []string) (*models.Game, error)
	GetGame(ctx context.Context, id string) (*models.Game, error)
	Tick(ctx context.Context, id string, clock int64) (*models.Game, error)
	StartGame(ctx context.Context, id string, clock int64) (*models.Game, error)
	EndGame(ctx context.Context, id string, clock int64) (*models.Game, error)
	AddPlayer(ctx context.Context, id, userID string) (*models.Game, error)
	RemovePlayer(ctx context.Context, id, userID string) (*models.Game, error)
	SwitchCharacter(ctx context.Context, id string, clock int64, userID, newCharacterID, oldCharacterID string) (*models.Game, error)
	AddCard(ctx context.Context, id string, clock int64, characterID, cardID string) (*models.Game, error)
	MoveCard(ctx context.Context, id string, clock int64, from, to, cardID string) (*models.Game, error)
	RemoveCard(ctx context.Context, id string, clock int64, cardID string) (*models.Game, error)
	AddClues(ctx context.Context, id string, clock int64, characterID string, delta int) (*models.Game, error)
	SetCardFacing(ctx context.Context, id string, clock int64, cardID string, facing models.Facing) (*models.Game, error)
}

var _ GameStore = (*Store)(nil)

// Store applies game rules on top of a Backend.
type Store struct {
	backend Backend
	log     logrus.FieldLogger
	now     func() time.Time
	newID   func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how game ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		log:     logrus.StandardLogger(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGame stores a new game in the starting phase at clock 0.
func (s *Store) CreateGame(ctx context.Context, name string, contentSetIDs []string) (*models.Game, error) {
	g := models.NewGame(s.newID(), name, contentSetIDs, s.now().UTC())
	if err := s.backend.Insert(ctx, g); err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// GetGame returns the current record.
func (s *Store) GetGame(ctx context.Context, id string) (*models.Game, error) {
	return s.backend.Load(ctx, id)
}

// Tick advances the clock without changing anything else.
func (s *Store) Tick(ctx context.Context, id string, clock int64) (*models.Game, error) {
	return s.apply(ctx, id, clock, tick())
}

// StartGame moves a starting game to ongoing.
func (s *Store) StartGame(ctx context.Context, id string, clock int64) (*models.Game, error) {
	return s.apply(ctx, id, clock, startGame())
}

// EndGame moves a game to over from any other phase.
func (s *Store) EndGame(ctx context.Context, id string, clock int64) (*models.Game, error) {
	return s.apply(ctx, id, clock, endGame())
}

// SwitchCharacter moves userID from oldCharacterID ("" for none) to newCharacterID.
func (s *Store) SwitchCharacter(ctx context.Context, id string, clock int64, userID, newCharacterID, oldCharacterID string) (*models.Game, error) {
	return s.apply(ctx, id, clock, switchCharacter(userID, newCharacterID, oldCharacterID))
}

// AddCard gives an unheld card to characterID.
func (s *Store) AddCard(ctx context.Context, id string, clock int64, characterID, cardID string) (*models.Game, error) {
	return s.apply(ctx, id, clock, addCard(characterID, cardID))
}

// MoveCard hands cardID from one character to another. The card must be held
// by from, and from and to must differ.
func (s *Store) MoveCard(ctx context.Context, id string, clock int64, from, to, cardID string) (*models.Game, error) {
	return s.apply(ctx, id, clock, moveCard(from, to, cardID))
}

// RemoveCard takes cardID from whoever holds it and turns it face up.
func (s *Store) RemoveCard(ctx context.Context, id string, clock int64, cardID string) (*models.Game, error) {
	return s.apply(ctx, id, clock, removeCard(cardID))
}

// AddClues adds delta, which may be negative, to the character's clues.
func (s *Store) AddClues(ctx context.Context, id string, clock int64, characterID string, delta int) (*models.Game, error) {
	return s.apply(ctx, id, clock, addClues(characterID, delta))
}

// SetCardFacing flips cardID. Setting the facing it already has is a conflict.
func (s *Store) SetCardFacing(ctx context.Context, id string, clock int64, cardID string, facing models.Facing) (*models.Game, error) {
	return s.apply(ctx, id, clock, setCardFacing(cardID, facing))
}

// AddPlayer joins userID to the game and records the membership on the user in
// the same transaction.
func (s *Store) AddPlayer(ctx context.Context, id, userID string) (*models.Game, error) {
	return s.applyMembership(ctx, id, addPlayer(userID), MembershipChange{UserID: userID, GameID: id, Join: true})
}

// RemovePlayer is the inverse of AddPlayer.
func (s *Store) RemovePlayer(ctx context.Context, id, userID string) (*models.Game, error) {
	return s.applyMembership(ctx, id, removePlayer(userID), MembershipChange{UserID: userID, GameID: id, Join: false})
}

// apply runs mut against the record observed at clock and commits clock+1.
func (s *Store) apply(ctx context.Context, id string, clock int64, mut mutation) (*models.Game, error) {
	current, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Clock != clock {
		return nil, apperr.Conflictf("game %s is at clock %d, not %d", id, current.Clock, clock)
	}
	next := current.Clone()
	if err := mut(next); err != nil {
		return nil, err
	}
	next.Clock = clock + 1
	if err := s.backend.Commit(ctx, next, clock); err != nil {
		return nil, err
	}
	return next, nil
}

// applyMembership reads the clock itself, so a concurrent writer may move it
// before the transaction commits. Such races are retried; rule violations are not.
func (s *Store) applyMembership(ctx context.Context, id string, mut mutation, change MembershipChange) (*models.Game, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.backend.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		if err := mut(next); err != nil {
			return nil, err
		}
		next.Clock = current.Clock + 1

		err = s.backend.CommitMembership(ctx, next, current.Clock, change)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrTxCancelled) {
			return nil, err
		}
		if attempt >= MaxMembershipRetries {
			return nil, apperr.Wrap(apperr.CodeConflict, "membership transaction kept losing the clock race", err)
		}
		s.log.WithFields(logrus.Fields{
			"game_id": id,
			"user_id": change.UserID,
			"attempt": attempt + 1,
		}).Debug("membership transaction cancelled, retrying")
	}
}
