// internal/game/processor.go
package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/catalog"
	"github.com/cventus/azif/internal/eventlog"
	"github.com/cventus/azif/internal/models"
	"github.com/cventus/azif/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MaxNameLength bounds game names, in runes.
const MaxNameLength = 100

// conditionRaceRetries is how many lost AddCard races set-condition tolerates
// beyond one attempt per candidate.
const conditionRaceRetries = 2

// Result is what an accepted action produced.
type Result struct {
	Event models.GameEvent
	Game  *models.Game
}

// Processor validates player actions, applies them through the game store and
// records the resulting events.
type Processor struct {
	games    store.GameStore
	events   eventlog.Log
	contents catalog.Catalog
	now      func() time.Time
	intn     func(n int) int
	log      logrus.FieldLogger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Processor) { p.log = l }
}

// WithClock overrides the source of event epochs.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithRandSource makes dice rolls draw from src. Rolls are serialized, so src
// need not be safe for concurrent use.
func WithRandSource(src rand.Source) Option {
	r := rand.New(src)
	var mu sync.Mutex
	return func(p *Processor) {
		p.intn = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.IntN(n)
		}
	}
}

// NewProcessor creates a processor.
func NewProcessor(games store.GameStore, events eventlog.Log, contents catalog.Catalog, opts ...Option) *Processor {
	p := &Processor{
		games:    games,
		events:   events,
		contents: contents,
		now:      time.Now,
		intn:     rand.IntN,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithField("component", "processor")
	return p
}

// CreateGame validates the name and content sets and stores a new game.
func (p *Processor) CreateGame(ctx context.Context, name string, contentSetIDs []string) (*models.Game, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalidf("game name must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, apperr.Invalidf("game name exceeds %d characters", MaxNameLength)
	}
	for _, id := range contentSetIDs {
		if _, err := p.contents.Get(ctx, id); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Invalidf("unknown content set %s", id)
			}
			return nil, err
		}
	}
	return p.games.CreateGame(ctx, name, contentSetIDs)
}

// Events lists a game's log. Only players may read it.
func (p *Processor) Events(ctx context.Context, userID, gameID string, rng eventlog.Range) ([]models.GameEvent, error) {
	g, err := p.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.IsPlayer(userID) {
		return nil, apperr.Forbiddenf("user %s is not a player of game %s", userID, gameID)
	}
	return p.events.List(ctx, gameID, rng)
}

// Process applies action on behalf of userID. A store conflict aborts the
// action without writing an event.
func (p *Processor) Process(ctx context.Context, userID, gameID string, action models.Action) (*Result, error) {
	epoch := p.now()

	if err := action.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalid, err.Error(), err)
	}

	current, err := p.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if action.Type != models.ActionAddPlayer && !current.IsPlayer(userID) {
		return nil, apperr.Forbiddenf("user %s is not a player of game %s", userID, gameID)
	}

	action.Dice = p.resolveDice(action.Dice)

	next, err := p.apply(ctx, userID, current, &action)
	if err != nil {
		return nil, err
	}

	ev := models.GameEvent{
		GameID:   gameID,
		Clock:    next.Clock,
		PlayerID: userID,
		Epoch:    epoch,
		Action:   action,
	}
	if _, err := p.events.Write(ctx, ev); err != nil {
		// The mutation is durable, so the log now has a hole at this clock.
		p.log.WithError(err).WithFields(logrus.Fields{
			"game_id": gameID,
			"user_id": userID,
			"clock":   next.Clock,
			"action":  action.Type,
		}).Error("event write failed after state change; clock gap in event log")
		return nil, apperr.Wrap(apperr.CodeInternal, "record game event", err)
	}

	p.log.WithFields(logrus.Fields{
		"game_id": gameID,
		"user_id": userID,
		"clock":   next.Clock,
		"action":  action.Type,
	}).Debug("action accepted")
	return &Result{Event: ev, Game: next}, nil
}

// apply routes the action to the store. It may fill in fields of action that
// were resolved from game state so the event records what actually happened.
func (p *Processor) apply(ctx context.Context, userID string, g *models.Game, action *models.Action) (*models.Game, error) {
	switch action.Type {
	case models.ActionChat, models.ActionDiceRoll:
		return p.games.Tick(ctx, g.ID, g.Clock)

	case models.ActionAddPlayer:
		return p.games.AddPlayer(ctx, g.ID, userID)

	case models.ActionRemovePlayer:
		return p.games.RemovePlayer(ctx, g.ID, userID)

	case models.ActionSwitchCharacter:
		return p.games.SwitchCharacter(ctx, g.ID, g.Clock, userID, action.CharacterID, action.OldCharacterID)

	case models.ActionStartGame:
		return p.games.StartGame(ctx, g.ID, g.Clock)

	case models.ActionEndGame:
		return p.games.EndGame(ctx, g.ID, g.Clock)

	case models.ActionDrawCard:
		charID, err := characterFor(g, userID, action.CharacterID)
		if err != nil {
			return nil, err
		}
		action.CharacterID = charID
		return p.games.AddCard(ctx, g.ID, g.Clock, charID, action.CardID)

	case models.ActionTradeCard:
		return p.games.MoveCard(ctx, g.ID, g.Clock, action.From, action.To, action.CardID)

	case models.ActionDropCard, models.ActionDiscardCard:
		return p.games.RemoveCard(ctx, g.ID, g.Clock, action.CardID)

	case models.ActionFlipCard:
		return p.games.SetCardFacing(ctx, g.ID, g.Clock, action.CardID, action.Facing)

	case models.ActionAdjustClues:
		charID, err := characterFor(g, userID, action.CharacterID)
		if err != nil {
			return nil, err
		}
		action.CharacterID = charID
		return p.games.AddClues(ctx, g.ID, g.Clock, charID, action.Delta)

	case models.ActionSetCondition:
		return p.setCondition(ctx, userID, g, action)

	case models.ActionRemoveCondition:
		return nil, apperr.New(apperr.CodeNotImplemented, "remove-condition is not supported")
	}
	return nil, apperr.Invalidf("unknown action type %q", action.Type)
}

// characterFor picks the explicitly named character or, failing that, the
// actor's own.
func characterFor(g *models.Game, userID, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c := g.CharacterOf(userID); c != "" {
		return c, nil
	}
	return "", apperr.Invalidf("user %s has no character in game %s", userID, g.ID)
}

// setCondition hands the character the first free condition card of the
// requested kind. AddCard's exists-check arbitrates races; on a conflict the
// game is re-read and the next free candidate tried.
func (p *Processor) setCondition(ctx context.Context, userID string, g *models.Game, action *models.Action) (*models.Game, error) {
	charID, err := characterFor(g, userID, action.CharacterID)
	if err != nil {
		return nil, err
	}
	action.CharacterID = charID

	candidates, err := p.conditionCards(ctx, g.ContentSetIDs, action.Condition)
	if err != nil {
		return nil, err
	}

	maxAttempts := len(candidates) + conditionRaceRetries
	for attempt := 0; ; attempt++ {
		held := g.HeldCards()
		i := slices.IndexFunc(candidates, func(id string) bool {
			_, taken := held[id]
			return !taken
		})
		if i < 0 {
			return nil, apperr.Conflictf("no %s condition card left in game %s", action.Condition, g.ID)
		}
		cardID := candidates[i]

		next, err := p.games.AddCard(ctx, g.ID, g.Clock, charID, cardID)
		if err == nil {
			action.CardID = cardID
			return next, nil
		}
		if !errors.Is(err, apperr.ErrConflict) || attempt+1 >= maxAttempts {
			return nil, err
		}
		p.log.WithFields(logrus.Fields{
			"game_id": g.ID,
			"card_id": cardID,
			"attempt": attempt + 1,
		}).Debug("condition card lost a race, trying next candidate")

		if g, err = p.games.GetGame(ctx, g.ID); err != nil {
			return nil, err
		}
	}
}

// conditionCards loads the referenced content sets concurrently and returns
// the ids of matching condition cards, sorted and de-duplicated.
func (p *Processor) conditionCards(ctx context.Context, setIDs []string, condition string) ([]string, error) {
	sets := make([]*models.ContentSet, len(setIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, id := range setIDs {
		eg.Go(func() error {
			s, err := p.contents.Get(egCtx, id)
			if err != nil {
				return err
			}
			sets[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var ids []string
	for _, s := range sets {
		for _, c := range s.Cards {
			if c.Kind == models.CardKindCondition && c.Condition == condition {
				ids = append(ids, c.ID)
			}
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}
