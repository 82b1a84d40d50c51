// internal/store/mutations.go
package store

import (
	"slices"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
)

// mutation validates its business preconditions against a cloned record and,
// if they hold, edits the clone in place. It never touches the clock.
type mutation func(g *models.Game) error

func tick() mutation {
	return func(*models.Game) error { return nil }
}

func startGame() mutation {
	return func(g *models.Game) error {
		if g.Phase != models.PhaseStarting {
			return apperr.Conflictf("game %s is %s, not starting", g.ID, g.Phase)
		}
		g.Phase = models.PhaseOngoing
		return nil
	}
}

func endGame() mutation {
	return func(g *models.Game) error {
		if g.Phase == models.PhaseOver {
			return apperr.Conflictf("game %s is already over", g.ID)
		}
		g.Phase = models.PhaseOver
		return nil
	}
}

func addPlayer(userID string) mutation {
	return func(g *models.Game) error {
		if g.Phase == models.PhaseOver {
			return apperr.Conflictf("game %s is over", g.ID)
		}
		if g.IsPlayer(userID) {
			return apperr.Conflictf("user %s already plays in game %s", userID, g.ID)
		}
		if len(g.Players) >= models.MaxPlayers {
			return apperr.Conflictf("game %s is full", g.ID)
		}
		g.Players[userID] = models.Player{}
		return nil
	}
}

func removePlayer(userID string) mutation {
	return func(g *models.Game) error {
		p, ok := g.Players[userID]
		if !ok {
			return apperr.Conflictf("user %s does not play in game %s", userID, g.ID)
		}
		delete(g.Players, userID)
		// Before the game starts a character holds nothing worth keeping.
		if g.Phase == models.PhaseStarting && p.CharacterID != "" {
			delete(g.Characters, p.CharacterID)
		}
		return nil
	}
}

// switchCharacter moves userID from oldID (empty when the player has no
// character yet) to newID.
func switchCharacter(userID, newID, oldID string) mutation {
	return func(g *models.Game) error {
		if g.Phase != models.PhaseStarting {
			return apperr.Conflictf("characters can only be chosen before game %s starts", g.ID)
		}
		p, ok := g.Players[userID]
		if !ok {
			return apperr.Conflictf("user %s does not play in game %s", userID, g.ID)
		}
		if oldID == "" && p.CharacterID != "" {
			return apperr.Conflictf("user %s already plays %s and must name it to switch", userID, p.CharacterID)
		}
		if p.CharacterID != oldID {
			return apperr.Conflictf("user %s holds %q, not %q", userID, p.CharacterID, oldID)
		}
		if holder, claimed := g.ClaimedBy(newID); claimed {
			return apperr.Conflictf("character %s is already claimed by %s", newID, holder)
		}

		g.Players[userID] = models.Player{CharacterID: newID}
		if _, exists := g.Characters[newID]; !exists {
			g.Characters[newID] = models.Character{CardIDs: []string{}, Clues: models.DefaultClues}
		}
		if oldID != "" {
			delete(g.Characters, oldID)
		}
		return nil
	}
}

func addCard(characterID, cardID string) mutation {
	return func(g *models.Game) error {
		if err := requireOngoing(g); err != nil {
			return err
		}
		if holder, held := g.HolderOf(cardID); held {
			return apperr.Conflictf("card %s is already held by %s", cardID, holder)
		}
		ch, ok := g.Characters[characterID]
		if !ok {
			return apperr.NotFoundf("character %s is not in game %s", characterID, g.ID)
		}
		ch.CardIDs = append(ch.CardIDs, cardID)
		g.Characters[characterID] = ch
		return nil
	}
}

func moveCard(from, to, cardID string) mutation {
	return func(g *models.Game) error {
		if err := requireOngoing(g); err != nil {
			return err
		}
		if from == to {
			return apperr.Invalidf("card %s cannot move from %s to itself", cardID, from)
		}
		if holder, held := g.HolderOf(cardID); !held || holder != from {
			return apperr.Conflictf("card %s is not held by %s", cardID, from)
		}
		if _, ok := g.Characters[to]; !ok {
			return apperr.NotFoundf("character %s is not in game %s", to, g.ID)
		}
		src := g.Characters[from]
		src.CardIDs = slices.DeleteFunc(src.CardIDs, func(id string) bool { return id == cardID })
		g.Characters[from] = src
		dst := g.Characters[to]
		dst.CardIDs = append(dst.CardIDs, cardID)
		g.Characters[to] = dst
		return nil
	}
}

func removeCard(cardID string) mutation {
	return func(g *models.Game) error {
		if err := requireOngoing(g); err != nil {
			return err
		}
		holder, held := g.HolderOf(cardID)
		if !held {
			return apperr.Conflictf("card %s is not held by anyone", cardID)
		}
		ch := g.Characters[holder]
		ch.CardIDs = slices.DeleteFunc(ch.CardIDs, func(id string) bool { return id == cardID })
		g.Characters[holder] = ch
		g.SetFacing(cardID, models.FaceUp)
		return nil
	}
}

func addClues(characterID string, delta int) mutation {
	return func(g *models.Game) error {
		if err := requireOngoing(g); err != nil {
			return err
		}
		ch, ok := g.Characters[characterID]
		if !ok {
			return apperr.NotFoundf("character %s is not in game %s", characterID, g.ID)
		}
		ch.Clues += delta
		g.Characters[characterID] = ch
		return nil
	}
}

func setCardFacing(cardID string, facing models.Facing) mutation {
	return func(g *models.Game) error {
		if err := requireOngoing(g); err != nil {
			return err
		}
		if !facing.Valid() {
			return apperr.Invalidf("unknown facing %q", facing)
		}
		if g.Facing(cardID) == facing {
			return apperr.Conflictf("card %s is already %s", cardID, facing)
		}
		g.SetFacing(cardID, facing)
		return nil
	}
}

func requireOngoing(g *models.Game) error {
	if g.Phase != models.PhaseOngoing {
		return apperr.Conflictf("game %s is %s, not ongoing", g.ID, g.Phase)
	}
	return nil
}
