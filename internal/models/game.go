// internal/models/game.go
package models

import (
	"slices"
	"time"
)

// MaxPlayers bounds the number of players that may join a single game.
const MaxPlayers = 5

// DefaultClues is the clue count a character starts with when first claimed.
const DefaultClues = 3

// Phase is the lifecycle stage of a game. Transitions only move forward:
// starting -> ongoing -> over.
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseOngoing  Phase = "ongoing"
	PhaseOver     Phase = "over"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseStarting, PhaseOngoing, PhaseOver:
		return true
	}
	return false
}

// Facing is the requested orientation of a card.
type Facing string

const (
	FaceUp   Facing = "face-up"
	FaceDown Facing = "face-down"
)

// Valid reports whether f is one of the known facings.
func (f Facing) Valid() bool {
	return f == FaceUp || f == FaceDown
}

// Player is a user's membership record inside a game.
type Player struct {
	CharacterID string `json:"characterId,omitempty"` // Empty until a character is claimed.
}

// Character holds the cards and clues of a claimed investigator.
type Character struct {
	CardIDs []string `json:"cardIds"`
	Clues   int      `json:"clues"`
}

// Game is the canonical mutable game record. Clock doubles as the optimistic
// concurrency token and the event sequence key.
type Game struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Phase          Phase                `json:"phase"`
	ContentSetIDs  []string             `json:"contentSetIds"`
	Clock          int64                `json:"clock"`
	CreatedAt      time.Time            `json:"createdAt"`
	Players        map[string]Player    `json:"players"`
	Characters     map[string]Character `json:"characters"`
	FlippedCardIDs []string             `json:"flippedCardIds"`
}

// NewGame returns a fresh record in the starting phase at clock zero.
func NewGame(id, name string, contentSetIDs []string, createdAt time.Time) *Game {
	ids := slices.Clone(contentSetIDs)
	if ids == nil {
		ids = []string{}
	}
	return &Game{
		ID:             id,
		Name:           name,
		Phase:          PhaseStarting,
		ContentSetIDs:  ids,
		Clock:          0,
		CreatedAt:      createdAt,
		Players:        make(map[string]Player),
		Characters:     make(map[string]Character),
		FlippedCardIDs: []string{},
	}
}

// Clone returns a deep copy so that callers can mutate it freely.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.ContentSetIDs = slices.Clone(g.ContentSetIDs)
	if c.ContentSetIDs == nil {
		c.ContentSetIDs = []string{}
	}
	c.FlippedCardIDs = slices.Clone(g.FlippedCardIDs)
	if c.FlippedCardIDs == nil {
		c.FlippedCardIDs = []string{}
	}
	c.Players = make(map[string]Player, len(g.Players))
	for id, p := range g.Players {
		c.Players[id] = p
	}
	c.Characters = make(map[string]Character, len(g.Characters))
	for id, ch := range g.Characters {
		ch.CardIDs = slices.Clone(ch.CardIDs)
		if ch.CardIDs == nil {
			ch.CardIDs = []string{}
		}
		c.Characters[id] = ch
	}
	return &c
}

// IsPlayer reports whether userID has joined the game.
func (g *Game) IsPlayer(userID string) bool {
	_, ok := g.Players[userID]
	return ok
}

// CharacterOf returns the character claimed by userID, or "" if none.
func (g *Game) CharacterOf(userID string) string {
	return g.Players[userID].CharacterID
}

// ClaimedBy returns the user holding characterID, if any.
func (g *Game) ClaimedBy(characterID string) (string, bool) {
	for userID, p := range g.Players {
		if p.CharacterID == characterID && characterID != "" {
			return userID, true
		}
	}
	return "", false
}

// HolderOf returns the character currently holding cardID, if any.
func (g *Game) HolderOf(cardID string) (string, bool) {
	for charID, ch := range g.Characters {
		if slices.Contains(ch.CardIDs, cardID) {
			return charID, true
		}
	}
	return "", false
}

// HeldCards returns the set of card ids held by any character.
func (g *Game) HeldCards() map[string]struct{} {
	held := make(map[string]struct{})
	for _, ch := range g.Characters {
		for _, id := range ch.CardIDs {
			held[id] = struct{}{}
		}
	}
	return held
}

// Facing returns the current facing of cardID.
func (g *Game) Facing(cardID string) Facing {
	if _, found := slices.BinarySearch(g.FlippedCardIDs, cardID); found {
		return FaceDown
	}
	return FaceUp
}

// SetFacing records the facing of cardID, keeping FlippedCardIDs sorted.
func (g *Game) SetFacing(cardID string, f Facing) {
	i, found := slices.BinarySearch(g.FlippedCardIDs, cardID)
	switch {
	case f == FaceDown && !found:
		g.FlippedCardIDs = slices.Insert(g.FlippedCardIDs, i, cardID)
	case f == FaceUp && found:
		g.FlippedCardIDs = slices.Delete(g.FlippedCardIDs, i, i+1)
	}
}
