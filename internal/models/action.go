// internal/models/action.go
package models

import (
	"fmt"
	"unicode/utf8"
)

// ActionType discriminates the closed set of player actions.
type ActionType string

// Player action variants recorded in the event log.
const (
	ActionChat            ActionType = "chat"
	ActionDiceRoll        ActionType = "dice-roll"
	ActionAddPlayer       ActionType = "add-player"
	ActionRemovePlayer    ActionType = "remove-player"
	ActionSwitchCharacter ActionType = "switch-character"
	ActionDrawCard        ActionType = "draw-card"
	ActionTradeCard       ActionType = "trade-card"
	ActionDropCard        ActionType = "drop-card"
	ActionDiscardCard     ActionType = "discard-card"
	ActionFlipCard        ActionType = "flip-card"
	ActionSetCondition    ActionType = "set-condition"
	ActionRemoveCondition ActionType = "remove-condition"
	ActionStartGame       ActionType = "start-game"
	ActionEndGame         ActionType = "end-game"
	ActionAdjustClues     ActionType = "adjust-clues"
)

// Limits on free-form action payloads.
const (
	MaxChatLength = 1000
	MaxDice       = 16
)

// DieFace is the outcome of a single die. A nil *DieFace means "not yet rolled".
type DieFace string

const (
	DieSuccess       DieFace = "success"
	DieInvestigation DieFace = "investigation"
	DieFailure       DieFace = "failure"
)

// Valid reports whether d is one of the three faces.
func (d DieFace) Valid() bool {
	return d == DieSuccess || d == DieInvestigation || d == DieFailure
}

// Action is a player intent. Only the fields relevant to Type are populated.
type Action struct {
	Type ActionType `json:"type"`

	Message string     `json:"message,omitempty"` // chat
	Dice    []*DieFace `json:"dice,omitempty"`    // dice-roll; nil entries are unresolved

	CharacterID    string `json:"characterId,omitempty"`    // switch-character, draw-card, conditions, adjust-clues
	OldCharacterID string `json:"oldCharacterId,omitempty"` // switch-character
	From           string `json:"from,omitempty"`           // trade-card
	To             string `json:"to,omitempty"`             // trade-card
	CardID         string `json:"cardId,omitempty"`
	Facing         Facing `json:"facing,omitempty"`    // flip-card
	Condition      string `json:"condition,omitempty"` // set-condition, remove-condition
	Delta          int    `json:"delta,omitempty"`     // adjust-clues
}

// Validate checks the action's shape without consulting game state.
func (a *Action) Validate() error {
	switch a.Type {
	case ActionChat:
		if a.Message == "" {
			return fmt.Errorf("chat message is empty")
		}
		if utf8.RuneCountInString(a.Message) > MaxChatLength {
			return fmt.Errorf("chat message exceeds %d characters", MaxChatLength)
		}
	case ActionDiceRoll:
		if len(a.Dice) == 0 {
			return fmt.Errorf("dice roll has no dice")
		}
		if len(a.Dice) > MaxDice {
			return fmt.Errorf("dice roll exceeds %d dice", MaxDice)
		}
		for i, d := range a.Dice {
			if d != nil && !d.Valid() {
				return fmt.Errorf("die %d has unknown face %q", i, *d)
			}
		}
	case ActionAddPlayer, ActionRemovePlayer, ActionStartGame, ActionEndGame:
	case ActionSwitchCharacter:
		if a.CharacterID == "" {
			return fmt.Errorf("characterId is required")
		}
	case ActionDrawCard, ActionDropCard, ActionDiscardCard:
		if a.CardID == "" {
			return fmt.Errorf("cardId is required")
		}
	case ActionTradeCard:
		if a.CardID == "" || a.From == "" || a.To == "" {
			return fmt.Errorf("cardId, from and to are required")
		}
		if a.From == a.To {
			return fmt.Errorf("cannot trade a card to its holder")
		}
	case ActionFlipCard:
		if a.CardID == "" {
			return fmt.Errorf("cardId is required")
		}
		if !a.Facing.Valid() {
			return fmt.Errorf("unknown facing %q", a.Facing)
		}
	case ActionSetCondition, ActionRemoveCondition:
		if a.Condition == "" {
			return fmt.Errorf("condition is required")
		}
	case ActionAdjustClues:
		if a.Delta == 0 {
			return fmt.Errorf("delta must be non-zero")
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}
