// internal/models/event.go
package models

import "time"

// GameEvent is an immutable record of one accepted action, keyed by (GameID, Clock).
type GameEvent struct {
	GameID   string    `json:"gameId"`
	Clock    int64     `json:"clock"`
	PlayerID string    `json:"playerId"`
	Epoch    time.Time `json:"epoch"`
	Action   Action    `json:"action"`
}
