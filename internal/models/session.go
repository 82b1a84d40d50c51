// internal/models/session.go
package models

// Session binds a transport connection to an authenticated user and, optionally,
// to the one game the connection is watching.
type Session struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	GameID       string `json:"gameId,omitempty"` // Empty when not subscribed.
}

// User is an account known to the user directory.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`
	GameIDs      []string `json:"gameIds"`
}

// CardKindCondition marks catalog cards that represent a condition.
const CardKindCondition = "condition"

// Card is a catalog entry.
type Card struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Condition string `json:"condition,omitempty"` // Set for condition cards.
}

// ContentSet is a named collection of cards a game can be built from.
type ContentSet struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cards []Card `json:"cards"`
}

// ContentPreview is the listing form of a content set.
type ContentPreview struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
