// Package protocol defines the JSON messages exchanged over a connection.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
)

// RequestType names a client request.
type RequestType string

const (
	RequestLogin           RequestType = "login"
	RequestLogout          RequestType = "logout"
	RequestCreateGame      RequestType = "create-game"
	RequestJoinGame        RequestType = "join-game"
	RequestLeaveGame       RequestType = "leave-game"
	RequestSubscribeToGame RequestType = "subscribe-to-game"
	RequestAction          RequestType = "action"
	RequestGet             RequestType = "get"
)

// Request is the envelope of every client message. Only the fields relevant
// to Type are populated.
type Request struct {
	Type      RequestType `json:"type"`
	RequestID string      `json:"requestId"`

	Username string `json:"username,omitempty"` // login
	Password string `json:"password,omitempty"` // login
	Token    string `json:"token,omitempty"`    // login

	Name          string   `json:"name,omitempty"`          // create-game
	ContentSetIDs []string `json:"contentSetIds,omitempty"` // create-game

	GameID   string         `json:"gameId,omitempty"`   // join, leave, subscribe, action
	Action   *models.Action `json:"action,omitempty"`   // action
	Resource string         `json:"resource,omitempty"` // get
}

// ErrMissingRequestID marks a message that cannot be answered.
var ErrMissingRequestID = errors.New("protocol: missing requestId")

// DecodeRequest parses a client message. Any error is a protocol violation.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("protocol: decode request: %w", err)
	}
	if req.RequestID == "" {
		return nil, ErrMissingRequestID
	}
	return &req, nil
}

// ResponseType names a server message.
type ResponseType string

const (
	ResponseSuccess    ResponseType = "success"
	ResponseFailure    ResponseType = "failure"
	ResponseLogin      ResponseType = "login"
	ResponseCreateGame ResponseType = "create-game"
	ResponseGet        ResponseType = "get"
	// NotificationGameEvent is pushed to subscribers; it has no requestId.
	NotificationGameEvent ResponseType = "game-event"
)

// Response is the envelope of every server message.
type Response struct {
	Type      ResponseType `json:"type"`
	RequestID string       `json:"requestId,omitempty"`

	Message  string            `json:"message,omitempty"` // failure
	Session  *models.Session   `json:"session,omitempty"` // login
	Token    string            `json:"token,omitempty"`   // login
	Game     *models.Game      `json:"game,omitempty"`    // create-game, game-event
	Resource string            `json:"resource,omitempty"`
	Payload  any               `json:"payload,omitempty"` // get
	Event    *models.GameEvent `json:"event,omitempty"`   // game-event
}

// Success acknowledges a request that has no payload.
func Success(requestID string) *Response {
	return &Response{Type: ResponseSuccess, RequestID: requestID}
}

// Failure answers with the public code of err.
func Failure(requestID string, err error) *Response {
	return &Response{Type: ResponseFailure, RequestID: requestID, Message: string(apperr.PublicCode(err))}
}

// Login answers a successful login with the new session and a token for
// logging in again later.
func Login(requestID string, s models.Session, token string) *Response {
	return &Response{Type: ResponseLogin, RequestID: requestID, Session: &s, Token: token}
}

// CreateGame answers with the freshly created game.
func CreateGame(requestID string, g *models.Game) *Response {
	return &Response{Type: ResponseCreateGame, RequestID: requestID, Game: g}
}

// Get answers a get request with the resolved resource.
func Get(requestID, resource string, payload any) *Response {
	return &Response{Type: ResponseGet, RequestID: requestID, Resource: resource, Payload: payload}
}

// GameEvent is the notification pushed to a game's subscribers after an
// accepted action. It carries no request id.
func GameEvent(ev models.GameEvent, g *models.Game) *Response {
	return &Response{Type: NotificationGameEvent, Event: &ev, Game: g}
}

// Encode marshals a server message.
func (r *Response) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", r.Type, err)
	}
	return data, nil
}
