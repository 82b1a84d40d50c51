// internal/dispatch/handlers.go
package dispatch

import (
	"context"
	"errors"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
	"github.com/cventus/azif/internal/protocol"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SessionPayload is the body of a get session response.
type SessionPayload struct {
	Session models.Session `json:"session"`
	User    *models.User   `json:"user"`
}

// outcome is what a handled request sends: a direct response and, for
// accepted game changes, a notification to the game's subscribers.
type outcome struct {
	response *protocol.Response
	notify   *protocol.Response
	gameID   string
	// after runs once everything has been sent.
	after func()
}

func (d *Dispatcher) handleMessage(ctx context.Context, connID string, data []byte) {
	req, err := protocol.DecodeRequest(data)
	if err != nil {
		d.log.WithError(err).WithField("connection_id", connID).Warn("protocol violation, disconnecting")
		if err := d.Transport.Disconnect(ctx, connID); err != nil {
			d.log.WithError(err).WithField("connection_id", connID).Warn("disconnect failed")
		}
		return
	}

	log := d.log.WithFields(logrus.Fields{
		"connection_id": connID,
		"request_id":    req.RequestID,
		"type":          req.Type,
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("recovered panic while handling request")
			d.send(ctx, log, connID, protocol.Failure(req.RequestID, apperr.ErrInternal))
		}
	}()

	log.Debug("handling request")
	out, err := d.route(ctx, connID, req)
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeInternal, apperr.CodeSystemInconsistency:
			log.WithError(err).Error("request failed")
		default:
			log.WithError(err).Debug("request rejected")
		}
		d.send(ctx, log, connID, protocol.Failure(req.RequestID, err))
		return
	}
	d.deliver(ctx, log, connID, out)
}

// deliver sends the response and the notification concurrently. Each
// subscriber gets the notification at most once.
func (d *Dispatcher) deliver(ctx context.Context, log logrus.FieldLogger, connID string, out *outcome) {
	var eg errgroup.Group
	eg.Go(func() error {
		d.send(ctx, log, connID, out.response)
		return nil
	})
	if out.notify != nil {
		data, err := out.notify.Encode()
		if err != nil {
			log.WithError(err).Error("cannot encode notification")
		} else {
			seen := make(map[string]struct{})
			for _, to := range d.Sessions.GameConnections(out.gameID) {
				if _, dup := seen[to]; dup {
					continue
				}
				seen[to] = struct{}{}
				eg.Go(func() error {
					if err := d.Transport.Send(ctx, to, data); err != nil {
						log.WithError(err).WithField("recipient", to).Warn("notification not delivered")
					}
					return nil
				})
			}
		}
	}
	eg.Wait()
	if out.after != nil {
		out.after()
	}
}

func (d *Dispatcher) send(ctx context.Context, log logrus.FieldLogger, connID string, resp *protocol.Response) {
	data, err := resp.Encode()
	if err != nil {
		log.WithError(err).Error("cannot encode response")
		data, _ = protocol.Failure(resp.RequestID, apperr.ErrInternal).Encode()
	}
	if err := d.Transport.Send(ctx, connID, data); err != nil {
		log.WithError(err).Warn("response not delivered")
	}
}

func (d *Dispatcher) route(ctx context.Context, connID string, req *protocol.Request) (*outcome, error) {
	if req.Type == protocol.RequestLogin {
		return d.login(ctx, connID, req)
	}

	sess, ok := d.Sessions.Get(connID)
	if !ok {
		return nil, apperr.Unauthenticatedf("%s requires login", req.Type)
	}

	switch req.Type {
	case protocol.RequestLogout:
		d.Sessions.Remove(connID)
		return reply(protocol.Success(req.RequestID)), nil
	case protocol.RequestCreateGame:
		g, err := d.Processor.CreateGame(ctx, req.Name, req.ContentSetIDs)
		if err != nil {
			return nil, err
		}
		return reply(protocol.CreateGame(req.RequestID, g)), nil
	case protocol.RequestJoinGame:
		return d.act(ctx, sess, req, req.GameID, models.Action{Type: models.ActionAddPlayer})
	case protocol.RequestLeaveGame:
		return d.act(ctx, sess, req, req.GameID, models.Action{Type: models.ActionRemovePlayer})
	case protocol.RequestSubscribeToGame:
		return d.subscribe(ctx, connID, sess, req)
	case protocol.RequestAction:
		if req.Action == nil {
			return nil, apperr.Invalidf("action request without action")
		}
		return d.act(ctx, sess, req, req.GameID, *req.Action)
	case protocol.RequestGet:
		return d.get(ctx, sess, req)
	}
	return nil, apperr.Invalidf("unknown request type %q", req.Type)
}

func reply(resp *protocol.Response) *outcome {
	return &outcome{response: resp}
}

func (d *Dispatcher) login(ctx context.Context, connID string, req *protocol.Request) (*outcome, error) {
	var user *models.User
	var err error
	if req.Token != "" {
		user, err = d.userFromToken(ctx, req.Token)
	} else {
		user, err = d.Users.Authenticate(ctx, req.Username, req.Password)
	}
	if err != nil {
		return nil, err
	}

	sess, err := d.Sessions.Create(connID, user.ID)
	if err != nil {
		return nil, err
	}
	var token string
	if d.Tokens != nil {
		if token, err = d.Tokens.Issue(user.ID); err != nil {
			d.Sessions.Remove(connID)
			return nil, err
		}
	}
	d.log.WithFields(logrus.Fields{"connection_id": connID, "user_id": user.ID}).Info("user logged in")
	return reply(protocol.Login(req.RequestID, sess, token)), nil
}

func (d *Dispatcher) userFromToken(ctx context.Context, token string) (*models.User, error) {
	if d.Tokens == nil {
		return nil, apperr.Unauthenticatedf("token login is disabled")
	}
	userID, err := d.Tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := d.Users.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthenticatedf("token user %s no longer exists", userID)
	}
	return user, err
}

// act runs a player action and notifies the game's subscribers.
func (d *Dispatcher) act(ctx context.Context, sess models.Session, req *protocol.Request, gameID string, action models.Action) (*outcome, error) {
	if gameID == "" {
		return nil, apperr.Invalidf("gameId is required")
	}
	res, err := d.Processor.Process(ctx, sess.UserID, gameID, action)
	if err != nil {
		return nil, err
	}
	out := &outcome{
		response: protocol.Success(req.RequestID),
		notify:   protocol.GameEvent(res.Event, res.Game),
		gameID:   gameID,
	}
	if action.Type == models.ActionRemovePlayer {
		// The leaver still gets its own event; its connections stop watching after.
		out.after = func() { d.Sessions.UnsubscribeUser(sess.UserID, gameID) }
	}
	return out, nil
}

func (d *Dispatcher) subscribe(ctx context.Context, connID string, sess models.Session, req *protocol.Request) (*outcome, error) {
	if req.GameID == "" {
		return nil, apperr.Invalidf("gameId is required")
	}
	g, err := d.Games.GetGame(ctx, req.GameID)
	if err != nil {
		return nil, err
	}
	if !g.IsPlayer(sess.UserID) {
		return nil, apperr.Forbiddenf("user %s is not a player of game %s", sess.UserID, g.ID)
	}
	if _, err := d.Sessions.Subscribe(connID, g.ID); err != nil {
		return nil, err
	}
	return reply(protocol.Success(req.RequestID)), nil
}

func (d *Dispatcher) get(ctx context.Context, sess models.Session, req *protocol.Request) (*outcome, error) {
	res, err := protocol.ParseResource(req.Resource)
	if err != nil {
		return nil, err
	}

	var payload any
	switch res.Kind {
	case protocol.ResourceSession:
		user, err := d.Users.Get(ctx, sess.UserID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Wrap(apperr.CodeSystemInconsistency, "session refers to a user the directory does not have", err)
		}
		if err != nil {
			return nil, err
		}
		payload = SessionPayload{Session: sess, User: user}
	case protocol.ResourceGame:
		payload, err = d.Games.GetGame(ctx, res.ID)
	case protocol.ResourceGameEvents:
		payload, err = d.Processor.Events(ctx, sess.UserID, res.ID, res.Range)
	case protocol.ResourceContents:
		payload, err = d.Contents.List(ctx)
	case protocol.ResourceContentSet:
		payload, err = d.Contents.Get(ctx, res.ID)
	}
	if err != nil {
		return nil, err
	}
	return reply(protocol.Get(req.RequestID, req.Resource, payload)), nil
}
