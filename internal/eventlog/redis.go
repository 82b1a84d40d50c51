// internal/eventlog/redis.go
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis stores each event under its own key with a TTL and indexes the clocks
// of a game in a sorted set. The index outlives individual events, so readers
// skip members whose event has already expired.
type Redis struct {
	rdb       redis.UniversalClient
	retention time.Duration
	prefix    string
}

var _ Log = (*Redis)(nil)

// NewRedis creates a log over rdb. A zero retention uses DefaultRetention.
func NewRedis(rdb redis.UniversalClient, retention time.Duration, prefix string) *Redis {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Redis{rdb: rdb, retention: retention, prefix: prefix}
}

// The game id is wrapped in a hash tag so a game's keys share a cluster slot.
func (r *Redis) eventKey(gameID string, clock int64) string {
	return fmt.Sprintf("%sevent:{%s}:%d", r.prefix, gameID, clock)
}

func (r *Redis) indexKey(gameID string) string {
	return fmt.Sprintf("%sevents:{%s}", r.prefix, gameID)
}

func (r *Redis) Write(ctx context.Context, ev models.GameEvent) (models.GameEvent, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return models.GameEvent{}, fmt.Errorf("marshal event %s@%d: %w", ev.GameID, ev.Clock, err)
	}

	created, err := r.rdb.SetNX(ctx, r.eventKey(ev.GameID, ev.Clock), data, r.retention).Result()
	if err != nil {
		return models.GameEvent{}, fmt.Errorf("write event %s@%d: %w", ev.GameID, ev.Clock, err)
	}
	if !created {
		return models.GameEvent{}, apperr.Conflictf("event %s@%d already written", ev.GameID, ev.Clock)
	}

	idx := r.indexKey(ev.GameID)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, idx, redis.Z{Score: float64(ev.Clock), Member: strconv.FormatInt(ev.Clock, 10)})
		pipe.Expire(ctx, idx, r.retention)
		return nil
	})
	if err != nil {
		return models.GameEvent{}, fmt.Errorf("index event %s@%d: %w", ev.GameID, ev.Clock, err)
	}
	return ev, nil
}

func (r *Redis) Get(ctx context.Context, gameID string, clock int64) (models.GameEvent, error) {
	data, err := r.rdb.Get(ctx, r.eventKey(gameID, clock)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.GameEvent{}, apperr.NotFoundf("event %s@%d not found", gameID, clock)
	}
	if err != nil {
		return models.GameEvent{}, fmt.Errorf("get event %s@%d: %w", gameID, clock, err)
	}
	var ev models.GameEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.GameEvent{}, fmt.Errorf("decode event %s@%d: %w", gameID, clock, err)
	}
	return ev, nil
}

func (r *Redis) List(ctx context.Context, gameID string, rng Range) ([]models.GameEvent, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: "+inf", Count: PageSize}
	if rng.Since != nil {
		by.Min = "(" + strconv.FormatInt(*rng.Since, 10)
	}
	if rng.Until != nil {
		by.Max = strconv.FormatInt(*rng.Until, 10)
	}

	idx := r.indexKey(gameID)
	members, err := r.rdb.ZRevRangeByScore(ctx, idx, by).Result()
	if err != nil {
		return nil, fmt.Errorf("list event index %s: %w", gameID, err)
	}
	if len(members) == 0 {
		return []models.GameEvent{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		clock, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt event index %s member %q: %w", gameID, m, err)
		}
		keys[i] = r.eventKey(gameID, clock)
	}
	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list events %s: %w", gameID, err)
	}

	out := make([]models.GameEvent, 0, len(values))
	var expired []any
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, members[i])
			continue
		}
		var ev models.GameEvent
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			return nil, fmt.Errorf("decode event %s member %s: %w", gameID, members[i], err)
		}
		out = append(out, ev)
	}
	if len(expired) > 0 {
		// Best effort; a failure only leaves dangling index members behind.
		r.rdb.ZRem(ctx, idx, expired...)
	}
	return out, nil
}
