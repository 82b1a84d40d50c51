package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func event(gameID string, clock int64) models.GameEvent {
	return models.GameEvent{
		GameID:   gameID,
		Clock:    clock,
		PlayerID: "u1",
		Epoch:    epoch.Add(time.Duration(clock) * time.Second),
		Action:   models.Action{Type: models.ActionChat, Message: "hello"},
	}
}

func clocks(events []models.GameEvent) []int64 {
	out := make([]int64, len(events))
	for i, ev := range events {
		out[i] = ev.Clock
	}
	return out
}

func ptr(v int64) *int64 { return &v }

func assertSameEvent(t *testing.T, want, got models.GameEvent) {
	t.Helper()
	assert.Equal(t, want.GameID, got.GameID)
	assert.Equal(t, want.Clock, got.Clock)
	assert.Equal(t, want.PlayerID, got.PlayerID)
	assert.True(t, want.Epoch.Equal(got.Epoch), "epoch %v != %v", want.Epoch, got.Epoch)
	assert.Equal(t, want.Action, got.Action)
}

// logFactories lets each behaviour test run against every implementation.
func logFactories(t *testing.T) map[string]func() Log {
	return map[string]func() Log{
		"memory": func() Log { return NewMemory(0, nil) },
		"redis": func() Log {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { rdb.Close() })
			return NewRedis(rdb, 0, "test:")
		},
	}
}

func TestWriteOncePerClock(t *testing.T) {
	for name, newLog := range logFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := newLog()

			first := event("g1", 1)
			_, err := l.Write(ctx, first)
			require.NoError(t, err)

			dup := event("g1", 1)
			dup.PlayerID = "u2"
			_, err = l.Write(ctx, dup)
			assert.ErrorIs(t, err, apperr.ErrConflict)

			for i := 0; i < 2; i++ {
				got, err := l.Get(ctx, "g1", 1)
				require.NoError(t, err)
				assertSameEvent(t, first, got)
			}

			_, err = l.Write(ctx, event("g2", 1))
			assert.NoError(t, err, "clocks are per game")
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, newLog := range logFactories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := newLog().Get(context.Background(), "g1", 7)
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestListRoundTrip(t *testing.T) {
	for name, newLog := range logFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := newLog()
			for c := int64(1); c <= 5; c++ {
				_, err := l.Write(ctx, event("g1", c))
				require.NoError(t, err)
			}

			got, err := l.List(ctx, "g1", Range{})
			require.NoError(t, err)
			assert.Equal(t, []int64{5, 4, 3, 2, 1}, clocks(got))
			assertSameEvent(t, event("g1", 5), got[0])

			empty, err := l.List(ctx, "nope", Range{})
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestListRangeAndPaging(t *testing.T) {
	for name, newLog := range logFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := newLog()
			for c := int64(1); c <= 30; c++ {
				_, err := l.Write(ctx, event("g1", c))
				require.NoError(t, err)
			}

			page, err := l.List(ctx, "g1", Range{})
			require.NoError(t, err)
			require.Len(t, page, PageSize)
			assert.Equal(t, int64(30), page[0].Clock)
			assert.Equal(t, int64(11), page[PageSize-1].Clock)

			got, err := l.List(ctx, "g1", Range{Since: ptr(25)})
			require.NoError(t, err)
			assert.Equal(t, []int64{30, 29, 28, 27, 26}, clocks(got), "since is exclusive")

			got, err = l.List(ctx, "g1", Range{Since: ptr(3), Until: ptr(6)})
			require.NoError(t, err)
			assert.Equal(t, []int64{6, 5, 4}, clocks(got), "until is inclusive")

			got, err = l.List(ctx, "g1", Range{Until: ptr(10)})
			require.NoError(t, err)
			assert.Equal(t, []int64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, clocks(got))
		})
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := epoch
	l := NewMemory(time.Hour, func() time.Time { return now })

	_, err := l.Write(ctx, event("g1", 1))
	require.NoError(t, err)
	now = now.Add(30 * time.Minute)
	_, err = l.Write(ctx, event("g1", 2))
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	_, err = l.Get(ctx, "g1", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := l.List(ctx, "g1", Range{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, clocks(got), "expired events are simply missing")
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	l := NewRedis(rdb, time.Hour, "")

	_, err := l.Write(ctx, event("g1", 1))
	require.NoError(t, err)
	mr.FastForward(30 * time.Minute)
	_, err = l.Write(ctx, event("g1", 2))
	require.NoError(t, err)
	mr.FastForward(45 * time.Minute)

	_, err = l.Get(ctx, "g1", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := l.List(ctx, "g1", Range{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, clocks(got))

	members, err := rdb.ZRange(ctx, "events:{g1}", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, members, "expired members are pruned from the index")
}
