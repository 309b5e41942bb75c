package events

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/fitfinder/internal/model"
)

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent(KindGymCreated, "g1", "g1",
		model.Location{State: "Bahia", City: "Salvador"},
		map[string]string{"name": "Academia"})
	require.NoError(t, err)

	assert.Equal(t, KindGymCreated, ev.Kind)
	assert.Equal(t, "Bahia", ev.State)
	assert.Equal(t, "Salvador", ev.City)
	assert.JSONEq(t, `{"name":"Academia"}`, string(ev.Payload))
	assert.False(t, ev.CreatedAt.IsZero())

	_, err = NewEvent(KindRatingCreated, "r1", "g1", model.Location{}, func() {})
	assert.Error(t, err)
}

func TestMemoryBus_Fanout(t *testing.T) {
	bus := NewMemoryBus()

	var (
		mu  sync.Mutex
		got []string
	)
	unsubA := bus.OnEntityCreated(func(ev Event) {
		mu.Lock()
		got = append(got, "a:"+ev.EntityID)
		mu.Unlock()
	})
	bus.OnEntityCreated(func(ev Event) {
		mu.Lock()
		got = append(got, "b:"+ev.EntityID)
		mu.Unlock()
	})

	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindCommentCreated, EntityID: "1"}))
	assert.ElementsMatch(t, []string{"a:1", "b:1"}, got)

	unsubA()
	unsubA()
	assert.Equal(t, 1, bus.d.count())

	got = nil
	require.NoError(t, bus.Publish(context.Background(), Event{Kind: KindCommentCreated, EntityID: "2"}))
	assert.Equal(t, []string{"b:2"}, got)
}

func TestMemoryBus_PublishCanceled(t *testing.T) {
	bus := NewMemoryBus()
	called := false
	bus.OnEntityCreated(func(Event) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, bus.Publish(ctx, Event{}), context.Canceled)
	assert.False(t, called)
}

func TestMemoryBus_RunStopsOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestEventJSON(t *testing.T) {
	ev := Event{Kind: KindRatingCreated, EntityID: "r1", GymID: "g1", Payload: json.RawMessage(`{"overall":4.2}`)}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"kind":"rating.created"`)
	assert.Contains(t, string(data), `"gymId":"g1"`)
	assert.NotContains(t, string(data), `"state"`)
}

func TestRedisBus(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	bus := NewRedisBusWithClient(client, "fitfinder:test:"+time.Now().Format("150405.000000"), nil)
	defer bus.Close()

	received := make(chan Event, 1)
	bus.OnEntityCreated(func(ev Event) {
		select {
		case received <- ev:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()

	// Публикуем повторно, пока подписка не установлена.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		require.NoError(t, bus.Publish(ctx, Event{Kind: KindGymCreated, EntityID: "g1", GymID: "g1"}))
		select {
		case ev := <-received:
			assert.Equal(t, KindGymCreated, ev.Kind)
			assert.Equal(t, "g1", ev.EntityID)
			return
		case <-ticker.C:
		case <-deadline:
			t.Fatal("event was not delivered")
		}
	}
}
