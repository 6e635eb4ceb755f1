package external

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisEventSink_Publish(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, "workorders.events")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	sink := NewRedisEventSink(client, "workorders.events")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Publish(ctx, Event{Type: EventSubmitted, WorkOrderID: "wo-1", PlanID: "p-1", Status: "active", At: at}))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, EventSubmitted, got.Type)
		assert.Equal(t, "wo-1", got.WorkOrderID)
		assert.True(t, at.Equal(got.At))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestRedisEventSink_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err = NewRedisEventSink(client, "events").Publish(context.Background(), Event{Type: EventCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing completed event")
}
