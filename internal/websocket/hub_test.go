package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastsPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	c := &Client{hub: hub, Send: make(chan []byte, 4), AccountID: "mgr-1"}
	require.True(t, hub.Join(c))

	hub.Publish(models.Event{ID: "ev-1", Type: "account.created", Level: "info"})

	select {
	case raw := <-c.Send:
		var msg struct {
			Action  string       `json:"action"`
			Payload models.Event `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, ActionAuditEvent, msg.Action)
		assert.Equal(t, "ev-1", msg.Payload.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}

	hub.Leave(c)
	_, open := <-c.Send
	assert.False(t, open, "send channel must be closed after leaving")
}

func TestHub_StoppedHubDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	c := &Client{hub: hub, Send: make(chan []byte, 1)}
	assert.False(t, hub.Join(c))
	hub.Leave(c)

	for i := 0; i < 300; i++ {
		hub.Publish(models.Event{ID: "x"})
	}
}
