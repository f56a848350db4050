package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisher(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connected, err := pubSub.Subscribe(ctx, TopicWalletConnected)
	require.NoError(t, err)
	disconnected, err := pubSub.Subscribe(ctx, TopicWalletDisconnected)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, pub.PublishWalletConnected(ctx, "u1", "KeyNew", "KeyOld", at))
	require.NoError(t, pub.PublishWalletDisconnected(ctx, "u1", "KeyNew", at))

	select {
	case msg := <-connected:
		var event WalletEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, WalletEvent{UserID: "u1", WalletAddress: "KeyNew", PreviousAddress: "KeyOld", OccurredAt: at}, event)
		assert.Equal(t, "u1", msg.Metadata.Get("user_id"))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("wallet connected event not received")
	}

	select {
	case msg := <-disconnected:
		var event WalletEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "KeyNew", event.WalletAddress)
		assert.Empty(t, event.PreviousAddress)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("wallet disconnected event not received")
	}
}
