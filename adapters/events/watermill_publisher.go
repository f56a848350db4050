package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/walletlink/ports"
)

const (
	TopicWalletConnected    = "walletlink.wallet_connected"
	TopicWalletDisconnected = "walletlink.wallet_disconnected"
)

// WalletEvent is the payload of both wallet topics
type WalletEvent struct {
	UserID          string    `json:"user_id"`
	WalletAddress   string    `json:"wallet_address"`
	PreviousAddress string    `json:"previous_address,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
	}
}

// PublishWalletConnected publishes a wallet connected event
func (p *WatermillPublisher) PublishWalletConnected(ctx context.Context, userID, walletAddress, previousAddress string, at time.Time) error {
	return p.publish(ctx, TopicWalletConnected, WalletEvent{
		UserID:          userID,
		WalletAddress:   walletAddress,
		PreviousAddress: previousAddress,
		OccurredAt:      at,
	})
}

// PublishWalletDisconnected publishes a wallet disconnected event
func (p *WatermillPublisher) PublishWalletDisconnected(ctx context.Context, userID, walletAddress string, at time.Time) error {
	return p.publish(ctx, TopicWalletDisconnected, WalletEvent{
		UserID:        userID,
		WalletAddress: walletAddress,
		OccurredAt:    at,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event WalletEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("user_id", event.UserID)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
