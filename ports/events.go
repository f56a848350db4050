package ports

import (
	"context"
	"time"
)

// EventPublisher notifies other services about wallet binding changes
type EventPublisher interface {
	PublishWalletConnected(ctx context.Context, userID, walletAddress, previousAddress string, at time.Time) error
	PublishWalletDisconnected(ctx context.Context, userID, walletAddress string, at time.Time) error
}
