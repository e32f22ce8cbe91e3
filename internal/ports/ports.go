package ports

import (
	"context"
	"math/big"
)

// ChainState reads account state from a blockchain provider.
type ChainState interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
	TransactionCount(ctx context.Context, address string) (uint64, error)
}

// Event is a broadcast about a completed audit or fix.
type Event struct {
	Type     string `json:"type"`
	Target   string `json:"target"`
	Severity string `json:"severity,omitempty"`
	Cost     int    `json:"cost"`
	PDF      string `json:"pdf"`
}

// Notifier delivers one event to the outbound messaging channel.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Broadcaster queues events for delivery without waiting on the result.
type Broadcaster interface {
	Publish(ev Event)
}
