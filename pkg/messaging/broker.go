package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels published by the core components.
const (
	ChannelEngineRuns   = "engine.runs"
	ChannelActionEvents = "actions.events"
)

// ActionEvent is the payload published after every action execution attempt.
type ActionEvent struct {
	ActionID   string `json:"action_id"`
	OwnerID    string `json:"owner_id"`
	CustomerID string `json:"customer_id"`
	PlaybookID string `json:"playbook_id"`
	ActionType string `json:"action_type"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}
