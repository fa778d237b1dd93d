package model

import (
	"time"

	"github.com/google/uuid"
)

type ActionLogStatus string

const (
	ActionLogStatusSent      ActionLogStatus = "sent"
	ActionLogStatusCompleted ActionLogStatus = "completed"
	ActionLogStatusFailed    ActionLogStatus = "failed"
)

// ActionLog is one append-only record of an action execution attempt.
type ActionLog struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	OwnerID      uuid.UUID       `db:"owner_id" json:"owner_id"`
	CustomerID   uuid.UUID       `db:"customer_id" json:"customer_id"`
	PlaybookID   uuid.UUID       `db:"playbook_id" json:"playbook_id"`
	ActionType   ActionType      `db:"action_type" json:"action_type"`
	ActionValue  string          `db:"action_value" json:"action_value"`
	Status       ActionLogStatus `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type ActionLogFilters struct {
	CustomerID *uuid.UUID
	PlaybookID *uuid.UUID
	Status     string
	Limit      int
	Offset     int
}
