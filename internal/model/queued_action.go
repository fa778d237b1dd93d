package model

import (
	"time"

	"github.com/google/uuid"
)

type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "pending"
	ActionStatusInProgress ActionStatus = "in_progress"
	ActionStatusCompleted  ActionStatus = "completed"
	ActionStatusFailed     ActionStatus = "failed"
)

// QueuedAction is one durable unit of deferred playbook work. At most one
// live (pending or in_progress) row may exist per (owner, customer,
// playbook, step_index), enforced by a partial unique index rather than
// application logic. Rows are never deleted; completed and failed rows
// remain as part of the audit trail.
type QueuedAction struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	OwnerID      uuid.UUID    `db:"owner_id" json:"owner_id"`
	CustomerID   uuid.UUID    `db:"customer_id" json:"customer_id"`
	PlaybookID   uuid.UUID    `db:"playbook_id" json:"playbook_id"`
	StepIndex    int          `db:"step_index" json:"step_index"`
	ActionType   ActionType   `db:"action_type" json:"action_type"`
	ActionValue  string       `db:"action_value" json:"action_value"`
	Status       ActionStatus `db:"status" json:"status"`
	ScheduledFor time.Time    `db:"scheduled_for" json:"scheduled_for"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
	ExecutedAt   *time.Time   `db:"executed_at" json:"executed_at,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}
