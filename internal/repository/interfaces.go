package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/model"
)

// ErrDuplicatePending is returned by QueuedActionRepository.Insert when a
// pending action already exists for the same (owner, customer, playbook,
// step) tuple. Callers treat it as "already queued", not a failure.
var ErrDuplicatePending = errors.New("pending action already queued for this step")

// All repository interfaces in one file
type (
	AccountRepository interface {
		Create(ctx context.Context, account *model.Account) error
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
		GetByEmail(ctx context.Context, email string) (*model.Account, error)
		// ListIDs feeds the worker's periodic sweep over every tenant.
		ListIDs(ctx context.Context) ([]uuid.UUID, error)
	}

	CustomerRepository interface {
		Create(ctx context.Context, customer *model.Customer) error
		Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Customer, error)
		Update(ctx context.Context, customer *model.Customer) error
		Delete(ctx context.Context, ownerID, id uuid.UUID) error
		List(ctx context.Context, ownerID uuid.UUID, filters *model.CustomerFilters) ([]*model.Customer, error)
		// UpsertByEmail inserts or, when (owner_id, email) exists, refreshes
		// the signal fields. Used by CSV import.
		UpsertByEmail(ctx context.Context, customer *model.Customer) error
		// UpdateRiskFields writes one scoring result onto the customer row.
		UpdateRiskFields(ctx context.Context, customer *model.Customer) error
	}

	PlaybookRepository interface {
		Create(ctx context.Context, playbook *model.Playbook) error
		Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Playbook, error)
		Update(ctx context.Context, playbook *model.Playbook) error
		Delete(ctx context.Context, ownerID, id uuid.UUID) error
		List(ctx context.Context, ownerID uuid.UUID) ([]*model.Playbook, error)
		ListActive(ctx context.Context, ownerID uuid.UUID) ([]*model.Playbook, error)
	}

	QueuedActionRepository interface {
		// Insert adds a pending row. The partial unique index on
		// (owner_id, customer_id, playbook_id, step_index) WHERE status IN
		// ('pending','in_progress') makes duplicate scheduling impossible; a
		// violation surfaces as ErrDuplicatePending.
		Insert(ctx context.Context, action *model.QueuedAction) error
		Get(ctx context.Context, ownerID, id uuid.UUID) (*model.QueuedAction, error)
		List(ctx context.Context, ownerID uuid.UUID, status model.ActionStatus, limit int) ([]*model.QueuedAction, error)
		// ClaimDue atomically moves up to limit due pending rows to
		// in_progress and returns them. Safe across concurrent executors.
		ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.QueuedAction, error)
		MarkCompleted(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		// ReclaimStale returns in_progress rows older than the lease back to
		// pending, so a killed run loses at most in-flight items.
		ReclaimStale(ctx context.Context, lease time.Duration) (int64, error)
		CountPending(ctx context.Context) (int64, error)
	}

	ActionLogRepository interface {
		Create(ctx context.Context, entry *model.ActionLog) error
		List(ctx context.Context, ownerID uuid.UUID, filters *model.ActionLogFilters) ([]*model.ActionLog, error)
	}
)
