package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	apperrors "github.com/retainly/retention-api/pkg/errors"
)

const uniqueViolation = "23505"

type queuedActionRepository struct {
	db *sqlx.DB
}

func NewQueuedActionRepository(db *sqlx.DB) repository.QueuedActionRepository {
	return &queuedActionRepository{db: db}
}

func (r *queuedActionRepository) Insert(ctx context.Context, action *model.QueuedAction) error {
	query := `
		INSERT INTO queued_actions (
			id, owner_id, customer_id, playbook_id, step_index,
			action_type, action_value, status, scheduled_for, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	action.Status = model.ActionStatusPending
	action.CreatedAt = time.Now()
	action.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		action.ID,
		action.OwnerID,
		action.CustomerID,
		action.PlaybookID,
		action.StepIndex,
		action.ActionType,
		action.ActionValue,
		action.Status,
		action.ScheduledFor,
		action.CreatedAt,
		action.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return repository.ErrDuplicatePending
	}
	if err != nil {
		return fmt.Errorf("failed to insert queued action: %w", err)
	}
	return nil
}

func (r *queuedActionRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.QueuedAction, error) {
	query := `SELECT * FROM queued_actions WHERE owner_id = $1 AND id = $2`
	var action model.QueuedAction
	err := r.db.GetContext(ctx, &action, query, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("queued action", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued action: %w", err)
	}
	return &action, nil
}

func (r *queuedActionRepository) List(ctx context.Context, ownerID uuid.UUID, status model.ActionStatus, limit int) ([]*model.QueuedAction, error) {
	query := `SELECT * FROM queued_actions WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY scheduled_for ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	actions := []*model.QueuedAction{}
	if err := r.db.SelectContext(ctx, &actions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list queued actions: %w", err)
	}
	return actions, nil
}

// ClaimDue moves due pending rows to in_progress and returns them in one
// statement, so two concurrent executors can never pick the same action.
func (r *queuedActionRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.QueuedAction, error) {
	query := `
		UPDATE queued_actions
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM queued_actions
			WHERE status = $2 AND scheduled_for <= $3
			ORDER BY scheduled_for ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`
	actions := []*model.QueuedAction{}
	err := r.db.SelectContext(ctx, &actions, query,
		model.ActionStatusInProgress,
		model.ActionStatusPending,
		now,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due actions: %w", err)
	}
	return actions, nil
}

func (r *queuedActionRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE queued_actions
		SET status = $1, error_message = NULL, executed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, model.ActionStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to mark action completed: %w", err)
	}
	return nil
}

func (r *queuedActionRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE queued_actions
		SET status = $1, error_message = $2, executed_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, model.ActionStatusFailed, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark action failed: %w", err)
	}
	return nil
}

func (r *queuedActionRepository) ReclaimStale(ctx context.Context, lease time.Duration) (int64, error) {
	query := `
		UPDATE queued_actions
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < $3
	`
	result, err := r.db.ExecContext(ctx, query,
		model.ActionStatusPending,
		model.ActionStatusInProgress,
		time.Now().Add(-lease),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale actions: %w", err)
	}
	return result.RowsAffected()
}

func (r *queuedActionRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM queued_actions WHERE status = $1`, model.ActionStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return count, nil
}
