package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
)

type actionLogRepository struct {
	db *sqlx.DB
}

func NewActionLogRepository(db *sqlx.DB) repository.ActionLogRepository {
	return &actionLogRepository{db: db}
}

func (r *actionLogRepository) Create(ctx context.Context, entry *model.ActionLog) error {
	query := `
		INSERT INTO action_logs (
			id, owner_id, customer_id, playbook_id,
			action_type, action_value, status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	entry.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OwnerID,
		entry.CustomerID,
		entry.PlaybookID,
		entry.ActionType,
		entry.ActionValue,
		entry.Status,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create action log entry: %w", err)
	}
	return nil
}

func (r *actionLogRepository) List(ctx context.Context, ownerID uuid.UUID, filters *model.ActionLogFilters) ([]*model.ActionLog, error) {
	query := `SELECT * FROM action_logs WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if filters != nil {
		if filters.CustomerID != nil {
			args = append(args, *filters.CustomerID)
			query += fmt.Sprintf(" AND customer_id = $%d", len(args))
		}
		if filters.PlaybookID != nil {
			args = append(args, *filters.PlaybookID)
			query += fmt.Sprintf(" AND playbook_id = $%d", len(args))
		}
		if filters.Status != "" {
			args = append(args, filters.Status)
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
	}

	query += " ORDER BY created_at DESC"

	if filters != nil && filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filters.Offset > 0 {
			args = append(args, filters.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	entries := []*model.ActionLog{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list action logs: %w", err)
	}
	return entries, nil
}
