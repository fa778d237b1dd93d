package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	apperrors "github.com/retainly/retention-api/pkg/errors"
)

type playbookRepository struct {
	db *sqlx.DB
}

func NewPlaybookRepository(db *sqlx.DB) repository.PlaybookRepository {
	return &playbookRepository{db: db}
}

func (r *playbookRepository) Create(ctx context.Context, playbook *model.Playbook) error {
	query := `
		INSERT INTO playbooks (id, owner_id, name, active, conditions, actions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	playbook.CreatedAt = time.Now()
	playbook.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		playbook.ID,
		playbook.OwnerID,
		playbook.Name,
		playbook.Active,
		playbook.Conditions,
		playbook.Actions,
		playbook.CreatedAt,
		playbook.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create playbook: %w", err)
	}
	return nil
}

func (r *playbookRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Playbook, error) {
	query := `SELECT * FROM playbooks WHERE owner_id = $1 AND id = $2`
	var playbook model.Playbook
	err := r.db.GetContext(ctx, &playbook, query, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("playbook", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playbook: %w", err)
	}
	return &playbook, nil
}

func (r *playbookRepository) Update(ctx context.Context, playbook *model.Playbook) error {
	query := `
		UPDATE playbooks
		SET name = $1, active = $2, conditions = $3, actions = $4, updated_at = $5
		WHERE owner_id = $6 AND id = $7
	`
	playbook.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		playbook.Name,
		playbook.Active,
		playbook.Conditions,
		playbook.Actions,
		playbook.UpdatedAt,
		playbook.OwnerID,
		playbook.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playbook: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("playbook", nil)
	}
	return nil
}

func (r *playbookRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `DELETE FROM playbooks WHERE owner_id = $1 AND id = $2`
	_, err := r.db.ExecContext(ctx, query, ownerID, id)
	return err
}

func (r *playbookRepository) List(ctx context.Context, ownerID uuid.UUID) ([]*model.Playbook, error) {
	query := `SELECT * FROM playbooks WHERE owner_id = $1 ORDER BY created_at ASC`
	playbooks := []*model.Playbook{}
	if err := r.db.SelectContext(ctx, &playbooks, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list playbooks: %w", err)
	}
	return playbooks, nil
}

func (r *playbookRepository) ListActive(ctx context.Context, ownerID uuid.UUID) ([]*model.Playbook, error) {
	query := `SELECT * FROM playbooks WHERE owner_id = $1 AND active = true ORDER BY created_at ASC`
	playbooks := []*model.Playbook{}
	if err := r.db.SelectContext(ctx, &playbooks, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list active playbooks: %w", err)
	}
	return playbooks, nil
}
