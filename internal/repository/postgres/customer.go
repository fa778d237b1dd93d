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

type customerRepository struct {
	db *sqlx.DB
}

func NewCustomerRepository(db *sqlx.DB) repository.CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *model.Customer) error {
	query := `
		INSERT INTO customers (
			id, owner_id, email, name, plan, user_stage,
			monthly_revenue, payment_status, signup_at, last_login_at,
			logins_last_30d, active_features, tickets_opened, nps_score,
			usage_minutes, churn_score, risk_level, churn_reason,
			action_recommended, created_at, updated_at
		) VALUES (
			:id, :owner_id, :email, :name, :plan, :user_stage,
			:monthly_revenue, :payment_status, :signup_at, :last_login_at,
			:logins_last_30d, :active_features, :tickets_opened, :nps_score,
			:usage_minutes, :churn_score, :risk_level, :churn_reason,
			:action_recommended, :created_at, :updated_at
		)
	`
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, customer); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.Conflict("customer with this email already exists", err)
		}
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Customer, error) {
	query := `SELECT * FROM customers WHERE owner_id = $1 AND id = $2`
	var customer model.Customer
	err := r.db.GetContext(ctx, &customer, query, ownerID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("customer", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

func (r *customerRepository) Update(ctx context.Context, customer *model.Customer) error {
	query := `
		UPDATE customers SET
			email = :email, name = :name, plan = :plan, user_stage = :user_stage,
			monthly_revenue = :monthly_revenue, payment_status = :payment_status,
			signup_at = :signup_at, last_login_at = :last_login_at,
			logins_last_30d = :logins_last_30d, active_features = :active_features,
			tickets_opened = :tickets_opened, nps_score = :nps_score,
			usage_minutes = :usage_minutes, updated_at = :updated_at
		WHERE owner_id = :owner_id AND id = :id
	`
	customer.UpdatedAt = time.Now()

	result, err := r.db.NamedExecContext(ctx, query, customer)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NotFound("customer", nil)
	}
	return nil
}

func (r *customerRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `DELETE FROM customers WHERE owner_id = $1 AND id = $2`
	_, err := r.db.ExecContext(ctx, query, ownerID, id)
	return err
}

func (r *customerRepository) List(ctx context.Context, ownerID uuid.UUID, filters *model.CustomerFilters) ([]*model.Customer, error) {
	query := `SELECT * FROM customers WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if filters != nil {
		if filters.RiskLevel != "" {
			args = append(args, filters.RiskLevel)
			query += fmt.Sprintf(" AND risk_level = $%d", len(args))
		}
		if filters.Plan != "" {
			args = append(args, filters.Plan)
			query += fmt.Sprintf(" AND plan = $%d", len(args))
		}
	}

	query += " ORDER BY created_at ASC"

	if filters != nil && filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filters.Offset > 0 {
			args = append(args, filters.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	customers := []*model.Customer{}
	if err := r.db.SelectContext(ctx, &customers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) UpsertByEmail(ctx context.Context, customer *model.Customer) error {
	query := `
		INSERT INTO customers (
			id, owner_id, email, name, plan, user_stage,
			monthly_revenue, payment_status, signup_at, last_login_at,
			logins_last_30d, active_features, tickets_opened, nps_score,
			usage_minutes, churn_score, risk_level, churn_reason,
			action_recommended, created_at, updated_at
		) VALUES (
			:id, :owner_id, :email, :name, :plan, :user_stage,
			:monthly_revenue, :payment_status, :signup_at, :last_login_at,
			:logins_last_30d, :active_features, :tickets_opened, :nps_score,
			:usage_minutes, :churn_score, :risk_level, :churn_reason,
			:action_recommended, :created_at, :updated_at
		)
		ON CONFLICT (owner_id, email) DO UPDATE SET
			name = EXCLUDED.name,
			plan = EXCLUDED.plan,
			user_stage = EXCLUDED.user_stage,
			monthly_revenue = EXCLUDED.monthly_revenue,
			payment_status = EXCLUDED.payment_status,
			signup_at = EXCLUDED.signup_at,
			last_login_at = EXCLUDED.last_login_at,
			logins_last_30d = EXCLUDED.logins_last_30d,
			active_features = EXCLUDED.active_features,
			tickets_opened = EXCLUDED.tickets_opened,
			nps_score = EXCLUDED.nps_score,
			usage_minutes = EXCLUDED.usage_minutes,
			updated_at = EXCLUDED.updated_at
	`
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = time.Now()

	if _, err := r.db.NamedExecContext(ctx, query, customer); err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	return nil
}

func (r *customerRepository) UpdateRiskFields(ctx context.Context, customer *model.Customer) error {
	query := `
		UPDATE customers SET
			churn_score = $1, risk_level = $2, churn_reason = $3,
			action_recommended = $4, scored_at = $5, updated_at = $5
		WHERE owner_id = $6 AND id = $7
	`
	now := time.Now()
	customer.ScoredAt = &now

	_, err := r.db.ExecContext(ctx, query,
		customer.ChurnScore,
		customer.RiskLevel,
		customer.ChurnReason,
		customer.ActionRecommended,
		now,
		customer.OwnerID,
		customer.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update risk fields: %w", err)
	}
	return nil
}
