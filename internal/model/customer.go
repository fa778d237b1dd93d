package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusCurrent PaymentStatus = "current"
	PaymentStatusOverdue PaymentStatus = "overdue"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Customer is one tracked end user of a tenant's product, carrying both the
// raw engagement signals and the most recent churn assessment.
type Customer struct {
	ID      uuid.UUID `db:"id" json:"id"`
	OwnerID uuid.UUID `db:"owner_id" json:"owner_id"`
	Email   string    `db:"email" json:"email"`
	Name    string    `db:"name" json:"name"`

	Plan      string `db:"plan" json:"plan"`
	UserStage string `db:"user_stage" json:"user_stage"`

	MonthlyRevenue   float64       `db:"monthly_revenue" json:"monthly_revenue"`
	PaymentStatus    PaymentStatus `db:"payment_status" json:"payment_status"`
	SignupAt         time.Time     `db:"signup_at" json:"signup_at"`
	LastLoginAt      *time.Time    `db:"last_login_at" json:"last_login_at,omitempty"`
	LoginsLast30Days int           `db:"logins_last_30d" json:"logins_last_30d"`
	ActiveFeatures   int           `db:"active_features" json:"active_features"`
	TicketsOpened    int           `db:"tickets_opened" json:"tickets_opened"`
	NPSScore         *int          `db:"nps_score" json:"nps_score,omitempty"`
	UsageMinutes     int           `db:"usage_minutes" json:"usage_minutes"`

	// Scored fields, written once per scoring pass.
	ChurnScore        float64    `db:"churn_score" json:"churn_score"`
	RiskLevel         string     `db:"risk_level" json:"risk_level"`
	ChurnReason       string     `db:"churn_reason" json:"churn_reason"`
	ActionRecommended string     `db:"action_recommended" json:"action_recommended"`
	ScoredAt          *time.Time `db:"scored_at" json:"scored_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type CreateCustomerRequest struct {
	Email            string     `json:"email" binding:"required,email"`
	Name             string     `json:"name" binding:"required"`
	Plan             string     `json:"plan"`
	UserStage        string     `json:"user_stage"`
	MonthlyRevenue   float64    `json:"monthly_revenue"`
	PaymentStatus    string     `json:"payment_status" binding:"omitempty,oneof=current overdue failed"`
	SignupAt         *time.Time `json:"signup_at"`
	LastLoginAt      *time.Time `json:"last_login_at"`
	LoginsLast30Days int        `json:"logins_last_30d"`
	ActiveFeatures   int        `json:"active_features"`
	TicketsOpened    int        `json:"tickets_opened"`
	NPSScore         *int       `json:"nps_score" binding:"omitempty"`
	UsageMinutes     int        `json:"usage_minutes"`
}

type CustomerFilters struct {
	RiskLevel string
	Plan      string
	Limit     int
	Offset    int
}

// ImportSummary reports the outcome of a CSV import. Row errors are
// collected, not fatal to the file.
type ImportSummary struct {
	Imported  int      `json:"imported"`
	Skipped   int      `json:"skipped"`
	RowErrors []string `json:"row_errors,omitempty"`
}
