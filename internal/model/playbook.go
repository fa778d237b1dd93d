package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConditionField is the closed set of customer fields a playbook condition
// may reference. Unknown names are rejected at playbook validation time.
type ConditionField string

const (
	FieldChurnScore ConditionField = "churn_score"
	FieldRiskLevel  ConditionField = "risk_level"
	FieldPlan       ConditionField = "plan"
	FieldLastLogin  ConditionField = "last_login"
	FieldUsage      ConditionField = "usage"
	FieldUserStage  ConditionField = "user_stage"
)

// ConditionFields lists every permitted condition field.
var ConditionFields = []ConditionField{
	FieldChurnScore,
	FieldRiskLevel,
	FieldPlan,
	FieldLastLogin,
	FieldUsage,
	FieldUserStage,
}

// IsValidConditionField reports whether name is a member of the closed set.
func IsValidConditionField(name string) bool {
	for _, f := range ConditionFields {
		if string(f) == name {
			return true
		}
	}
	return false
}

type Operator string

const (
	OpEqual        Operator = "=="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpContains     Operator = "contains"
)

// IsValidOperator reports whether op is a supported comparison operator.
func IsValidOperator(op string) bool {
	switch Operator(op) {
	case OpEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpContains:
		return true
	}
	return false
}

type ActionType string

const (
	ActionSendEmail ActionType = "send_email"
	ActionAddTag    ActionType = "add_tag"
	ActionAddToCRM  ActionType = "add_to_crm"
	ActionWait      ActionType = "wait"
)

// IsValidActionType reports whether t is a supported action type.
func IsValidActionType(t string) bool {
	switch ActionType(t) {
	case ActionSendEmail, ActionAddTag, ActionAddToCRM, ActionWait:
		return true
	}
	return false
}

// Condition is one field/operator/value predicate. All conditions of a
// playbook must hold for the playbook to match a customer.
type Condition struct {
	Field    ConditionField `json:"field"`
	Operator Operator       `json:"operator"`
	Value    string         `json:"value"`
}

// Action is one step of a playbook. Value carries the email template id for
// send_email, the tag for add_tag, or the day count for wait.
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
}

// ConditionList is stored as JSONB.
type ConditionList []Condition

func (c ConditionList) Value() (driver.Value, error) {
	if c == nil {
		c = ConditionList{}
	}
	return json.Marshal(c)
}

func (c *ConditionList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = ConditionList{}
		return nil
	default:
		return fmt.Errorf("unsupported type for ConditionList: %T", src)
	}
}

// ActionList is stored as JSONB.
type ActionList []Action

func (a ActionList) Value() (driver.Value, error) {
	if a == nil {
		a = ActionList{}
	}
	return json.Marshal(a)
}

func (a *ActionList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = ActionList{}
		return nil
	default:
		return fmt.Errorf("unsupported type for ActionList: %T", src)
	}
}

// Playbook is a declarative retention rule: when every condition holds for a
// customer, its actions are queued in order.
type Playbook struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	OwnerID    uuid.UUID     `db:"owner_id" json:"owner_id"`
	Name       string        `db:"name" json:"name"`
	Active     bool          `db:"active" json:"active"`
	Conditions ConditionList `db:"conditions" json:"conditions"`
	Actions    ActionList    `db:"actions" json:"actions"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

type CreatePlaybookRequest struct {
	Name       string      `json:"name" binding:"required"`
	Active     *bool       `json:"active"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions" binding:"required"`
}
