package playbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/retainly/retention-api/internal/model"
)

func testCustomer() *model.Customer {
	now := time.Now()
	lastLogin := now.AddDate(0, 0, -10)
	return &model.Customer{
		Plan:         "pro",
		UserStage:    "activated",
		RiskLevel:    "high",
		ChurnScore:   0.75,
		UsageMinutes: 120,
		SignupAt:     now.AddDate(0, 0, -90),
		LastLoginAt:  &lastLogin,
	}
}

func TestEvaluateCondition(t *testing.T) {
	c := testCustomer()
	now := time.Now()

	tests := []struct {
		name string
		cond model.Condition
		want bool
	}{
		{"equal match", model.Condition{Field: model.FieldRiskLevel, Operator: model.OpEqual, Value: "high"}, true},
		{"equal no match", model.Condition{Field: model.FieldRiskLevel, Operator: model.OpEqual, Value: "low"}, false},
		{"equal is case sensitive", model.Condition{Field: model.FieldRiskLevel, Operator: model.OpEqual, Value: "High"}, false},
		{"greater numeric", model.Condition{Field: model.FieldChurnScore, Operator: model.OpGreater, Value: "0.7"}, true},
		{"greater numeric false", model.Condition{Field: model.FieldChurnScore, Operator: model.OpGreater, Value: "0.8"}, false},
		{"greater equal boundary", model.Condition{Field: model.FieldChurnScore, Operator: model.OpGreaterEqual, Value: "0.75"}, true},
		{"less equal boundary", model.Condition{Field: model.FieldChurnScore, Operator: model.OpLessEqual, Value: "0.75"}, true},
		{"less numeric", model.Condition{Field: model.FieldUsage, Operator: model.OpLess, Value: "200"}, true},
		{"numeric against non-numeric field value is no match", model.Condition{Field: model.FieldPlan, Operator: model.OpGreater, Value: "1"}, false},
		{"numeric against non-numeric literal is no match", model.Condition{Field: model.FieldUsage, Operator: model.OpGreater, Value: "lots"}, false},
		{"contains case insensitive", model.Condition{Field: model.FieldPlan, Operator: model.OpContains, Value: "PR"}, true},
		{"contains no match", model.Condition{Field: model.FieldPlan, Operator: model.OpContains, Value: "enterprise"}, false},
		{"last_login in days", model.Condition{Field: model.FieldLastLogin, Operator: model.OpGreaterEqual, Value: "10"}, true},
		{"last_login not stale enough", model.Condition{Field: model.FieldLastLogin, Operator: model.OpGreater, Value: "30"}, false},
		{"user_stage equal", model.Condition{Field: model.FieldUserStage, Operator: model.OpEqual, Value: "activated"}, true},
		{"unknown field is no match", model.Condition{Field: "favorite_color", Operator: model.OpEqual, Value: "blue"}, false},
		{"unknown operator is no match", model.Condition{Field: model.FieldPlan, Operator: "~=", Value: "pro"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluateCondition(tt.cond, c, now))
		})
	}
}

func TestEvaluateConditionNeverLoggedIn(t *testing.T) {
	c := testCustomer()
	c.LastLoginAt = nil
	now := time.Now()

	// Never logged in counts days since signup (90 here).
	cond := model.Condition{Field: model.FieldLastLogin, Operator: model.OpGreater, Value: "30"}
	assert.True(t, evaluateCondition(cond, c, now))
}

func TestMatchesIsConjunctive(t *testing.T) {
	c := testCustomer()
	now := time.Now()

	a := model.Condition{Field: model.FieldRiskLevel, Operator: model.OpEqual, Value: "high"}
	b := model.Condition{Field: model.FieldPlan, Operator: model.OpEqual, Value: "pro"}
	bFalse := model.Condition{Field: model.FieldPlan, Operator: model.OpEqual, Value: "free"}

	assert.True(t, matches(&model.Playbook{Conditions: model.ConditionList{a, b}}, c, now))
	assert.False(t, matches(&model.Playbook{Conditions: model.ConditionList{a, bFalse}}, c, now))
	assert.False(t, matches(&model.Playbook{Conditions: model.ConditionList{bFalse, a}}, c, now))
}

func TestMatchesEmptyConditionsMatchesEveryone(t *testing.T) {
	assert.True(t, matches(&model.Playbook{}, testCustomer(), time.Now()))
}
