package playbook

import (
	"strconv"
	"strings"
	"time"

	"github.com/retainly/retention-api/internal/model"
)

// fieldValue resolves a condition field against a customer through the
// closed accessor table. The second return is false for field names outside
// the permitted set (possible only for rows predating validation), which
// evaluates to no-match rather than an error.
//
// last_login resolves to whole days since the last login so numeric
// operators read naturally ("last_login > 30"); a customer who never logged
// in counts days since signup.
func fieldValue(c *model.Customer, field model.ConditionField, now time.Time) (string, bool) {
	switch field {
	case model.FieldChurnScore:
		return strconv.FormatFloat(c.ChurnScore, 'f', -1, 64), true
	case model.FieldRiskLevel:
		return c.RiskLevel, true
	case model.FieldPlan:
		return c.Plan, true
	case model.FieldLastLogin:
		since := c.SignupAt
		if c.LastLoginAt != nil {
			since = *c.LastLoginAt
		}
		days := int(now.Sub(since).Hours() / 24)
		return strconv.Itoa(days), true
	case model.FieldUsage:
		return strconv.Itoa(c.UsageMinutes), true
	case model.FieldUserStage:
		return c.UserStage, true
	}
	return "", false
}

// evaluateCondition applies one predicate. Non-numeric operands under a
// numeric operator resolve to no-match, never an error.
func evaluateCondition(cond model.Condition, c *model.Customer, now time.Time) bool {
	value, ok := fieldValue(c, cond.Field, now)
	if !ok {
		return false
	}

	switch cond.Operator {
	case model.OpEqual:
		return value == cond.Value
	case model.OpContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(cond.Value))
	case model.OpGreater, model.OpLess, model.OpGreaterEqual, model.OpLessEqual:
		left, err1 := strconv.ParseFloat(value, 64)
		right, err2 := strconv.ParseFloat(cond.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		switch cond.Operator {
		case model.OpGreater:
			return left > right
		case model.OpLess:
			return left < right
		case model.OpGreaterEqual:
			return left >= right
		case model.OpLessEqual:
			return left <= right
		}
	}
	return false
}

// matches reports whether every condition of the playbook holds for the
// customer. An empty condition list matches everyone.
func matches(p *model.Playbook, c *model.Customer, now time.Time) bool {
	for _, cond := range p.Conditions {
		if !evaluateCondition(cond, c, now) {
			return false
		}
	}
	return true
}
