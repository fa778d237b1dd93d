// Package scoring maps a snapshot of customer engagement signals onto a
// churn assessment. Score is pure: no I/O, no shared state, identical output
// for identical input.
package scoring

import (
	"time"

	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/model"
)

// Signal is the per-call input to the engine. It is constructed fresh for
// every evaluation and never persisted. Every field except CustomerID is
// optional; zero values carry no penalty on their own except where the rule
// table says otherwise.
type Signal struct {
	CustomerID         uuid.UUID
	MonthlyRevenue     float64
	PaymentStatus      model.PaymentStatus
	DaysSinceSignup    int
	DaysSinceLastLogin int
	LoginsLast30Days   int
	ActiveFeatures     int
	TicketsOpened      int
	// NPS is 0-10 when answered, nil when the customer never responded.
	// nil fires no NPS rule.
	NPS *int
}

type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Tier cut points over the 0-100 point scale.
const (
	criticalThreshold = 70
	highThreshold     = 50
	mediumThreshold   = 30
	maxPoints         = 100
)

// Sentinels returned when no rule fires.
const (
	ReasonStable         = "customer appears stable"
	RecommendationStable = "continue standard engagement"
)

// Result is the churn assessment for one signal snapshot. Reasons and
// Recommendations are parallel slices ordered by rule evaluation order.
type Result struct {
	Points          int
	Score           float64
	Tier            Tier
	Reasons         []string
	Recommendations []string
}

// Stable reports whether no risk rule fired.
func (r Result) Stable() bool {
	return r.Points == 0
}

type rule struct {
	name string
	eval func(s Signal) (points int, reason, recommendation string)
}

// The rule table. Rules are additive and evaluated in this fixed order;
// rules within a family (inactivity, login frequency, adoption, support,
// NPS) are mutually exclusive.
var rules = []rule{
	{
		name: "payment",
		eval: func(s Signal) (int, string, string) {
			if s.PaymentStatus == model.PaymentStatusFailed || s.PaymentStatus == model.PaymentStatusOverdue {
				return 30, "payment issue: status is " + string(s.PaymentStatus),
					"reach out to resolve the billing problem"
			}
			return 0, "", ""
		},
	},
	{
		name: "inactivity",
		eval: func(s Signal) (int, string, string) {
			switch {
			case s.DaysSinceLastLogin > 30:
				return 25, "inactive for more than 30 days",
					"send a re-engagement email with recent product updates"
			case s.DaysSinceLastLogin >= 14:
				return 15, "decreasing engagement: no login in the last two weeks",
					"check in with a usage tips email"
			}
			return 0, "", ""
		},
	},
	{
		name: "login_frequency",
		eval: func(s Signal) (int, string, string) {
			switch {
			case s.LoginsLast30Days == 0:
				return 20, "zero logins in the last 30 days",
					"offer a personal walkthrough session"
			case s.LoginsLast30Days <= 2:
				return 12, "very low login frequency",
					"share workflows that bring users back daily"
			}
			return 0, "", ""
		},
	},
	{
		name: "feature_adoption",
		eval: func(s Signal) (int, string, string) {
			switch s.ActiveFeatures {
			case 0:
				return 15, "no feature adoption",
					"schedule an onboarding call to activate key features"
			case 1:
				return 8, "low feature usage: only one active feature",
					"highlight adjacent features in the next touchpoint"
			}
			return 0, "", ""
		},
	},
	{
		name: "support_burden",
		eval: func(s Signal) (int, string, string) {
			switch {
			case s.TicketsOpened > 5:
				return 10, "high support ticket volume",
					"escalate to a success manager for a service review"
			case s.TicketsOpened >= 3:
				return 5, "multiple recent support requests",
					"follow up on open tickets proactively"
			}
			return 0, "", ""
		},
	},
	{
		name: "nps",
		eval: func(s Signal) (int, string, string) {
			if s.NPS == nil {
				return 0, "", ""
			}
			switch {
			case *s.NPS <= 6:
				return 15, "NPS detractor",
					"have an account manager call to hear the complaints"
			case *s.NPS <= 8:
				return 8, "NPS passive",
					"ask what would turn them into a promoter"
			}
			return 0, "", ""
		},
	},
	{
		name: "zero_revenue",
		eval: func(s Signal) (int, string, string) {
			if s.MonthlyRevenue == 0 {
				return 10, "on the free tier with no revenue",
					"present an upgrade path tied to their usage"
			}
			return 0, "", ""
		},
	},
	{
		name: "onboarding",
		eval: func(s Signal) (int, string, string) {
			if s.DaysSinceSignup < 30 && s.LoginsLast30Days < 5 {
				return 5, "onboarding risk: new account with few logins",
					"trigger the onboarding drip sequence"
			}
			return 0, "", ""
		},
	},
}

// Score evaluates the rule table against the signal. Malformed input never
// errors; negative counts are clamped to zero and a missing payment status
// is treated as current.
func Score(s Signal) Result {
	s = normalize(s)

	res := Result{}
	for _, r := range rules {
		points, reason, rec := r.eval(s)
		if points == 0 {
			continue
		}
		res.Points += points
		res.Reasons = append(res.Reasons, reason)
		res.Recommendations = append(res.Recommendations, rec)
	}

	if res.Points > maxPoints {
		res.Points = maxPoints
	}
	if res.Points == 0 {
		res.Reasons = []string{ReasonStable}
		res.Recommendations = []string{RecommendationStable}
	}

	res.Score = float64(res.Points) / float64(maxPoints)
	res.Tier = TierForPoints(res.Points)
	return res
}

// TierForPoints buckets a 0-100 point total into a risk tier.
func TierForPoints(points int) Tier {
	switch {
	case points >= criticalThreshold:
		return TierCritical
	case points >= highThreshold:
		return TierHigh
	case points >= mediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

func normalize(s Signal) Signal {
	if s.PaymentStatus == "" {
		s.PaymentStatus = model.PaymentStatusCurrent
	}
	if s.MonthlyRevenue < 0 {
		s.MonthlyRevenue = 0
	}
	if s.DaysSinceSignup < 0 {
		s.DaysSinceSignup = 0
	}
	if s.DaysSinceLastLogin < 0 {
		s.DaysSinceLastLogin = 0
	}
	if s.LoginsLast30Days < 0 {
		s.LoginsLast30Days = 0
	}
	if s.ActiveFeatures < 0 {
		s.ActiveFeatures = 0
	}
	if s.TicketsOpened < 0 {
		s.TicketsOpened = 0
	}
	if s.NPS != nil {
		nps := *s.NPS
		if nps < 0 {
			nps = 0
		}
		if nps > 10 {
			nps = 10
		}
		s.NPS = &nps
	}
	return s
}

// SignalFromCustomer builds a scoring signal from a stored customer row.
// A customer who never logged in is treated as inactive since signup.
func SignalFromCustomer(c *model.Customer, now time.Time) Signal {
	daysSinceSignup := int(now.Sub(c.SignupAt).Hours() / 24)
	daysSinceLogin := daysSinceSignup
	if c.LastLoginAt != nil {
		daysSinceLogin = int(now.Sub(*c.LastLoginAt).Hours() / 24)
	}

	return Signal{
		CustomerID:         c.ID,
		MonthlyRevenue:     c.MonthlyRevenue,
		PaymentStatus:      c.PaymentStatus,
		DaysSinceSignup:    daysSinceSignup,
		DaysSinceLastLogin: daysSinceLogin,
		LoginsLast30Days:   c.LoginsLast30Days,
		ActiveFeatures:     c.ActiveFeatures,
		TicketsOpened:      c.TicketsOpened,
		NPS:                c.NPSScore,
	}
}
