package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retainly/retention-api/internal/model"
)

func intPtr(v int) *int { return &v }

func TestScoreHighRiskCustomer(t *testing.T) {
	// Failed payment (30) + inactive >30d (25) + zero logins (20) +
	// no adoption (15) + zero revenue (10) = 100, capped.
	sig := Signal{
		PaymentStatus:      model.PaymentStatusFailed,
		DaysSinceLastLogin: 45,
		LoginsLast30Days:   0,
		ActiveFeatures:     0,
		TicketsOpened:      0,
		MonthlyRevenue:     0,
		DaysSinceSignup:    100,
	}

	res := Score(sig)
	assert.Equal(t, 100, res.Points)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, TierCritical, res.Tier)
	assert.Len(t, res.Reasons, 5)
	assert.Len(t, res.Recommendations, 5)
	assert.False(t, res.Stable())
}

func TestScoreStableCustomer(t *testing.T) {
	sig := Signal{
		PaymentStatus:      model.PaymentStatusCurrent,
		DaysSinceLastLogin: 5,
		LoginsLast30Days:   20,
		ActiveFeatures:     5,
		TicketsOpened:      0,
		NPS:                intPtr(9),
		MonthlyRevenue:     500,
		DaysSinceSignup:    400,
	}

	res := Score(sig)
	assert.Equal(t, 0, res.Points)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, TierLow, res.Tier)
	assert.Equal(t, []string{ReasonStable}, res.Reasons)
	assert.Equal(t, []string{RecommendationStable}, res.Recommendations)
	assert.True(t, res.Stable())
}

func TestScoreRuleTable(t *testing.T) {
	healthy := Signal{
		PaymentStatus:      model.PaymentStatusCurrent,
		DaysSinceLastLogin: 1,
		LoginsLast30Days:   20,
		ActiveFeatures:     5,
		TicketsOpened:      0,
		NPS:                intPtr(10),
		MonthlyRevenue:     100,
		DaysSinceSignup:    365,
	}

	tests := []struct {
		name   string
		mutate func(*Signal)
		points int
	}{
		{"overdue payment", func(s *Signal) { s.PaymentStatus = model.PaymentStatusOverdue }, 30},
		{"failed payment", func(s *Signal) { s.PaymentStatus = model.PaymentStatusFailed }, 30},
		{"inactive over 30d", func(s *Signal) { s.DaysSinceLastLogin = 31 }, 25},
		{"inactive 14-30d lower bound", func(s *Signal) { s.DaysSinceLastLogin = 14 }, 15},
		{"inactive 14-30d upper bound", func(s *Signal) { s.DaysSinceLastLogin = 30 }, 15},
		{"two logins", func(s *Signal) { s.LoginsLast30Days = 2 }, 12},
		{"one feature", func(s *Signal) { s.ActiveFeatures = 1 }, 8},
		{"six tickets", func(s *Signal) { s.TicketsOpened = 6 }, 10},
		{"three tickets", func(s *Signal) { s.TicketsOpened = 3 }, 5},
		{"five tickets", func(s *Signal) { s.TicketsOpened = 5 }, 5},
		{"nps detractor", func(s *Signal) { s.NPS = intPtr(6) }, 15},
		{"nps passive", func(s *Signal) { s.NPS = intPtr(7) }, 8},
		{"nps unanswered", func(s *Signal) { s.NPS = nil }, 0},
		{"zero revenue", func(s *Signal) { s.MonthlyRevenue = 0 }, 10},
		{"onboarding risk", func(s *Signal) { s.DaysSinceSignup = 10; s.LoginsLast30Days = 4 }, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := healthy
			tt.mutate(&sig)
			res := Score(sig)
			assert.Equal(t, tt.points, res.Points)
		})
	}
}

func TestScoreFamiliesAreExclusive(t *testing.T) {
	// 45 days inactive must fire only the >30d rule, not both inactivity rules.
	sig := Signal{
		PaymentStatus:      model.PaymentStatusCurrent,
		DaysSinceLastLogin: 45,
		LoginsLast30Days:   10,
		ActiveFeatures:     3,
		MonthlyRevenue:     100,
		DaysSinceSignup:    200,
	}
	res := Score(sig)
	assert.Equal(t, 25, res.Points)
	assert.Len(t, res.Reasons, 1)
}

func TestScoreDeterministic(t *testing.T) {
	sig := Signal{
		PaymentStatus:      model.PaymentStatusOverdue,
		DaysSinceLastLogin: 20,
		LoginsLast30Days:   1,
		ActiveFeatures:     1,
		TicketsOpened:      4,
		NPS:                intPtr(5),
		MonthlyRevenue:     50,
		DaysSinceSignup:    60,
	}

	first := Score(sig)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Score(sig))
	}
}

func TestScoreMonotonicity(t *testing.T) {
	base := Signal{
		PaymentStatus:      model.PaymentStatusCurrent,
		DaysSinceLastLogin: 5,
		LoginsLast30Days:   20,
		ActiveFeatures:     5,
		TicketsOpened:      0,
		NPS:                intPtr(9),
		MonthlyRevenue:     500,
		DaysSinceSignup:    400,
	}

	worsen := []func(*Signal){
		func(s *Signal) { s.NPS = intPtr(5) },
		func(s *Signal) { s.TicketsOpened = 6 },
		func(s *Signal) { s.PaymentStatus = model.PaymentStatusFailed },
		func(s *Signal) { s.DaysSinceLastLogin = 40 },
		func(s *Signal) { s.LoginsLast30Days = 0 },
		func(s *Signal) { s.ActiveFeatures = 0 },
		func(s *Signal) { s.MonthlyRevenue = 0 },
	}

	sig := base
	prev := Score(sig).Points
	for _, w := range worsen {
		w(&sig)
		cur := Score(sig).Points
		assert.GreaterOrEqual(t, cur, prev, "adding a negative signal must not decrease the score")
		prev = cur
	}
}

func TestScoreBounds(t *testing.T) {
	// Worst case sum exceeds 100 and must be capped.
	worst := Signal{
		PaymentStatus:      model.PaymentStatusFailed,
		DaysSinceLastLogin: 90,
		LoginsLast30Days:   0,
		ActiveFeatures:     0,
		TicketsOpened:      10,
		NPS:                intPtr(0),
		MonthlyRevenue:     0,
		DaysSinceSignup:    5,
	}
	res := Score(worst)
	assert.Equal(t, 100, res.Points)
	assert.Equal(t, 1.0, res.Score)

	// Negative garbage coerces to safe defaults rather than erroring.
	garbage := Signal{
		MonthlyRevenue:     -10,
		DaysSinceSignup:    -1,
		DaysSinceLastLogin: -5,
		LoginsLast30Days:   -3,
		ActiveFeatures:     -2,
		TicketsOpened:      -7,
		NPS:                intPtr(-4),
	}
	res = Score(garbage)
	assert.GreaterOrEqual(t, res.Points, 0)
	assert.LessOrEqual(t, res.Points, 100)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestTierForPoints(t *testing.T) {
	tests := []struct {
		points int
		tier   Tier
	}{
		{0, TierLow},
		{29, TierLow},
		{30, TierMedium},
		{49, TierMedium},
		{50, TierHigh},
		{69, TierHigh},
		{70, TierCritical},
		{100, TierCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, TierForPoints(tt.points), "points=%d", tt.points)
	}
}

func TestSignalFromCustomer(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	signup := now.AddDate(0, 0, -100)
	lastLogin := now.AddDate(0, 0, -7)

	c := &model.Customer{
		SignupAt:         signup,
		LastLoginAt:      &lastLogin,
		MonthlyRevenue:   200,
		PaymentStatus:    model.PaymentStatusCurrent,
		LoginsLast30Days: 12,
		ActiveFeatures:   4,
		TicketsOpened:    1,
		NPSScore:         intPtr(8),
	}

	sig := SignalFromCustomer(c, now)
	assert.Equal(t, 100, sig.DaysSinceSignup)
	assert.Equal(t, 7, sig.DaysSinceLastLogin)
	require.NotNil(t, sig.NPS)
	assert.Equal(t, 8, *sig.NPS)

	// Never logged in: inactive since signup.
	c.LastLoginAt = nil
	sig = SignalFromCustomer(c, now)
	assert.Equal(t, 100, sig.DaysSinceLastLogin)
}
