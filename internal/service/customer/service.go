package customer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	"github.com/retainly/retention-api/internal/scoring"
	"github.com/retainly/retention-api/pkg/logger"
	"github.com/retainly/retention-api/pkg/metrics"
)

// Service owns customer records and applies the scoring engine to them.
type Service struct {
	repo    repository.CustomerRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.CustomerRepository, logger *logger.Logger, metrics *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateCustomerRequest) (*model.Customer, error) {
	customer := customerFromRequest(ownerID, req, s.now())
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	// Score at creation so risk fields are never empty.
	if err := s.scoreAndPersist(ctx, customer); err != nil {
		s.logger.Error(err, "failed to score new customer", "customer_id", customer.ID.String())
	}
	return customer, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Customer, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, filters *model.CustomerFilters) ([]*model.Customer, error) {
	return s.repo.List(ctx, ownerID, filters)
}

func (s *Service) Update(ctx context.Context, customer *model.Customer) error {
	if err := s.repo.Update(ctx, customer); err != nil {
		return err
	}
	return s.scoreAndPersist(ctx, customer)
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repo.Delete(ctx, ownerID, id)
}

// Score recomputes one customer's churn assessment and persists it.
func (s *Service) Score(ctx context.Context, ownerID, id uuid.UUID) (*model.Customer, error) {
	customer, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.scoreAndPersist(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// ScoreSummary reports a population scoring sweep.
type ScoreSummary struct {
	Scored int `json:"scored"`
	Failed int `json:"failed"`
}

// ScoreAll rescans the owner's whole population. A failure on one customer
// is logged and counted; the sweep continues.
func (s *Service) ScoreAll(ctx context.Context, ownerID uuid.UUID) (*ScoreSummary, error) {
	timer := prometheus.NewTimer(s.metrics.ScoringDuration)
	defer timer.ObserveDuration()

	customers, err := s.repo.List(ctx, ownerID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	summary := &ScoreSummary{}
	for _, c := range customers {
		if err := s.scoreAndPersist(ctx, c); err != nil {
			s.logger.Error(err, "failed to score customer", "customer_id", c.ID.String())
			summary.Failed++
			continue
		}
		summary.Scored++
	}
	return summary, nil
}

func (s *Service) scoreAndPersist(ctx context.Context, customer *model.Customer) error {
	s.metrics.ScoringRequests.Inc()

	result := scoring.Score(scoring.SignalFromCustomer(customer, s.now()))
	customer.ChurnScore = result.Score
	customer.RiskLevel = string(result.Tier)
	customer.ChurnReason = strings.Join(result.Reasons, "; ")
	customer.ActionRecommended = strings.Join(result.Recommendations, "; ")

	return s.repo.UpdateRiskFields(ctx, customer)
}

func customerFromRequest(ownerID uuid.UUID, req *model.CreateCustomerRequest, now time.Time) *model.Customer {
	signupAt := now
	if req.SignupAt != nil {
		signupAt = *req.SignupAt
	}
	paymentStatus := model.PaymentStatus(req.PaymentStatus)
	if paymentStatus == "" {
		paymentStatus = model.PaymentStatusCurrent
	}

	return &model.Customer{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Email:            req.Email,
		Name:             req.Name,
		Plan:             req.Plan,
		UserStage:        req.UserStage,
		MonthlyRevenue:   req.MonthlyRevenue,
		PaymentStatus:    paymentStatus,
		SignupAt:         signupAt,
		LastLoginAt:      req.LastLoginAt,
		LoginsLast30Days: req.LoginsLast30Days,
		ActiveFeatures:   req.ActiveFeatures,
		TicketsOpened:    req.TicketsOpened,
		NPSScore:         req.NPSScore,
		UsageMinutes:     req.UsageMinutes,
	}
}
