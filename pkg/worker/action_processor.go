package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/retainly/retention-api/internal/crm"
	"github.com/retainly/retention-api/internal/email"
	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	"github.com/retainly/retention-api/internal/service/audit"
	"github.com/retainly/retention-api/pkg/logger"
	"github.com/retainly/retention-api/pkg/messaging"
	"github.com/retainly/retention-api/pkg/metrics"
)

type ActionProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// ActionProcessor drains due queued actions and performs their side effects.
// Claiming is atomic (pending to in_progress in one statement), so
// overlapping processor runs never double-execute an action.
type ActionProcessor struct {
	queue     repository.QueuedActionRepository
	customers repository.CustomerRepository
	emailSvc  email.Service
	crmSvc    crm.Service
	auditor   *audit.Service
	broker    messaging.Broker
	config    ActionProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
	// customerCache memoizes personalization lookups within a few polls;
	// the same customer often has several due actions back to back.
	customerCache *cache.Cache
	now           func() time.Time
}

func NewActionProcessor(
	queue repository.QueuedActionRepository,
	customers repository.CustomerRepository,
	emailSvc email.Service,
	crmSvc crm.Service,
	auditor *audit.Service,
	broker messaging.Broker,
	config ActionProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ActionProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}

	return &ActionProcessor{
		queue:         queue,
		customers:     customers,
		emailSvc:      emailSvc,
		crmSvc:        crmSvc,
		auditor:       auditor,
		broker:        broker,
		config:        config,
		logger:        logger,
		metrics:       metrics,
		customerCache: cache.New(time.Minute, 5*time.Minute),
		now:           time.Now,
	}
}

func (p *ActionProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting action processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down action processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessDue(ctx); err != nil {
				p.logger.Error(err, "failed to process due actions")
			}
		}
	}
}

// RunSummary reports one drain pass.
type RunSummary struct {
	Considered int `json:"considered"`
	Executed   int `json:"executed"`
	Failed     int `json:"failed"`
}

// ProcessDue claims and executes one batch of due actions. A failure in one
// action is recorded on that action only; every claimed action leaves this
// method as completed or failed, never stuck in_progress.
func (p *ActionProcessor) ProcessDue(ctx context.Context) (*RunSummary, error) {
	timer := prometheus.NewTimer(p.metrics.ExecutionDuration)
	defer timer.ObserveDuration()

	actions, err := p.queue.ClaimDue(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_due", "error").Inc()
		return nil, fmt.Errorf("failed to claim due actions: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_due", "success").Inc()

	summary := &RunSummary{Considered: len(actions)}
	for _, action := range actions {
		if err := p.execute(ctx, action); err != nil {
			summary.Failed++
			p.finish(ctx, action, model.ActionStatusFailed, err)
			continue
		}
		summary.Executed++
		p.finish(ctx, action, model.ActionStatusCompleted, nil)
	}

	if pending, err := p.queue.CountPending(ctx); err == nil {
		p.metrics.PendingQueueSize.Set(float64(pending))
	}

	if summary.Considered > 0 {
		p.logger.Info("drained due actions",
			"considered", summary.Considered,
			"executed", summary.Executed,
			"failed", summary.Failed,
		)
	}
	return summary, nil
}

// execute performs the action's side effect. A panic in a collaborator is
// converted into an error so one bad action cannot take down the batch.
func (p *ActionProcessor) execute(ctx context.Context, action *model.QueuedAction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action execution panicked: %v", r)
		}
	}()

	switch action.ActionType {
	case model.ActionSendEmail:
		customer, err := p.lookupCustomer(ctx, action.OwnerID, action.CustomerID)
		if err != nil {
			return fmt.Errorf("failed to load customer for email: %w", err)
		}
		return p.emailSvc.SendTemplate(ctx, action.ActionValue, customer.Email, email.Vars{
			"name":  customer.Name,
			"email": customer.Email,
		})

	case model.ActionAddTag:
		return p.crmSvc.AddTag(ctx, action.OwnerID, action.CustomerID, action.ActionValue)

	case model.ActionAddToCRM:
		customer, err := p.lookupCustomer(ctx, action.OwnerID, action.CustomerID)
		if err != nil {
			return fmt.Errorf("failed to load customer for CRM upsert: %w", err)
		}
		return p.crmSvc.UpsertContact(ctx, action.OwnerID, action.CustomerID, customer.Email, customer.Name)

	case model.ActionWait:
		// The delay was honored by scheduled_for; nothing left to do.
		return nil

	default:
		return fmt.Errorf("unknown action type: %s", action.ActionType)
	}
}

// finish transitions the claimed action, appends the audit entry and
// publishes the outcome event. Bookkeeping failures are logged, never
// propagated: the dispatch outcome already happened.
func (p *ActionProcessor) finish(ctx context.Context, action *model.QueuedAction, status model.ActionStatus, execErr error) {
	var errMsg *string
	logStatus := model.ActionLogStatusCompleted

	if status == model.ActionStatusFailed {
		msg := execErr.Error()
		errMsg = &msg
		logStatus = model.ActionLogStatusFailed
		p.metrics.ActionsFailed.WithLabelValues(string(action.ActionType)).Inc()
		p.logger.Error(execErr, "action failed",
			"action_id", action.ID.String(),
			"action_type", string(action.ActionType),
		)

		if err := p.queue.MarkFailed(ctx, action.ID, msg); err != nil {
			p.logger.Error(err, "failed to mark action failed", "action_id", action.ID.String())
		}
	} else {
		p.metrics.ActionsExecuted.WithLabelValues(string(action.ActionType)).Inc()
		if err := p.queue.MarkCompleted(ctx, action.ID); err != nil {
			p.logger.Error(err, "failed to mark action completed", "action_id", action.ID.String())
		}
	}

	if err := p.auditor.Record(ctx, action.OwnerID, action.CustomerID, action.PlaybookID,
		action.ActionType, action.ActionValue, logStatus, errMsg); err != nil {
		p.logger.Error(err, "failed to append action log", "action_id", action.ID.String())
	}

	if p.broker != nil {
		event := messaging.ActionEvent{
			ActionID:   action.ID.String(),
			OwnerID:    action.OwnerID.String(),
			CustomerID: action.CustomerID.String(),
			PlaybookID: action.PlaybookID.String(),
			ActionType: string(action.ActionType),
			Status:     string(status),
		}
		if errMsg != nil {
			event.Error = *errMsg
		}
		if err := p.broker.Publish(ctx, messaging.ChannelActionEvents, event); err != nil {
			p.logger.Error(err, "failed to publish action event", "action_id", action.ID.String())
		}
	}
}

func (p *ActionProcessor) lookupCustomer(ctx context.Context, ownerID, customerID uuid.UUID) (*model.Customer, error) {
	key := ownerID.String() + "/" + customerID.String()
	if cached, ok := p.customerCache.Get(key); ok {
		return cached.(*model.Customer), nil
	}

	customer, err := p.customers.Get(ctx, ownerID, customerID)
	if err != nil {
		return nil, err
	}
	p.customerCache.SetDefault(key, customer)
	return customer, nil
}
