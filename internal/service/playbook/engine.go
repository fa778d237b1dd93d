package playbook

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/retainly/retention-api/internal/email"
	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	"github.com/retainly/retention-api/internal/service/audit"
	"github.com/retainly/retention-api/pkg/logger"
	"github.com/retainly/retention-api/pkg/messaging"
	"github.com/retainly/retention-api/pkg/metrics"
)

// DispatchMode controls how send_email actions are handled at match time.
type DispatchMode string

const (
	// DispatchDeferred queues every action uniformly.
	DispatchDeferred DispatchMode = "deferred"
	// DispatchImmediate sends emails inline at match time; other action
	// types still go through the queue.
	DispatchImmediate DispatchMode = "immediate"
)

type EngineConfig struct {
	// EmailDispatch selects deferred or immediate handling of send_email.
	// Never mixed within a run.
	EmailDispatch DispatchMode
}

// Engine evaluates every active playbook against the owner's customer
// population and queues matched actions. Queue inserts are deduplicated by
// the storage layer: at most one pending row per (owner, customer, playbook,
// step), so repeated runs are idempotent.
type Engine struct {
	playbooks repository.PlaybookRepository
	customers repository.CustomerRepository
	queue     repository.QueuedActionRepository
	emailSvc  email.Service
	auditor   *audit.Service
	broker    messaging.Broker
	logger    *logger.Logger
	metrics   *metrics.Metrics
	cfg       EngineConfig
	now       func() time.Time
}

func NewEngine(
	playbooks repository.PlaybookRepository,
	customers repository.CustomerRepository,
	queue repository.QueuedActionRepository,
	emailSvc email.Service,
	auditor *audit.Service,
	broker messaging.Broker,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	cfg EngineConfig,
) *Engine {
	if cfg.EmailDispatch == "" {
		cfg.EmailDispatch = DispatchDeferred
	}
	return &Engine{
		playbooks: playbooks,
		customers: customers,
		queue:     queue,
		emailSvc:  emailSvc,
		auditor:   auditor,
		broker:    broker,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunSummary is the only health signal an engine sweep exposes.
type RunSummary struct {
	OwnerID            uuid.UUID `json:"owner_id"`
	PlaybooksEvaluated int       `json:"playbooks_evaluated"`
	CustomersEvaluated int       `json:"customers_evaluated"`
	Matches            int       `json:"matches"`
	ActionsQueued      int       `json:"actions_queued"`
	ActionsSkipped     int       `json:"actions_skipped"`
	EmailsSent         int       `json:"emails_sent"`
	Errors             int       `json:"errors"`
}

// Run sweeps one owner's playbooks over their customers. An error on one
// playbook/customer pair is counted and the sweep continues; only failures
// to load the inputs abort the run.
func (e *Engine) Run(ctx context.Context, ownerID uuid.UUID) (*RunSummary, error) {
	timer := prometheus.NewTimer(e.metrics.EngineRunDuration)
	defer timer.ObserveDuration()

	playbooks, err := e.playbooks.ListActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	customers, err := e.customers.List(ctx, ownerID, nil)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		OwnerID:            ownerID,
		PlaybooksEvaluated: len(playbooks),
		CustomersEvaluated: len(customers),
	}

	now := e.now()
	for _, pb := range playbooks {
		e.metrics.PlaybooksEvaluated.Inc()
		for _, c := range customers {
			if !matches(pb, c, now) {
				continue
			}
			summary.Matches++
			e.metrics.PlaybookMatches.Inc()
			e.processMatch(ctx, pb, c, now, summary)
		}
	}

	e.logger.Info("playbook engine run finished",
		"owner_id", ownerID.String(),
		"matches", summary.Matches,
		"queued", summary.ActionsQueued,
		"skipped", summary.ActionsSkipped,
		"errors", summary.Errors,
	)

	if e.broker != nil {
		if err := e.broker.Publish(ctx, messaging.ChannelEngineRuns, summary); err != nil {
			e.logger.Error(err, "failed to publish run summary")
		}
	}
	return summary, nil
}

func (e *Engine) processMatch(ctx context.Context, pb *model.Playbook, c *model.Customer, now time.Time, summary *RunSummary) {
	for step, action := range pb.Actions {
		if action.Type == model.ActionSendEmail && e.cfg.EmailDispatch == DispatchImmediate {
			e.sendInline(ctx, pb, c, action, summary)
			continue
		}

		scheduledFor := now
		if action.Type == model.ActionWait {
			scheduledFor = now.AddDate(0, 0, waitDays(action.Value))
		}

		queued := &model.QueuedAction{
			ID:           uuid.New(),
			OwnerID:      pb.OwnerID,
			CustomerID:   c.ID,
			PlaybookID:   pb.ID,
			StepIndex:    step,
			ActionType:   action.Type,
			ActionValue:  action.Value,
			ScheduledFor: scheduledFor,
		}

		err := e.queue.Insert(ctx, queued)
		switch {
		case errors.Is(err, repository.ErrDuplicatePending):
			summary.ActionsSkipped++
			e.metrics.ActionsSkipped.Inc()
		case err != nil:
			summary.Errors++
			e.metrics.EngineErrors.Inc()
			e.logger.Error(err, "failed to queue action",
				"playbook_id", pb.ID.String(),
				"customer_id", c.ID.String(),
				"step", step,
			)
		default:
			summary.ActionsQueued++
			e.metrics.ActionsQueued.Inc()
		}
	}
}

// sendInline performs a send_email action synchronously at match time,
// bypassing the queue. Outcomes still land in the action log.
func (e *Engine) sendInline(ctx context.Context, pb *model.Playbook, c *model.Customer, action model.Action, summary *RunSummary) {
	err := e.emailSvc.SendTemplate(ctx, action.Value, c.Email, email.Vars{
		"name":  c.Name,
		"email": c.Email,
	})

	status := model.ActionLogStatusSent
	var errMsg *string
	if err != nil {
		status = model.ActionLogStatusFailed
		msg := err.Error()
		errMsg = &msg
		summary.Errors++
		e.metrics.EngineErrors.Inc()
		e.logger.Error(err, "inline email send failed",
			"playbook_id", pb.ID.String(),
			"customer_id", c.ID.String(),
		)
	} else {
		summary.EmailsSent++
	}

	if auditErr := e.auditor.Record(ctx, pb.OwnerID, c.ID, pb.ID, action.Type, action.Value, status, errMsg); auditErr != nil {
		e.logger.Error(auditErr, "failed to record inline send")
	}
}

// waitDays parses a wait action's value as whole days, 0 when unparseable.
func waitDays(value string) int {
	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || days < 0 {
		return 0
	}
	return days
}
