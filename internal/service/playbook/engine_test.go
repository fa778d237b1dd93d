package playbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retainly/retention-api/internal/email"
	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	"github.com/retainly/retention-api/internal/service/audit"
	"github.com/retainly/retention-api/pkg/logger"
	"github.com/retainly/retention-api/pkg/metrics"
)

// ---- in-memory fakes ----

type fakePlaybookRepo struct {
	playbooks []*model.Playbook
}

func (f *fakePlaybookRepo) Create(_ context.Context, p *model.Playbook) error { return nil }
func (f *fakePlaybookRepo) Get(_ context.Context, _, _ uuid.UUID) (*model.Playbook, error) {
	return nil, nil
}
func (f *fakePlaybookRepo) Update(_ context.Context, _ *model.Playbook) error { return nil }
func (f *fakePlaybookRepo) Delete(_ context.Context, _, _ uuid.UUID) error    { return nil }
func (f *fakePlaybookRepo) List(_ context.Context, _ uuid.UUID) ([]*model.Playbook, error) {
	return f.playbooks, nil
}
func (f *fakePlaybookRepo) ListActive(_ context.Context, _ uuid.UUID) ([]*model.Playbook, error) {
	active := []*model.Playbook{}
	for _, p := range f.playbooks {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

type fakeCustomerRepo struct {
	customers []*model.Customer
}

func (f *fakeCustomerRepo) Create(_ context.Context, _ *model.Customer) error { return nil }
func (f *fakeCustomerRepo) Get(_ context.Context, _, id uuid.UUID) (*model.Customer, error) {
	for _, c := range f.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("customer not found")
}
func (f *fakeCustomerRepo) Update(_ context.Context, _ *model.Customer) error { return nil }
func (f *fakeCustomerRepo) Delete(_ context.Context, _, _ uuid.UUID) error    { return nil }
func (f *fakeCustomerRepo) List(_ context.Context, _ uuid.UUID, _ *model.CustomerFilters) ([]*model.Customer, error) {
	return f.customers, nil
}
func (f *fakeCustomerRepo) UpsertByEmail(_ context.Context, _ *model.Customer) error   { return nil }
func (f *fakeCustomerRepo) UpdateRiskFields(_ context.Context, _ *model.Customer) error { return nil }

// fakeQueueRepo mirrors the partial unique index: at most one pending or
// in_progress row per (owner, customer, playbook, step).
type fakeQueueRepo struct {
	actions    []*model.QueuedAction
	failInsert error
}

func (f *fakeQueueRepo) Insert(_ context.Context, a *model.QueuedAction) error {
	if f.failInsert != nil {
		return f.failInsert
	}
	for _, existing := range f.actions {
		if existing.Status != model.ActionStatusPending && existing.Status != model.ActionStatusInProgress {
			continue
		}
		if existing.OwnerID == a.OwnerID && existing.CustomerID == a.CustomerID &&
			existing.PlaybookID == a.PlaybookID && existing.StepIndex == a.StepIndex {
			return repository.ErrDuplicatePending
		}
	}
	a.Status = model.ActionStatusPending
	f.actions = append(f.actions, a)
	return nil
}

func (f *fakeQueueRepo) Get(_ context.Context, _, id uuid.UUID) (*model.QueuedAction, error) {
	for _, a := range f.actions {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("queued action not found")
}

func (f *fakeQueueRepo) List(_ context.Context, _ uuid.UUID, status model.ActionStatus, _ int) ([]*model.QueuedAction, error) {
	out := []*model.QueuedAction{}
	for _, a := range f.actions {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeQueueRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]*model.QueuedAction, error) {
	due := []*model.QueuedAction{}
	for _, a := range f.actions {
		if a.Status == model.ActionStatusPending && !a.ScheduledFor.After(now) {
			due = append(due, a)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, a := range due {
		a.Status = model.ActionStatusInProgress
	}
	return due, nil
}

func (f *fakeQueueRepo) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return f.setStatus(id, model.ActionStatusCompleted, nil)
}

func (f *fakeQueueRepo) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	return f.setStatus(id, model.ActionStatusFailed, &msg)
}

func (f *fakeQueueRepo) setStatus(id uuid.UUID, status model.ActionStatus, msg *string) error {
	for _, a := range f.actions {
		if a.ID == id {
			a.Status = status
			a.ErrorMessage = msg
			return nil
		}
	}
	return fmt.Errorf("queued action not found")
}

func (f *fakeQueueRepo) ReclaimStale(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeQueueRepo) CountPending(_ context.Context) (int64, error) {
	var n int64
	for _, a := range f.actions {
		if a.Status == model.ActionStatusPending {
			n++
		}
	}
	return n, nil
}

type fakeLogRepo struct {
	entries []*model.ActionLog
}

func (f *fakeLogRepo) Create(_ context.Context, e *model.ActionLog) error {
	f.entries = append(f.entries, e)
	return nil
}
func (f *fakeLogRepo) List(_ context.Context, _ uuid.UUID, _ *model.ActionLogFilters) ([]*model.ActionLog, error) {
	return f.entries, nil
}

type fakeEmail struct {
	sent []string // template|recipient
	err  error
}

func (f *fakeEmail) SendTemplate(_ context.Context, templateID, to string, _ email.Vars) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, templateID+"|"+to)
	return nil
}

// ---- helpers ----

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

type engineFixture struct {
	engine    *Engine
	playbooks *fakePlaybookRepo
	customers *fakeCustomerRepo
	queue     *fakeQueueRepo
	email     *fakeEmail
	logs      *fakeLogRepo
}

func newEngineFixture(cfg EngineConfig) *engineFixture {
	f := &engineFixture{
		playbooks: &fakePlaybookRepo{},
		customers: &fakeCustomerRepo{},
		queue:     &fakeQueueRepo{},
		email:     &fakeEmail{},
		logs:      &fakeLogRepo{},
	}
	f.engine = NewEngine(
		f.playbooks,
		f.customers,
		f.queue,
		f.email,
		audit.NewService(f.logs),
		nil,
		testLogger(),
		metrics.NewNop(),
		cfg,
	)
	f.engine.now = func() time.Time { return testNow }
	return f
}

func highRiskCustomer(ownerID uuid.UUID) *model.Customer {
	return &model.Customer{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Email:     "risky@example.com",
		Name:      "Risky",
		Plan:      "pro",
		RiskLevel: "high",
		SignupAt:  testNow.AddDate(0, 0, -200),
	}
}

func emailPlaybook(ownerID uuid.UUID) *model.Playbook {
	return &model.Playbook{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Name:    "winback high risk",
		Active:  true,
		Conditions: model.ConditionList{
			{Field: model.FieldRiskLevel, Operator: model.OpEqual, Value: "high"},
		},
		Actions: model.ActionList{
			{Type: model.ActionSendEmail, Value: "winback"},
		},
	}
}

// ---- tests ----

func TestEngineQueuesMatchedActions(t *testing.T) {
	ownerID := uuid.New()
	f := newEngineFixture(EngineConfig{})
	pb := emailPlaybook(ownerID)
	c := highRiskCustomer(ownerID)
	f.playbooks.playbooks = []*model.Playbook{pb}
	f.customers.customers = []*model.Customer{c}

	summary, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Matches)
	assert.Equal(t, 1, summary.ActionsQueued)
	assert.Equal(t, 0, summary.Errors)
	require.Len(t, f.queue.actions, 1)

	queued := f.queue.actions[0]
	assert.Equal(t, model.ActionStatusPending, queued.Status)
	assert.Equal(t, 0, queued.StepIndex)
	assert.Equal(t, model.ActionSendEmail, queued.ActionType)
	assert.Equal(t, "winback", queued.ActionValue)
	assert.Equal(t, testNow, queued.ScheduledFor)
	assert.Equal(t, pb.ID, queued.PlaybookID)
	assert.Equal(t, c.ID, queued.CustomerID)
}

func TestEngineIsIdempotentAcrossRuns(t *testing.T) {
	ownerID := uuid.New()
	f := newEngineFixture(EngineConfig{})
	f.playbooks.playbooks = []*model.Playbook{emailPlaybook(ownerID)}
	f.customers.customers = []*model.Customer{highRiskCustomer(ownerID)}

	first, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)
	second, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)

	assert.Equal(t, 1, first.ActionsQueued)
	assert.Equal(t, 0, second.ActionsQueued)
	assert.Equal(t, 1, second.ActionsSkipped)
	assert.Len(t, f.queue.actions, 1)
}

func TestEngineSkipsNonMatchingCustomers(t *testing.T) {
	ownerID := uuid.New()
	f := newEngineFixture(EngineConfig{})
	f.playbooks.playbooks = []*model.Playbook{emailPlaybook(ownerID)}

	safe := highRiskCustomer(ownerID)
	safe.RiskLevel = "low"
	f.customers.customers = []*model.Customer{safe}

	summary, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Matches)
	assert.Empty(t, f.queue.actions)
}

func TestEngineSchedulesWaitActions(t *testing.T) {
	ownerID := uuid.New()
	f := newEngineFixture(EngineConfig{})

	pb := emailPlaybook(ownerID)
	pb.Actions = model.ActionList{
		{Type: model.ActionWait, Value: "3"},
		{Type: model.ActionAddTag, Value: "at-risk"},
	}
	f.playbooks.playbooks = []*model.Playbook{pb}
	f.customers.customers = []*model.Customer{highRiskCustomer(ownerID)}

	summary, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ActionsQueued)
	require.Len(t, f.queue.actions, 2)

	wait := f.queue.actions[0]
	assert.Equal(t, model.ActionWait, wait.ActionType)
	assert.Equal(t, 0, wait.StepIndex)
	assert.Equal(t, testNow.AddDate(0, 0, 3), wait.ScheduledFor)

	tag := f.queue.actions[1]
	assert.Equal(t, model.ActionAddTag, tag.ActionType)
	assert.Equal(t, 1, tag.StepIndex)
	assert.Equal(t, testNow, tag.ScheduledFor)
}

func TestWaitDays(t *testing.T) {
	assert.Equal(t, 3, waitDays("3"))
	assert.Equal(t, 7, waitDays(" 7 "))
	assert.Equal(t, 0, waitDays("soon"))
	assert.Equal(t, 0, waitDays(""))
	assert.Equal(t, 0, waitDays("-2"))
}

func TestEngineImmediateEmailDispatch(t *testing.T) {
	ownerID := uuid.New()
	f := newEngineFixture(EngineConfig{EmailDispatch: DispatchImmediate})

	pb := emailPlaybook(ownerID)
	pb.Actions = model.ActionList{
		{Type: model.ActionSendEmail, Value: "winback"},
		{Type: model.ActionAddTag, Value: "contacted"},
	}
	f.playbooks.playbooks = []*model.Playbook{pb}
	f.customers.customers = []*model.Customer{highRiskCustomer(ownerID)}

	summary, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)

	// Email sent inline, tag still queued.
	assert.Equal(t, 1, summary.EmailsSent)
	assert.Equal(t, 1, summary.ActionsQueued)
	assert.Equal(t, []string{"winback|risky@example.com"}, f.email.sent)
	require.Len(t, f.queue.actions, 1)
	assert.Equal(t, model.ActionAddTag, f.queue.actions[0].ActionType)

	// Inline send is audit-logged.
	require.Len(t, f.logs.entries, 1)
	assert.Equal(t, model.ActionLogStatusSent, f.logs.entries[0].Status)
}

func TestEngineImmediateEmailFailureIsLogged(t *testing.T) {
	ownerID := uuid.New()
	f := newEngineFixture(EngineConfig{EmailDispatch: DispatchImmediate})
	f.email.err = errors.New("smtp unavailable")
	f.playbooks.playbooks = []*model.Playbook{emailPlaybook(ownerID)}
	f.customers.customers = []*model.Customer{highRiskCustomer(ownerID)}

	summary, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.EmailsSent)
	assert.Equal(t, 1, summary.Errors)
	require.Len(t, f.logs.entries, 1)
	assert.Equal(t, model.ActionLogStatusFailed, f.logs.entries[0].Status)
	require.NotNil(t, f.logs.entries[0].ErrorMessage)
	assert.Contains(t, *f.logs.entries[0].ErrorMessage, "smtp unavailable")
}

func TestEngineContinuesPastInsertFailures(t *testing.T) {
	ownerID := uuid.New()
	f := newEngineFixture(EngineConfig{})
	f.queue.failInsert = errors.New("connection reset")

	pb := emailPlaybook(ownerID)
	f.playbooks.playbooks = []*model.Playbook{pb}
	f.customers.customers = []*model.Customer{
		highRiskCustomer(ownerID),
		highRiskCustomer(ownerID),
	}

	summary, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)

	// Both pairs attempted, both failed, run not aborted.
	assert.Equal(t, 2, summary.Matches)
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 0, summary.ActionsQueued)
}

func TestEngineIgnoresInactivePlaybooks(t *testing.T) {
	ownerID := uuid.New()
	f := newEngineFixture(EngineConfig{})

	pb := emailPlaybook(ownerID)
	pb.Active = false
	f.playbooks.playbooks = []*model.Playbook{pb}
	f.customers.customers = []*model.Customer{highRiskCustomer(ownerID)}

	summary, err := f.engine.Run(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.PlaybooksEvaluated)
	assert.Empty(t, f.queue.actions)
}
