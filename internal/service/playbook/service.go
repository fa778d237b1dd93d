package playbook

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	apperrors "github.com/retainly/retention-api/pkg/errors"
	"github.com/retainly/retention-api/pkg/logger"
)

// Service owns playbook definitions. The engine (engine.go) only ever reads
// them.
type Service struct {
	repo     repository.PlaybookRepository
	validate *validator.Validate
	logger   *logger.Logger
}

func NewService(repo repository.PlaybookRepository, logger *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *model.CreatePlaybookRequest) (*model.Playbook, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	playbook := &model.Playbook{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       req.Name,
		Active:     active,
		Conditions: model.ConditionList(req.Conditions),
		Actions:    model.ActionList(req.Actions),
	}

	// An empty condition list matches every customer. Intentional match-all
	// semantics, but worth a trace when it happens.
	if len(playbook.Conditions) == 0 {
		s.logger.Warn("playbook created with no conditions, it will match all customers",
			"playbook", playbook.Name, "owner_id", ownerID.String())
	}

	if err := s.repo.Create(ctx, playbook); err != nil {
		return nil, fmt.Errorf("failed to create playbook: %w", err)
	}
	return playbook, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Playbook, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*model.Playbook, error) {
	return s.repo.List(ctx, ownerID)
}

func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, req *model.CreatePlaybookRequest) (*model.Playbook, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	playbook, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	playbook.Name = req.Name
	if req.Active != nil {
		playbook.Active = *req.Active
	}
	playbook.Conditions = model.ConditionList(req.Conditions)
	playbook.Actions = model.ActionList(req.Actions)

	if err := s.repo.Update(ctx, playbook); err != nil {
		return nil, fmt.Errorf("failed to update playbook: %w", err)
	}
	return playbook, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.repo.Delete(ctx, ownerID, id)
}

func (s *Service) validateRequest(req *model.CreatePlaybookRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperrors.BadRequest("invalid playbook", err)
	}
	if len(req.Actions) == 0 {
		return apperrors.BadRequest("playbook must have at least one action", nil)
	}
	for _, cond := range req.Conditions {
		if !model.IsValidConditionField(string(cond.Field)) {
			return apperrors.BadRequest(fmt.Sprintf("unknown condition field %q", cond.Field), nil)
		}
		if !model.IsValidOperator(string(cond.Operator)) {
			return apperrors.BadRequest(fmt.Sprintf("unknown operator %q", cond.Operator), nil)
		}
	}
	for _, action := range req.Actions {
		if !model.IsValidActionType(string(action.Type)) {
			return apperrors.BadRequest(fmt.Sprintf("unknown action type %q", action.Type), nil)
		}
	}
	return nil
}
