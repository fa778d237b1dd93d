package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
)

// Service appends action execution attempts to the immutable action log.
type Service struct {
	repo repository.ActionLogRepository
}

func NewService(repo repository.ActionLogRepository) *Service {
	return &Service{repo: repo}
}

// Record writes one log entry. errMsg is nil for successful attempts.
func (s *Service) Record(ctx context.Context, ownerID, customerID, playbookID uuid.UUID, actionType model.ActionType, actionValue string, status model.ActionLogStatus, errMsg *string) error {
	entry := &model.ActionLog{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		CustomerID:   customerID,
		PlaybookID:   playbookID,
		ActionType:   actionType,
		ActionValue:  actionValue,
		Status:       status,
		ErrorMessage: errMsg,
	}
	return s.repo.Create(ctx, entry)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, filters *model.ActionLogFilters) ([]*model.ActionLog, error) {
	return s.repo.List(ctx, ownerID, filters)
}
