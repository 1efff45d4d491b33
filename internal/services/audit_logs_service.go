package services

import (
	"context"
	"errors"
	"time"

	"galapa/internal/common"
	"galapa/internal/models"
	"galapa/internal/repositories"
)

type AuditLogsService interface {
	// GetProviderHistory returns the change history of a provider, newest first.
	GetProviderHistory(ctx context.Context, providerID int64, limit, offset int) ([]*models.AuditLog, error)

	// PurgeExpired removes entries older than the retention window.
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository) AuditLogsService {
	return &auditLogsService{
		auditLogsRepo: auditLogsRepo,
	}
}

func (s *auditLogsService) GetProviderHistory(ctx context.Context, providerID int64, limit, offset int) ([]*models.AuditLog, error) {
	if providerID <= 0 {
		return nil, common.NewValidationError(map[string]string{"id": "id must be positive"})
	}

	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, common.NewValidationError(map[string]string{"offset": err.Error()})
	}

	return s.auditLogsRepo.ListByProvider(ctx, providerID, limit, offset)
}

func (s *auditLogsService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, errors.New("retention must be positive")
	}
	return s.auditLogsRepo.PurgeOlderThan(ctx, time.Now().Add(-retention))
}
