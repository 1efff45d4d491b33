package services

import (
	"context"
	"errors"
	"time"

	"galapa/internal/caching"
	"galapa/internal/common"
	"galapa/internal/models"
	"galapa/internal/repositories"

	"github.com/rs/zerolog/log"
)

const defaultCacheTTL = 5 * time.Minute

type ProviderService interface {
	List(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error)
	GetByID(ctx context.Context, id int64) (*models.Provider, error)
	Create(ctx context.Context, in *models.ProviderInput) (*models.Provider, error)
	Update(ctx context.Context, id int64, in *models.ProviderInput) (*models.Provider, error)
	Delete(ctx context.Context, id int64) error
	// WarmCache reloads the unfiltered listing into the cache.
	WarmCache(ctx context.Context) error
}

type providerService struct {
	providerRepo repositories.ProviderRepository
	cacheSvc     caching.CacheService
	cacheTTL     time.Duration
}

// NewProviderService builds the service. cacheSvc may be nil to run without a cache.
func NewProviderService(providerRepo repositories.ProviderRepository, cacheSvc caching.CacheService, cacheTTL time.Duration) ProviderService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &providerService{
		providerRepo: providerRepo,
		cacheSvc:     cacheSvc,
		cacheTTL:     cacheTTL,
	}
}

func (s *providerService) List(ctx context.Context, filter models.ProviderFilter) ([]*models.Provider, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, common.NewValidationError(map[string]string{"status": "status must be one of: A I"})
	}

	var (
		version   int64
		cacheable bool
	)
	if s.cacheSvc != nil {
		cached, err := s.cacheSvc.GetProviderList(ctx, filter)
		if err != nil {
			log.Warn().Err(err).Msg("provider list cache read failed")
		} else if cached != nil {
			return cached, nil
		}
		// Read before the store so a write committed meanwhile voids the fill.
		if v, err := s.cacheSvc.ProviderListVersion(ctx); err != nil {
			log.Warn().Err(err).Msg("provider list cache version read failed")
		} else {
			version, cacheable = v, true
		}
	}

	providers, err := s.providerRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	if cacheable {
		logFill(s.cacheSvc.SetProviderList(ctx, filter, providers, version, s.cacheTTL), "provider list", 0)
	}
	return providers, nil
}

func (s *providerService) GetByID(ctx context.Context, id int64) (*models.Provider, error) {
	var (
		version   int64
		cacheable bool
	)
	if s.cacheSvc != nil {
		cached, err := s.cacheSvc.GetProvider(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int64("provider_id", id).Msg("provider cache read failed")
		} else if cached != nil {
			return cached, nil
		}
		if v, err := s.cacheSvc.ProviderVersion(ctx, id); err != nil {
			log.Warn().Err(err).Int64("provider_id", id).Msg("provider cache version read failed")
		} else {
			version, cacheable = v, true
		}
	}

	provider, err := s.providerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cacheable {
		logFill(s.cacheSvc.SetProvider(ctx, provider, version, s.cacheTTL), "provider", id)
	}
	return provider, nil
}

func (s *providerService) Create(ctx context.Context, in *models.ProviderInput) (*models.Provider, error) {
	if err := ValidateProviderInput(in); err != nil {
		return nil, err
	}

	provider := providerFromInput(in)
	provider.Status = models.ProviderStatusActive
	provider.RegisteringUserID = in.RegisteringUserID
	if provider.RegisteringUserID == nil {
		if userID, ok := common.GetUserIDFromContext(ctx); ok {
			provider.RegisteringUserID = &userID
		}
	}

	if err := s.providerRepo.Create(ctx, provider, changedBy(ctx, provider.RegisteringUserID)); err != nil {
		return nil, err
	}

	s.invalidate(ctx, 0)
	return provider, nil
}

func (s *providerService) Update(ctx context.Context, id int64, in *models.ProviderInput) (*models.Provider, error) {
	if err := ValidateProviderInput(in); err != nil {
		return nil, err
	}

	provider := providerFromInput(in)
	provider.ID = id
	if in.Status != nil {
		provider.Status = models.ProviderStatus(*in.Status)
	}

	opts := repositories.UpdateOptions{ClearLastPurchaseDate: in.ClearsLastPurchaseDate()}
	if err := s.providerRepo.Update(ctx, provider, opts, changedBy(ctx, nil)); err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return provider, nil
}

func (s *providerService) Delete(ctx context.Context, id int64) error {
	if _, err := s.providerRepo.Delete(ctx, id, changedBy(ctx, nil)); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *providerService) WarmCache(ctx context.Context) error {
	if s.cacheSvc == nil {
		return nil
	}

	version, err := s.cacheSvc.ProviderListVersion(ctx)
	if err != nil {
		return err
	}
	providers, err := s.providerRepo.List(ctx, models.ProviderFilter{})
	if err != nil {
		return err
	}

	err = s.cacheSvc.SetProviderList(ctx, models.ProviderFilter{}, providers, version, s.cacheTTL)
	if errors.Is(err, caching.ErrStale) {
		return nil
	}
	return err
}

// logFill reports a failed cache fill. A stale fill is expected under concurrent writes.
func logFill(err error, what string, id int64) {
	if err == nil {
		return
	}
	event, msg := log.Warn().Err(err), what+" cache write failed"
	if errors.Is(err, caching.ErrStale) {
		event, msg = log.Debug(), what+" cache fill skipped, entry changed meanwhile"
	}
	if id != 0 {
		event = event.Int64("provider_id", id)
	}
	event.Msg(msg)
}

// invalidate drops cached listings and, when id is non-zero, the cached provider.
func (s *providerService) invalidate(ctx context.Context, id int64) {
	if s.cacheSvc == nil {
		return
	}
	if id != 0 {
		if err := s.cacheSvc.DeleteProvider(ctx, id); err != nil {
			log.Warn().Err(err).Int64("provider_id", id).Msg("provider cache invalidation failed")
		}
	}
	if err := s.cacheSvc.InvalidateProviderLists(ctx); err != nil {
		log.Warn().Err(err).Msg("provider list cache invalidation failed")
	}
}

// providerFromInput copies a validated input. The date has already been checked.
func providerFromInput(in *models.ProviderInput) *models.Provider {
	provider := &models.Provider{
		Company: in.Company,
		Contact: in.Contact,
		Type:    in.Type,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
	}
	if in.LastPurchaseDate != nil {
		if date, err := time.Parse(common.DateLayout, *in.LastPurchaseDate); err == nil {
			provider.LastPurchaseDate = &date
		}
	}
	return provider
}

// changedBy prefers the authenticated user over the fallback.
func changedBy(ctx context.Context, fallback *int64) *int64 {
	if userID, ok := common.GetUserIDFromContext(ctx); ok {
		return &userID
	}
	return fallback
}
