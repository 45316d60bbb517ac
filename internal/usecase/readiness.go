package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/pkg/metrics"
	"github.com/tchan1002/apache/pkg/utils"
)

// ReadinessChecker decides whether questions can be asked for a page right away.
type ReadinessChecker interface {
	// Check asks the backend whether url's site is indexed. It fails only for
	// pages that cannot be scouted or when ctx ends; a backend failure yields
	// an unscouted state.
	Check(ctx context.Context, url string) (*entity.SiteState, error)
}

type readinessUseCase struct {
	backend           repository.Backend
	store             repository.SiteStateRepository
	checkSpecificPath bool
	logger            *zap.Logger
	metrics           *metrics.Metrics
}

// NewReadinessChecker creates a new ReadinessChecker use case.
func NewReadinessChecker(
	backend repository.Backend,
	store repository.SiteStateRepository,
	checkSpecificPath bool,
	logger *zap.Logger,
	m *metrics.Metrics,
) ReadinessChecker {
	return &readinessUseCase{
		backend:           backend,
		store:             store,
		checkSpecificPath: checkSpecificPath,
		logger:            logger,
		metrics:           m,
	}
}

func (uc *readinessUseCase) Check(ctx context.Context, url string) (*entity.SiteState, error) {
	if !utils.IsWebURL(url) {
		return nil, ErrInvalidPage
	}
	domain := utils.Domain(url)

	resp, err := uc.backend.Check(ctx, repository.CheckRequest{
		URL:               url,
		CheckVectorIndex:  true,
		CheckSpecificPath: uc.checkSpecificPath,
	})
	if err != nil {
		if ctx.Err() != nil {
			// Abandoned by the caller; leave stored state alone.
			return nil, ctx.Err()
		}
		// Ambiguity never grants access to querying.
		uc.logger.Warn("readiness check failed, treating site as not scouted",
			zap.String("url", url), zap.Error(err))
		uc.metrics.IncReadiness("unreachable")
		return uc.notScouted(ctx, url, domain), nil
	}

	if !resp.Indexed() {
		uc.logger.Info("site needs scouting",
			zap.String("url", url),
			zap.Bool("exists", resp.Exists),
			zap.Int("pages", len(resp.Pages)))
		uc.metrics.IncReadiness("needs_scouting")
		return uc.notScouted(ctx, url, domain), nil
	}

	if resp.Domain != "" {
		domain = resp.Domain
	}
	state := entity.NewSiteState(url, domain, resp.SiteID, true)
	if err := uc.store.Save(ctx, state); err != nil {
		// The verdict stands; it is revalidated before every query anyway.
		uc.logger.Warn("failed to persist site state", zap.String("url", url), zap.Error(err))
	}
	uc.logger.Info("site is ready", zap.String("url", url), zap.String("site_id", state.SiteID))
	uc.metrics.IncReadiness("ready")
	return state, nil
}

func (uc *readinessUseCase) notScouted(ctx context.Context, url, domain string) *entity.SiteState {
	if err := uc.store.Delete(ctx, url); err != nil && !errors.Is(err, repository.ErrStateNotFound) {
		uc.logger.Warn("failed to clear site state", zap.String("url", url), zap.Error(err))
	}
	return entity.NewSiteState(url, domain, "", false)
}
