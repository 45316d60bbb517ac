package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/pkg/metrics"
	"github.com/tchan1002/apache/pkg/utils"
)

// ScoutProgress is a user feedback update emitted while scouting.
type ScoutProgress struct {
	Step    ScoutStep        `json:"step"`
	Message string           `json:"message,omitempty"`
	URL     string           `json:"url,omitempty"`
	Job     *entity.CrawlJob `json:"job,omitempty"`
	Top     *entity.Source   `json:"top,omitempty"`
}

// Scout brings an unscouted site to the scouted state.
type Scout interface {
	// Scout runs CheckExisting, CreateSite, Crawl and Done for url. Only one
	// scout runs per session; overlapping calls return ErrScoutInProgress
	// without touching the backend.
	Scout(ctx context.Context, url string, onProgress func(ScoutProgress)) (*entity.SiteState, error)
}

type scoutUseCase struct {
	session   *ClientSession
	readiness ReadinessChecker
	backend   repository.Backend
	store     repository.SiteStateRepository
	poller    Poller
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewScout creates a new Scout use case.
func NewScout(
	session *ClientSession,
	readiness ReadinessChecker,
	backend repository.Backend,
	store repository.SiteStateRepository,
	poller Poller,
	logger *zap.Logger,
	m *metrics.Metrics,
) Scout {
	return &scoutUseCase{
		session:   session,
		readiness: readiness,
		backend:   backend,
		store:     store,
		poller:    poller,
		logger:    logger,
		metrics:   m,
	}
}

func (uc *scoutUseCase) Scout(ctx context.Context, url string, onProgress func(ScoutProgress)) (*entity.SiteState, error) {
	if !utils.IsWebURL(url) {
		return nil, ErrInvalidPage
	}
	if !uc.session.beginScout() {
		uc.logger.Info("scout already in progress, ignoring", zap.String("url", url))
		uc.metrics.IncScout("ignored")
		return nil, ErrScoutInProgress
	}
	defer uc.session.endScout()

	progress := func(p ScoutProgress) {
		if onProgress != nil && ctx.Err() == nil {
			onProgress(p)
		}
	}

	// CheckExisting: another session may already have scouted this page.
	progress(ScoutProgress{Step: StepCheckExisting, URL: url})
	state, err := uc.readiness.Check(ctx, url)
	if err != nil {
		return nil, uc.fail(ctx, url, StepCheckExisting, err)
	}
	if state.Ready() {
		uc.logger.Info("site already scouted", zap.String("url", url), zap.String("site_id", state.SiteID))
		uc.session.ApplyForURL(state)
		uc.metrics.IncScout("already_scouted")
		progress(ScoutProgress{Step: StepDone, URL: url})
		return state, nil
	}

	progress(ScoutProgress{Step: StepCreateSite, URL: url})
	domain := utils.Domain(url)
	site, err := uc.backend.CreateSite(ctx, domain, url)
	if err != nil {
		return nil, uc.fail(ctx, url, StepCreateSite, err)
	}
	if site.Domain != "" {
		domain = site.Domain
	}
	uc.logger.Info("site registered", zap.String("url", url), zap.String("site_id", site.ID))

	progress(ScoutProgress{Step: StepCrawl, URL: url, Message: "Starting crawl"})
	handle, err := uc.backend.StartCrawl(ctx, site.ID, url)
	if err != nil {
		return nil, uc.fail(ctx, url, StepCrawl, err)
	}

	var top *entity.Source
	if handle.Stream != nil {
		err = uc.followStream(ctx, handle.Stream, progress)
	} else {
		top, err = uc.followJob(ctx, handle.JobID, progress)
	}
	if err != nil {
		return nil, uc.fail(ctx, url, StepCrawl, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	state = entity.NewSiteState(url, domain, site.ID, true)
	if err := uc.store.Save(ctx, state); err != nil {
		uc.logger.Warn("failed to persist scouted state", zap.String("url", url), zap.Error(err))
	}
	uc.session.ApplyForURL(state)
	uc.metrics.IncScout("success")
	uc.logger.Info("scout complete", zap.String("url", url), zap.String("site_id", site.ID))
	progress(ScoutProgress{Step: StepDone, URL: url, Top: top})
	return state, nil
}

// followStream reads crawl events until a terminal one arrives. Malformed
// lines are skipped; a stream that closes before done or error is fatal.
func (uc *scoutUseCase) followStream(ctx context.Context, stream repository.CrawlStream, progress func(ScoutProgress)) error {
	defer stream.Close()

	var lastParseErr error
	for {
		event, err := stream.Next()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var parseErr *repository.StreamParseError
		switch {
		case errors.As(err, &parseErr):
			lastParseErr = err
			uc.logger.Debug("skipping malformed crawl event", zap.Error(err))
			continue
		case errors.Is(err, io.EOF):
			if lastParseErr != nil {
				return fmt.Errorf("%w: %w", ErrStreamIncomplete, lastParseErr)
			}
			return ErrStreamIncomplete
		case err != nil:
			// The connection is gone; no terminal event can follow.
			return fmt.Errorf("%w: %w", ErrStreamIncomplete, err)
		}

		switch event.Type {
		case entity.EventDone:
			return nil
		case entity.EventError:
			return fmt.Errorf("%w: %s", ErrCrawlFailed, event.Message)
		default:
			progress(ScoutProgress{Step: StepCrawl, Message: event.Message, URL: event.URL})
		}
	}
}

// followJob polls an asynchronous crawl and fetches the head of its results.
func (uc *scoutUseCase) followJob(ctx context.Context, jobID string, progress func(ScoutProgress)) (*entity.Source, error) {
	uc.logger.Info("polling crawl job", zap.String("job_id", jobID))
	_, err := uc.poller.PollUntilDone(ctx, jobID, func(job entity.CrawlJob) {
		progress(ScoutProgress{Step: StepCrawl, Job: &job, Message: progressMessage(job.Progress)})
	})
	if err != nil {
		return nil, err
	}

	head, err := uc.backend.ResultsHead(ctx, jobID)
	if err != nil {
		uc.logger.Warn("failed to fetch crawl results head", zap.String("job_id", jobID), zap.Error(err))
		return nil, nil
	}
	return head.Top, nil
}

// fail resets the page to unscouted so the user can retry. An abandoned
// scout leaves state alone.
func (uc *scoutUseCase) fail(ctx context.Context, url string, step ScoutStep, err error) error {
	if ctx.Err() != nil {
		uc.logger.Info("scout cancelled", zap.String("url", url), zap.String("step", string(step)))
		uc.metrics.IncScout("cancelled")
		return ctx.Err()
	}

	if derr := uc.store.Delete(ctx, url); derr != nil {
		uc.logger.Warn("failed to clear site state", zap.String("url", url), zap.Error(derr))
	}
	uc.session.ApplyForURL(entity.NewSiteState(url, utils.Domain(url), "", false))
	uc.metrics.IncScout("failure")
	uc.logger.Warn("scout failed",
		zap.String("url", url), zap.String("step", string(step)), zap.Error(err))
	return &ScoutError{Step: step, Err: err}
}

func progressMessage(p entity.Progress) string {
	if p.PagesTotalEstimate != nil && *p.PagesTotalEstimate > 0 {
		return fmt.Sprintf("Scanned %d of about %d pages", p.PagesScanned, *p.PagesTotalEstimate)
	}
	return fmt.Sprintf("Scanned %d pages", p.PagesScanned)
}
