package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/pkg/metrics"
)

// Poller drives an asynchronous crawl job to a terminal status.
type Poller interface {
	// PollUntilDone polls jobID until it is done, fails, or the attempt budget
	// runs out. onProgress sees every non-terminal status and is never called
	// once ctx is cancelled.
	PollUntilDone(ctx context.Context, jobID string, onProgress func(entity.CrawlJob)) (*entity.CrawlJob, error)
}

type pollerUseCase struct {
	backend     repository.Backend
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewPoller creates a Poller that checks the job every interval, at most maxAttempts times.
func NewPoller(backend repository.Backend, interval time.Duration, maxAttempts int, logger *zap.Logger, m *metrics.Metrics) Poller {
	return &pollerUseCase{
		backend:     backend,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		metrics:     m,
	}
}

func (uc *pollerUseCase) PollUntilDone(ctx context.Context, jobID string, onProgress func(entity.CrawlJob)) (*entity.CrawlJob, error) {
	var lastErr error

	for attempt := 1; attempt <= uc.maxAttempts; attempt++ {
		job, err := uc.backend.JobStatus(ctx, jobID)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch {
		case err != nil:
			// A failed tick spends an attempt but does not end the poll.
			lastErr = err
			uc.metrics.IncJobPoll("failed")
			uc.logger.Warn("job status poll failed",
				zap.String("job_id", jobID), zap.Int("attempt", attempt), zap.Error(err))
		case job.Status == entity.JobDone:
			uc.metrics.IncJobPoll(string(job.Status))
			uc.logger.Info("crawl job done", zap.String("job_id", jobID), zap.Int("attempts", attempt))
			return job, nil
		case job.Status == entity.JobError:
			uc.metrics.IncJobPoll(string(job.Status))
			return job, fmt.Errorf("%w: %s", ErrCrawlFailed, job.Message)
		default:
			uc.metrics.IncJobPoll(string(job.Status))
			uc.logger.Debug("crawl job in progress",
				zap.String("job_id", jobID),
				zap.String("status", string(job.Status)),
				zap.Int("pages_scanned", job.Progress.PagesScanned))
			if onProgress != nil {
				onProgress(*job)
			}
		}

		if attempt == uc.maxAttempts {
			break
		}
		if err := wait(ctx, uc.interval); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrPollTimeout, uc.maxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, uc.maxAttempts)
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
