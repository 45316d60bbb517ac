package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/pkg/metrics"
	"github.com/tchan1002/apache/pkg/utils"
)

// QueryDispatcher answers questions against an already scouted site.
type QueryDispatcher interface {
	// Ask revalidates currentURL and then tries each tier in order, returning
	// the first usable answer.
	Ask(ctx context.Context, siteID, question, currentURL string) (*entity.Answer, error)
}

// tierFunc is one search strategy with the uniform request/response shape.
type tierFunc func(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error)

type tier struct {
	name entity.Tier
	call tierFunc
}

type queryUseCase struct {
	session   *ClientSession
	readiness ReadinessChecker
	store     repository.SiteStateRepository
	pages     repository.PageRepository
	tiers     []tier
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewQueryDispatcher creates a QueryDispatcher trying order's tiers in sequence.
// pages may be nil, in which case questions go out without page context.
func NewQueryDispatcher(
	session *ClientSession,
	readiness ReadinessChecker,
	backend repository.Backend,
	store repository.SiteStateRepository,
	pages repository.PageRepository,
	order []entity.Tier,
	logger *zap.Logger,
	m *metrics.Metrics,
) (QueryDispatcher, error) {
	tiers := make([]tier, 0, len(order))
	for _, name := range order {
		var call tierFunc
		switch name {
		case entity.TierSearch:
			call = backend.Search
		case entity.TierVectorSearch:
			call = backend.VectorSearch
		case entity.TierQuery:
			call = backend.Query
		default:
			return nil, fmt.Errorf("unknown query tier %q", name)
		}
		tiers = append(tiers, tier{name: name, call: call})
	}
	if len(tiers) == 0 {
		return nil, errors.New("at least one query tier is required")
	}

	return &queryUseCase{
		session:   session,
		readiness: readiness,
		store:     store,
		pages:     pages,
		tiers:     tiers,
		logger:    logger,
		metrics:   m,
	}, nil
}

func (uc *queryUseCase) Ask(ctx context.Context, siteID, question, currentURL string) (*entity.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if siteID == "" || !uc.scoutedLocally(ctx, currentURL) {
		return nil, ErrNotScouted
	}

	// Never ask against a siteID the backend may have dropped.
	state, err := uc.readiness.Check(ctx, currentURL)
	if err != nil {
		return nil, err
	}
	if !state.Ready() {
		uc.session.Clear(currentURL)
		uc.logger.Warn("site index is stale", zap.String("url", currentURL), zap.String("site_id", siteID))
		return nil, ErrStaleIndex
	}
	if state.SiteID != siteID {
		uc.logger.Info("backend reassigned site id",
			zap.String("url", currentURL), zap.String("old", siteID), zap.String("new", state.SiteID))
		siteID = state.SiteID
	}
	uc.session.ApplyForURL(state)

	req := repository.QueryRequest{
		SiteID:   siteID,
		Question: question,
		Context:  uc.pageContext(ctx, currentURL),
	}

	var lastErr error
	for _, t := range uc.tiers {
		resp, err := t.call(ctx, req)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil && !usable(resp) {
			err = ErrEmptyResult
		}
		if err != nil {
			lastErr = err
			outcome := "failed"
			if errors.Is(err, ErrEmptyResult) {
				outcome = "empty"
			}
			uc.metrics.IncQueryTier(string(t.name), outcome)
			uc.logger.Warn("query tier fell through",
				zap.String("tier", string(t.name)), zap.String("site_id", siteID), zap.Error(err))
			continue
		}

		uc.metrics.IncQueryTier(string(t.name), "answered")
		answer := &entity.Answer{
			Text:     strings.TrimSpace(resp.Answer),
			Sources:  resolveSources(currentURL, resp),
			UsedTier: t.name,
		}
		uc.logger.Info("question answered",
			zap.String("tier", string(t.name)),
			zap.String("site_id", siteID),
			zap.Int("sources", len(answer.Sources)),
			zap.Bool("unknown", answer.Unknown()))
		return answer, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllTiersFailed, lastErr)
}

// scoutedLocally reports whether the local record for url says it was scouted.
func (uc *queryUseCase) scoutedLocally(ctx context.Context, url string) bool {
	if st := uc.session.State(); st != nil && st.URL == url {
		return st.Ready()
	}
	st, err := uc.store.Get(ctx, url)
	if err != nil {
		if !errors.Is(err, repository.ErrStateNotFound) {
			uc.logger.Warn("failed to read site state", zap.String("url", url), zap.Error(err))
		}
		return false
	}
	return st.Ready()
}

// pageContext captures what the user sees. Failure only loses the context.
func (uc *queryUseCase) pageContext(ctx context.Context, url string) string {
	if uc.pages == nil {
		return ""
	}
	pc, err := uc.pages.Capture(ctx, url)
	if err != nil {
		uc.logger.Info("page context unavailable", zap.String("url", url), zap.Error(err))
		return ""
	}
	return pc.Summary()
}

// usable reports whether a tier produced at least one result.
func usable(resp *repository.QueryResponse) bool {
	return resp != nil && (strings.TrimSpace(resp.Answer) != "" || len(resp.Sources) > 0 || len(resp.Results) > 0)
}

// resolveSources picks the cited sources (falling back to raw results) and
// makes relative links absolute against the page they were asked from.
func resolveSources(currentURL string, resp *repository.QueryResponse) []entity.Source {
	raw := resp.Sources
	if len(raw) == 0 {
		raw = resp.Results
	}
	base, err := url.Parse(currentURL)
	if err != nil {
		base = nil
	}

	sources := make([]entity.Source, 0, len(raw))
	for _, src := range raw {
		if src.URL == "" {
			continue
		}
		if base != nil {
			if abs, err := utils.ToAbsoluteURL(base, src.URL); err == nil {
				src.URL = abs
			}
		}
		sources = append(sources, src)
	}
	return sources
}
