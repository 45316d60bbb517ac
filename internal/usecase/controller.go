package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
)

// EventKind classifies what the UI should render.
type EventKind string

const (
	EventReady         EventKind = "ready"
	EventNeedsScouting EventKind = "needs_scouting"
	EventProgress      EventKind = "progress"
	EventAnswer        EventKind = "answer"
	EventError         EventKind = "error"
)

// Event is one UI update.
type Event struct {
	Kind    EventKind         `json:"kind"`
	URL     string            `json:"url,omitempty"`
	State   *entity.SiteState `json:"state,omitempty"`
	Update  *ScoutProgress    `json:"update,omitempty"`
	Answer  *entity.Answer    `json:"answer,omitempty"`
	Message string            `json:"message,omitempty"`
	Err     error             `json:"-"`
}

// Listener receives UI updates. It is called synchronously and must not block.
type Listener func(Event)

// Controller is the top-level owner of a ClientSession. Every tab event and
// user action goes through it so state is always derived from the latest URL.
type Controller struct {
	session    *ClientSession
	readiness  ReadinessChecker
	scout      Scout
	dispatcher QueryDispatcher
	backend    repository.Backend
	store      repository.SiteStateRepository
	tabs       repository.TabRepository
	listener   Listener
	logger     *zap.Logger

	mu          sync.Mutex
	cancelCheck context.CancelFunc
	lastAnswer  *entity.Answer
}

// NewController wires the components around session. tabs and listener may be nil.
func NewController(
	session *ClientSession,
	readiness ReadinessChecker,
	scout Scout,
	dispatcher QueryDispatcher,
	backend repository.Backend,
	store repository.SiteStateRepository,
	tabs repository.TabRepository,
	listener Listener,
	logger *zap.Logger,
) *Controller {
	if listener == nil {
		listener = func(Event) {}
	}
	return &Controller{
		session:    session,
		readiness:  readiness,
		scout:      scout,
		dispatcher: dispatcher,
		backend:    backend,
		store:      store,
		tabs:       tabs,
		listener:   listener,
		logger:     logger,
	}
}

// Session returns the session the controller owns.
func (c *Controller) Session() *ClientSession {
	return c.session
}

// Snapshot returns the tracked URL, its state and whether a scout is running.
func (c *Controller) Snapshot() (string, *entity.SiteState, bool) {
	url, _ := c.session.Current()
	return url, c.session.State(), c.session.Scouting()
}

// Open tracks the active tab and reports whether it is ready.
func (c *Controller) Open(ctx context.Context) (*entity.SiteState, error) {
	if c.tabs == nil {
		return nil, repository.ErrNoActiveTab
	}
	url, err := c.tabs.ActiveURL(ctx)
	if err != nil {
		c.emitError("", err)
		return nil, err
	}
	return c.HandleNavigation(ctx, url)
}

// HandleNavigation makes url current and re-runs readiness for it. A check
// still running for an earlier URL is cancelled, and a result that arrives
// after a newer navigation is discarded with ErrSuperseded.
func (c *Controller) HandleNavigation(ctx context.Context, url string) (*entity.SiteState, error) {
	gen, checkCtx, cancel := c.track(ctx, url)
	defer cancel()
	return c.resolve(checkCtx, gen, url)
}

func (c *Controller) track(ctx context.Context, url string) (uint64, context.Context, context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelCheck != nil {
		c.cancelCheck()
	}
	gen := c.session.Track(url)
	c.lastAnswer = nil
	checkCtx, cancel := context.WithCancel(ctx)
	c.cancelCheck = cancel
	return gen, checkCtx, cancel
}

func (c *Controller) resolve(ctx context.Context, gen uint64, url string) (*entity.SiteState, error) {
	state, err := c.readiness.Check(ctx, url)
	if !c.session.IsCurrent(gen) {
		c.logger.Debug("discarding readiness result for stale navigation", zap.String("url", url))
		return nil, ErrSuperseded
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		c.emitError(url, err)
		return nil, err
	}
	if !c.session.Apply(gen, state) {
		return nil, ErrSuperseded
	}
	c.emitState(state)
	return state, nil
}

// Resume makes url current from its stored verdict without contacting the
// backend. Ask revalidates anyway, so this saves a round trip before a
// question. Without a stored ready verdict it falls back to HandleNavigation.
func (c *Controller) Resume(ctx context.Context, url string) (*entity.SiteState, error) {
	stored, err := c.store.Get(ctx, url)
	if err != nil || !stored.Ready() {
		if err != nil && !errors.Is(err, repository.ErrStateNotFound) {
			c.logger.Warn("failed to read site state", zap.String("url", url), zap.Error(err))
		}
		return c.HandleNavigation(ctx, url)
	}

	gen, _, cancel := c.track(ctx, url)
	cancel()
	if !c.session.Apply(gen, stored) {
		return nil, ErrSuperseded
	}
	c.emitState(stored)
	return stored, nil
}

// Watch routes navigation events through the controller until ctx is done or
// navigations closes. Each event cancels the check started by the one before.
func (c *Controller) Watch(ctx context.Context, navigations <-chan string) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case url, ok := <-navigations:
			if !ok {
				return nil
			}
			if current, _ := c.session.Current(); current == url {
				continue
			}
			// Generations are assigned in event order; checks run concurrently.
			gen, checkCtx, cancel := c.track(ctx, url)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer cancel()
				_, _ = c.resolve(checkCtx, gen, url)
			}()
		}
	}
}

// Check runs readiness for url without tracking it.
func (c *Controller) Check(ctx context.Context, url string) (*entity.SiteState, error) {
	return c.readiness.Check(ctx, url)
}

// Scout scouts the tracked URL. Outcomes for a page the user has since left
// are not reported and the caller receives ErrSuperseded.
func (c *Controller) Scout(ctx context.Context) (*entity.SiteState, error) {
	url, gen := c.session.Current()
	if url == "" {
		return nil, ErrInvalidPage
	}

	state, err := c.scout.Scout(ctx, url, func(p ScoutProgress) {
		if c.session.IsCurrent(gen) {
			c.listener(Event{Kind: EventProgress, URL: url, Update: &p, Message: p.Message})
		}
	})
	if errors.Is(err, ErrScoutInProgress) {
		return nil, err
	}

	current := c.whileCurrent(gen, func() {
		if err != nil {
			if ctx.Err() == nil {
				c.emitError(url, err)
				// Re-enable the scout trigger.
				c.emitState(entity.NewSiteState(url, "", "", false))
			}
			return
		}
		c.emitState(state)
	})
	if !current {
		c.logger.Debug("discarding scout result for stale navigation", zap.String("url", url), zap.Error(err))
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Ask asks question about the tracked page. Blank questions are ignored.
func (c *Controller) Ask(ctx context.Context, question string) (*entity.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	url, gen := c.session.Current()
	var siteID string
	if st := c.session.State(); st != nil {
		siteID = st.SiteID
	}

	answer, err := c.dispatcher.Ask(ctx, siteID, question, url)

	current := c.whileCurrent(gen, func() {
		if err != nil {
			c.emitError(url, err)
			if errors.Is(err, ErrStaleIndex) {
				c.emitState(entity.NewSiteState(url, "", "", false))
			}
			return
		}
		c.lastAnswer = answer
		c.listener(Event{Kind: EventAnswer, URL: url, Answer: answer})
	})
	if !current {
		c.logger.Debug("discarding answer for stale navigation", zap.String("url", url))
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// whileCurrent runs fn only if gen is still the tracked generation. It holds
// c.mu so a concurrent navigation cannot interleave with fn.
func (c *Controller) whileCurrent(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.IsCurrent(gen) {
		return false
	}
	fn()
	return true
}

// LastAnswer returns the most recent answer for the tracked page, if any.
func (c *Controller) LastAnswer() *entity.Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAnswer
}

// GoToSource opens the index-th source of answer in the browser.
func (c *Controller) GoToSource(ctx context.Context, answer *entity.Answer, index int) error {
	if answer == nil || index < 0 || index >= len(answer.Sources) {
		return ErrNoSource
	}
	if c.tabs == nil {
		return repository.ErrNoActiveTab
	}
	src := answer.Sources[index]
	if err := c.tabs.Navigate(ctx, src.URL); err != nil {
		c.logger.Warn("failed to open source", zap.String("url", src.URL), zap.Error(err))
		return err
	}
	return nil
}

// SubmitFeedback reports whether an answer led to the right page. It never
// changes site state.
func (c *Controller) SubmitFeedback(ctx context.Context, fb entity.Feedback) error {
	if fb.SiteID == "" {
		if st := c.session.State(); st != nil {
			fb.SiteID = st.SiteID
		}
	}
	if err := c.backend.Feedback(ctx, fb); err != nil {
		c.logger.Warn("failed to submit feedback", zap.String("landed_url", fb.LandedURL), zap.Error(err))
		return err
	}
	return nil
}

func (c *Controller) emitState(state *entity.SiteState) {
	kind := EventNeedsScouting
	if state.Ready() {
		kind = EventReady
	}
	c.listener(Event{Kind: kind, URL: state.URL, State: state})
}

func (c *Controller) emitError(url string, err error) {
	c.listener(Event{Kind: EventError, URL: url, Message: UserMessage(err), Err: err})
}
