package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/adapter/memory"
	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errUnexpectedCall = errors.New("unexpected backend call")

// fakeBackend records calls and delegates to optional per-endpoint funcs.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	check        func(ctx context.Context, req repository.CheckRequest) (*repository.CheckResponse, error)
	createSite   func(ctx context.Context, domain, startURL string) (*repository.Site, error)
	startCrawl   func(ctx context.Context, siteID, startURL string) (*repository.CrawlHandle, error)
	jobStatus    func(ctx context.Context, jobID string) (*entity.CrawlJob, error)
	resultsHead  func(ctx context.Context, jobID string) (*entity.ResultsHead, error)
	search       func(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error)
	vectorSearch func(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error)
	query        func(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error)
	feedback     func(ctx context.Context, fb entity.Feedback) error
}

var _ repository.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) Check(ctx context.Context, req repository.CheckRequest) (*repository.CheckResponse, error) {
	f.record("check")
	if f.check == nil {
		return nil, errUnexpectedCall
	}
	return f.check(ctx, req)
}

func (f *fakeBackend) CreateSite(ctx context.Context, domain, startURL string) (*repository.Site, error) {
	f.record("site")
	if f.createSite == nil {
		return nil, errUnexpectedCall
	}
	return f.createSite(ctx, domain, startURL)
}

func (f *fakeBackend) StartCrawl(ctx context.Context, siteID, startURL string) (*repository.CrawlHandle, error) {
	f.record("crawl")
	if f.startCrawl == nil {
		return nil, errUnexpectedCall
	}
	return f.startCrawl(ctx, siteID, startURL)
}

func (f *fakeBackend) JobStatus(ctx context.Context, jobID string) (*entity.CrawlJob, error) {
	f.record("status")
	if f.jobStatus == nil {
		return nil, errUnexpectedCall
	}
	return f.jobStatus(ctx, jobID)
}

func (f *fakeBackend) ResultsHead(ctx context.Context, jobID string) (*entity.ResultsHead, error) {
	f.record("head")
	if f.resultsHead == nil {
		return nil, errUnexpectedCall
	}
	return f.resultsHead(ctx, jobID)
}

func (f *fakeBackend) Search(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error) {
	f.record("search")
	if f.search == nil {
		return nil, errUnexpectedCall
	}
	return f.search(ctx, req)
}

func (f *fakeBackend) VectorSearch(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error) {
	f.record("vector-search")
	if f.vectorSearch == nil {
		return nil, errUnexpectedCall
	}
	return f.vectorSearch(ctx, req)
}

func (f *fakeBackend) Query(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error) {
	f.record("query")
	if f.query == nil {
		return nil, errUnexpectedCall
	}
	return f.query(ctx, req)
}

func (f *fakeBackend) Feedback(ctx context.Context, fb entity.Feedback) error {
	f.record("feedback")
	if f.feedback == nil {
		return errUnexpectedCall
	}
	return f.feedback(ctx, fb)
}

func indexed(siteID string) func(context.Context, repository.CheckRequest) (*repository.CheckResponse, error) {
	return func(context.Context, repository.CheckRequest) (*repository.CheckResponse, error) {
		return &repository.CheckResponse{
			Exists: true,
			SiteID: siteID,
			Pages:  []repository.IndexedPage{{URL: "https://example.com/docs"}},
			Domain: "example.com",
		}, nil
	}
}

func notIndexed(context.Context, repository.CheckRequest) (*repository.CheckResponse, error) {
	return &repository.CheckResponse{Exists: false}, nil
}

func statusErr(op string, code int) error {
	return repository.NewStatusError(op, code)
}

// streamItem is one result of fakeStream.Next.
type streamItem struct {
	event entity.CrawlEvent
	err   error
}

type fakeStream struct {
	mu     sync.Mutex
	items  []streamItem
	closed bool
}

func newFakeStream(items ...streamItem) *fakeStream {
	return &fakeStream{items: items}
}

func (s *fakeStream) Next() (entity.CrawlEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return entity.CrawlEvent{}, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item.event, item.err
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fixture wires the real components around a fake backend and an in-memory store.
type fixture struct {
	backend   *fakeBackend
	store     *memory.StateRepoImpl
	session   *ClientSession
	readiness ReadinessChecker
	poller    Poller
	scout     Scout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := &fakeBackend{}
	store := memory.NewStateRepo()
	session := NewClientSession()
	logger := zap.NewNop()

	readiness := NewReadinessChecker(backend, store, true, logger, nil)
	poller := NewPoller(backend, testPollInterval, 10, logger, nil)
	return &fixture{
		backend:   backend,
		store:     store,
		session:   session,
		readiness: readiness,
		poller:    poller,
		scout:     NewScout(session, readiness, backend, store, poller, logger, nil),
	}
}
