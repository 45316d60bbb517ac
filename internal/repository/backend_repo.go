package repository

import (
	"context"

	"github.com/tchan1002/apache/internal/entity"
)

// CheckRequest is the payload of POST /check.
type CheckRequest struct {
	URL               string `json:"url"`
	CheckVectorIndex  bool   `json:"checkVectorIndex"`
	CheckSpecificPath bool   `json:"checkSpecificPath,omitempty"`
}

// IndexedPage is one page the backend reports as indexed for a site.
type IndexedPage struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// CheckResponse is the body returned by POST /check.
type CheckResponse struct {
	Exists    bool          `json:"exists"`
	SiteID    string        `json:"siteId"`
	Pages     []IndexedPage `json:"pages"`
	Domain    string        `json:"domain"`
	PageCount int           `json:"pageCount"`
}

// Indexed reports whether the site exists and has at least one indexed page.
func (r *CheckResponse) Indexed() bool {
	return r != nil && r.Exists && r.SiteID != "" && (len(r.Pages) > 0 || r.PageCount > 0)
}

// Site is the record returned by POST /site.
type Site struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
}

// CrawlStream yields decoded crawl progress events.
type CrawlStream interface {
	// Next returns the next event. A malformed line yields a *StreamParseError and
	// the stream stays usable; io.EOF means the connection closed.
	Next() (entity.CrawlEvent, error)
	Close() error
}

// CrawlHandle is what the crawl endpoint hands back: a live stream or a job to poll.
// Exactly one of Stream and JobID is set.
type CrawlHandle struct {
	Stream CrawlStream
	JobID  string
}

// QueryRequest is the payload shared by /search, /vector-search and /query.
type QueryRequest struct {
	SiteID   string `json:"siteId"`
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// QueryResponse is the uniform result of a search tier.
type QueryResponse struct {
	Answer  string          `json:"answer"`
	Sources []entity.Source `json:"sources"`
	Results []entity.Source `json:"results"`
}

// Backend is the Pathfinder HTTP API consumed by the client.
type Backend interface {
	Check(ctx context.Context, req CheckRequest) (*CheckResponse, error)
	CreateSite(ctx context.Context, domain, startURL string) (*Site, error)
	StartCrawl(ctx context.Context, siteID, startURL string) (*CrawlHandle, error)
	JobStatus(ctx context.Context, jobID string) (*entity.CrawlJob, error)
	ResultsHead(ctx context.Context, jobID string) (*entity.ResultsHead, error)
	Search(ctx context.Context, req QueryRequest) (*QueryResponse, error)
	VectorSearch(ctx context.Context, req QueryRequest) (*QueryResponse, error)
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
	Feedback(ctx context.Context, fb entity.Feedback) error
}
