// Package pathfinder implements repository.Backend against the Pathfinder HTTP API.
package pathfinder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/pkg/metrics"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultStreamTimeout = 10 * time.Minute
	maxErrorBody         = 4 << 10
)

// Client talks to the Pathfinder backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	streamClient  *http.Client
	streamTimeout time.Duration
	sessionID     string
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every individual non-streaming request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithStreamTimeout bounds a whole crawl progress stream.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.streamTimeout = d
	}
}

// WithTransport replaces the HTTP transport of both request and stream clients.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
		c.streamClient.Transport = rt
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSessionID tags every request with the client session identifier.
func WithSessionID(id string) Option {
	return func(c *Client) {
		c.sessionID = id
	}
}

// NewClient returns a client for the API rooted at baseURL (e.g. https://host/api).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: defaultTimeout},
		streamClient:  &http.Client{},
		streamTimeout: defaultStreamTimeout,
		logger:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ repository.Backend = (*Client)(nil)

// Check asks whether a site (and optionally its vector index) exists for req.URL.
func (c *Client) Check(ctx context.Context, req repository.CheckRequest) (*repository.CheckResponse, error) {
	var resp repository.CheckResponse
	if err := c.doJSON(ctx, http.MethodPost, "/check", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateSite registers a site for domain starting at startURL.
func (c *Client) CreateSite(ctx context.Context, domain, startURL string) (*repository.Site, error) {
	body := map[string]string{"domain": domain, "startUrl": startURL}
	var site repository.Site
	if err := c.doJSON(ctx, http.MethodPost, "/site", body, &site); err != nil {
		return nil, err
	}
	if site.ID == "" {
		return nil, &repository.NetworkError{Op: "/site", Err: fmt.Errorf("response has no site id")}
	}
	return &site, nil
}

type jobHandle struct {
	JobID    string `json:"jobId"`
	JobIDAlt string `json:"job_id"`
}

// StartCrawl opens the crawl endpoint. The backend answers either with an event
// stream or with a JSON job handle that must be polled.
func (c *Client) StartCrawl(ctx context.Context, siteID, startURL string) (*repository.CrawlHandle, error) {
	const op = "/crawl/stream"
	q := url.Values{}
	q.Set("siteId", siteID)
	q.Set("startUrl", startURL)

	streamCtx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	req, err := c.newRequest(streamCtx, http.MethodGet, op+"?"+q.Encode(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream, application/json")

	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		c.metrics.ObserveBackendRequest(op, "error", time.Since(start))
		return nil, repository.NewTransportError(op, err)
	}
	c.metrics.ObserveBackendRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp.Body)
		cancel()
		return nil, repository.NewStatusError(op, resp.StatusCode)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		defer cancel()
		defer resp.Body.Close()
		var handle jobHandle
		if err := json.NewDecoder(resp.Body).Decode(&handle); err != nil {
			return nil, &repository.NetworkError{Op: op, Err: fmt.Errorf("decode job handle: %w", err)}
		}
		jobID := handle.JobID
		if jobID == "" {
			jobID = handle.JobIDAlt
		}
		if jobID == "" {
			return nil, &repository.NetworkError{Op: op, Err: fmt.Errorf("job handle has no job id")}
		}
		c.logger.Debug("crawl started as polled job", zap.String("site_id", siteID), zap.String("job_id", jobID))
		return &repository.CrawlHandle{JobID: jobID}, nil
	}

	c.logger.Debug("crawl started as event stream", zap.String("site_id", siteID))
	return &repository.CrawlHandle{Stream: newEventStream(op, resp.Body, cancel)}, nil
}

type jobStatusResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress *struct {
		PagesScanned  int  `json:"pages_scanned"`
		PagesTotalEst *int `json:"pages_total_est"`
	} `json:"progress"`
}

// JobStatus fetches the current status of a crawl job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*entity.CrawlJob, error) {
	op := "/jobs/" + url.PathEscape(jobID) + "/status"
	var resp jobStatusResponse
	if err := c.doJSON(ctx, http.MethodPost, op, struct{}{}, &resp); err != nil {
		return nil, err
	}

	status, ok := parseJobStatus(resp.Status)
	if !ok {
		return nil, &repository.NetworkError{Op: "/jobs/status", Err: fmt.Errorf("unknown job status %q", resp.Status)}
	}
	job := &entity.CrawlJob{JobID: jobID, Status: status, Message: resp.Message}
	if resp.Progress != nil {
		job.Progress = entity.Progress{
			PagesScanned:       resp.Progress.PagesScanned,
			PagesTotalEstimate: resp.Progress.PagesTotalEst,
		}
	}
	return job, nil
}

func parseJobStatus(s string) (entity.JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued":
		return entity.JobPending, true
	case "running", "processing":
		return entity.JobRunning, true
	case "done", "completed":
		return entity.JobDone, true
	case "error", "failed":
		return entity.JobError, true
	default:
		return "", false
	}
}

// ResultsHead returns the best pages found by a finished job.
func (c *Client) ResultsHead(ctx context.Context, jobID string) (*entity.ResultsHead, error) {
	q := url.Values{}
	q.Set("job_id", jobID)
	var head entity.ResultsHead
	if err := c.doJSON(ctx, http.MethodGet, "/results/head?"+q.Encode(), nil, &head); err != nil {
		return nil, err
	}
	return &head, nil
}

// Search runs the fast pre-ranked search tier.
func (c *Client) Search(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error) {
	return c.ask(ctx, "/search", req)
}

// VectorSearch runs the vector-similarity tier.
func (c *Client) VectorSearch(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error) {
	return c.ask(ctx, "/vector-search", req)
}

// Query runs the plain question-answering tier.
func (c *Client) Query(ctx context.Context, req repository.QueryRequest) (*repository.QueryResponse, error) {
	return c.ask(ctx, "/query", req)
}

func (c *Client) ask(ctx context.Context, op string, req repository.QueryRequest) (*repository.QueryResponse, error) {
	var resp repository.QueryResponse
	if err := c.doJSON(ctx, http.MethodPost, op, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Feedback reports whether an answer helped.
func (c *Client) Feedback(ctx context.Context, fb entity.Feedback) error {
	return c.doJSON(ctx, http.MethodPost, "/feedback", fb, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.sessionID != "" {
		req.Header.Set("X-Sherpa-Session", c.sessionID)
	}
	return req, nil
}

// doJSON sends body as JSON and decodes a 2xx response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	op := endpointName(path)
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveBackendRequest(op, "error", time.Since(start))
		c.logger.Debug("backend request failed", zap.String("endpoint", op), zap.Error(err))
		return repository.NewTransportError(op, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveBackendRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("backend returned error status",
			zap.String("endpoint", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return repository.NewStatusError(op, resp.StatusCode)
	}

	if out == nil {
		drain(resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &repository.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// endpointName strips query strings and ids so metric labels stay bounded.
func endpointName(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if strings.HasPrefix(path, "/jobs/") {
		return "/jobs/status"
	}
	return path
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}
