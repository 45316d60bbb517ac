package entity

// JobStatus is the lifecycle state of a backend crawl job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError
}

// Progress is informational only; it never drives control flow.
type Progress struct {
	PagesScanned       int  `json:"pages_scanned"`
	PagesTotalEstimate *int `json:"pages_total_est,omitempty"`
}

// CrawlJob is an ephemeral handle on an asynchronous crawl. It is never persisted.
type CrawlJob struct {
	JobID    string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Progress Progress  `json:"progress"`
	Message  string    `json:"message,omitempty"`
}

// CrawlEventType names the events of the crawl progress stream.
type CrawlEventType string

const (
	EventStatus CrawlEventType = "status"
	EventDone   CrawlEventType = "done"
	EventError  CrawlEventType = "error"
)

// CrawlEvent is one decoded line of the crawl progress stream.
type CrawlEvent struct {
	Type    CrawlEventType `json:"type"`
	Message string         `json:"message,omitempty"`
	URL     string         `json:"url,omitempty"`
}

// ResultsHead summarizes the best pages found by a finished crawl job.
type ResultsHead struct {
	Top       *Source `json:"top,omitempty"`
	Next      *Source `json:"next,omitempty"`
	Remaining int     `json:"remaining"`
}
