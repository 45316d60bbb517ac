package request

// URLRequest is the body of /api/check and /api/navigate.
type URLRequest struct {
	URL string `json:"url"`
}

// ScoutRequest optionally switches to URL before scouting.
type ScoutRequest struct {
	URL string `json:"url,omitempty"`
}

type AskRequest struct {
	Question string `json:"question"`
}

// SourceRequest picks a source of the last answer by position.
type SourceRequest struct {
	Index int `json:"index"`
}

type FeedbackRequest struct {
	JobID      string `json:"job_id,omitempty"`
	LandedURL  string `json:"landed_url"`
	WasCorrect bool   `json:"was_correct"`
	Question   string `json:"question,omitempty"`
	Tier       string `json:"tier,omitempty"`
}
