package entity

// Feedback records whether an answer led the user to the right page.
type Feedback struct {
	JobID      string `json:"job_id,omitempty"`
	LandedURL  string `json:"landed_url"`
	WasCorrect bool   `json:"was_correct"`
	Question   string `json:"question,omitempty"`
	SiteID     string `json:"site_id,omitempty"`
	Tier       Tier   `json:"tier,omitempty"`
}
