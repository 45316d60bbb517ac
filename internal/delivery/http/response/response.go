package response

import "github.com/tchan1002/apache/internal/entity"

// StateResponse describes the tracked page and its readiness.
type StateResponse struct {
	SessionID string            `json:"session_id,omitempty"`
	URL       string            `json:"url"`
	Ready     bool              `json:"ready"`
	Scouting  bool              `json:"scouting,omitempty"`
	State     *entity.SiteState `json:"state,omitempty"`
}

// AnswerResponse wraps an answer; Unknown marks "I don't know" replies.
type AnswerResponse struct {
	Answer  *entity.Answer `json:"answer"`
	Unknown bool           `json:"unknown"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
