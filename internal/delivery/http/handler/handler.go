package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/delivery/http/request"
	"github.com/tchan1002/apache/internal/delivery/http/response"
	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/internal/usecase"
)

// Controller is the part of usecase.Controller the API exposes.
type Controller interface {
	Snapshot() (string, *entity.SiteState, bool)
	Check(ctx context.Context, url string) (*entity.SiteState, error)
	HandleNavigation(ctx context.Context, url string) (*entity.SiteState, error)
	Scout(ctx context.Context) (*entity.SiteState, error)
	Ask(ctx context.Context, question string) (*entity.Answer, error)
	LastAnswer() *entity.Answer
	GoToSource(ctx context.Context, answer *entity.Answer, index int) error
	SubmitFeedback(ctx context.Context, fb entity.Feedback) error
}

type Handler struct {
	controller Controller
	sessionID  string
	logger     *zap.Logger
}

func NewHandler(controller Controller, sessionID string, logger *zap.Logger) *Handler {
	return &Handler{
		controller: controller,
		sessionID:  sessionID,
		logger:     logger,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.StatusResponse{Status: "ok"})
}

func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	url, state, scouting := h.controller.Snapshot()
	h.writeJSON(w, http.StatusOK, h.stateResponse(url, state, scouting))
}

// HandleCheck reports readiness for any URL without changing the tracked page.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req request.URLRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.controller.Check(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.stateResponse(req.URL, state, false))
}

// HandleNavigate tells the client the user is now on a different page.
func (h *Handler) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	var req request.URLRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := h.controller.HandleNavigation(r.Context(), req.URL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.stateResponse(req.URL, state, false))
}

func (h *Handler) HandleScout(w http.ResponseWriter, r *http.Request) {
	// The body is optional.
	var req request.ScoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL != "" {
		if _, err := h.controller.HandleNavigation(r.Context(), req.URL); err != nil {
			h.writeError(w, err)
			return
		}
	}

	state, err := h.controller.Scout(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.stateResponse(state.URL, state, false))
}

func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req request.AskRequest
	if !h.decode(w, r, &req) {
		return
	}
	answer, err := h.controller.Ask(r.Context(), req.Question)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.AnswerResponse{Answer: answer, Unknown: answer.Unknown()})
}

// HandleSource opens a source of the most recent answer in the browser.
func (h *Handler) HandleSource(w http.ResponseWriter, r *http.Request) {
	var req request.SourceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.controller.GoToSource(r.Context(), h.controller.LastAnswer(), req.Index); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.StatusResponse{Status: "ok"})
}

func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req request.FeedbackRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.LandedURL == "" {
		h.writeJSONError(w, "landed_url is required", http.StatusBadRequest)
		return
	}

	fb := entity.Feedback{
		JobID:      req.JobID,
		LandedURL:  req.LandedURL,
		WasCorrect: req.WasCorrect,
		Question:   req.Question,
		Tier:       entity.Tier(req.Tier),
	}
	if err := h.controller.SubmitFeedback(r.Context(), fb); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.StatusResponse{Status: "ok", Message: "Thanks for the feedback."})
}

func (h *Handler) stateResponse(url string, state *entity.SiteState, scouting bool) response.StateResponse {
	return response.StateResponse{
		SessionID: h.sessionID,
		URL:       url,
		Ready:     state.Ready(),
		Scouting:  scouting,
		State:     state,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// StatusFor maps a client error to the HTTP status the API answers with.
func StatusFor(err error) int {
	var netErr *repository.NetworkError
	switch {
	case errors.Is(err, usecase.ErrInvalidPage),
		errors.Is(err, usecase.ErrEmptyQuestion),
		errors.Is(err, usecase.ErrNoSource):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNoActiveTab):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrScoutInProgress),
		errors.Is(err, usecase.ErrNotScouted),
		errors.Is(err, usecase.ErrStaleIndex),
		errors.Is(err, usecase.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrPollTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout:
		return http.StatusGatewayTimeout
	case errors.Is(err, usecase.ErrAllTiersFailed),
		errors.Is(err, usecase.ErrCrawlFailed),
		errors.Is(err, usecase.ErrStreamIncomplete),
		errors.As(err, &netErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	h.writeJSONError(w, usecase.UserMessage(err), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
