package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/delivery/http/response"
	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/internal/usecase"
)

const pageURL = "https://docs.example.com/guide"

type fakeController struct {
	url      string
	state    *entity.SiteState
	scouting bool

	checkErr    error
	navigateErr error
	scoutErr    error
	answer      *entity.Answer
	askErr      error
	sourceErr   error
	feedbackErr error

	navigated   []string
	sourceIndex int
	feedback    []entity.Feedback
}

func (f *fakeController) Snapshot() (string, *entity.SiteState, bool) {
	return f.url, f.state, f.scouting
}

func (f *fakeController) Check(ctx context.Context, url string) (*entity.SiteState, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return f.state, nil
}

func (f *fakeController) HandleNavigation(ctx context.Context, url string) (*entity.SiteState, error) {
	f.navigated = append(f.navigated, url)
	if f.navigateErr != nil {
		return nil, f.navigateErr
	}
	f.url = url
	return f.state, nil
}

func (f *fakeController) Scout(ctx context.Context) (*entity.SiteState, error) {
	if f.scoutErr != nil {
		return nil, f.scoutErr
	}
	return f.state, nil
}

func (f *fakeController) Ask(ctx context.Context, question string) (*entity.Answer, error) {
	if f.askErr != nil {
		return nil, f.askErr
	}
	return f.answer, nil
}

func (f *fakeController) LastAnswer() *entity.Answer {
	return f.answer
}

func (f *fakeController) GoToSource(ctx context.Context, answer *entity.Answer, index int) error {
	f.sourceIndex = index
	return f.sourceErr
}

func (f *fakeController) SubmitFeedback(ctx context.Context, fb entity.Feedback) error {
	f.feedback = append(f.feedback, fb)
	return f.feedbackErr
}

func serve(t *testing.T, fn http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	fn(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHandleGetState(t *testing.T) {
	ctrl := &fakeController{
		url:      pageURL,
		state:    entity.NewSiteState(pageURL, "docs.example.com", "site-1", true),
		scouting: true,
	}
	h := NewHandler(ctrl, "session-1", zap.NewNop())

	rr := serve(t, h.HandleGetState, http.MethodGet, "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	resp := decodeBody[response.StateResponse](t, rr)
	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, pageURL, resp.URL)
	assert.True(t, resp.Ready)
	assert.True(t, resp.Scouting)
	assert.Equal(t, "site-1", resp.State.SiteID)
}

func TestHandleCheckRejectsBadBody(t *testing.T) {
	h := NewHandler(&fakeController{}, "", zap.NewNop())

	rr := serve(t, h.HandleCheck, http.MethodPost, "{not json")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request body", decodeBody[response.ErrorResponse](t, rr).Error)
}

func TestHandleCheckNotReady(t *testing.T) {
	ctrl := &fakeController{state: entity.NewSiteState(pageURL, "docs.example.com", "", false)}
	h := NewHandler(ctrl, "", zap.NewNop())

	rr := serve(t, h.HandleCheck, http.MethodPost, `{"url":"`+pageURL+`"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[response.StateResponse](t, rr)
	assert.False(t, resp.Ready)
	assert.Empty(t, ctrl.navigated, "check must not change the tracked page")
}

func TestHandleNavigateTracksURL(t *testing.T) {
	ctrl := &fakeController{state: entity.NewSiteState(pageURL, "docs.example.com", "site-1", true)}
	h := NewHandler(ctrl, "", zap.NewNop())

	rr := serve(t, h.HandleNavigate, http.MethodPost, `{"url":"`+pageURL+`"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{pageURL}, ctrl.navigated)
	assert.True(t, decodeBody[response.StateResponse](t, rr).Ready)
}

func TestHandleScout(t *testing.T) {
	t.Run("scouts tracked page with empty body", func(t *testing.T) {
		ctrl := &fakeController{url: pageURL, state: entity.NewSiteState(pageURL, "docs.example.com", "site-1", true)}
		h := NewHandler(ctrl, "", zap.NewNop())

		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		rr := httptest.NewRecorder()
		h.HandleScout(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, ctrl.navigated)
		assert.True(t, decodeBody[response.StateResponse](t, rr).Ready)
	})

	t.Run("navigates first when a url is given", func(t *testing.T) {
		ctrl := &fakeController{state: entity.NewSiteState(pageURL, "docs.example.com", "site-1", true)}
		h := NewHandler(ctrl, "", zap.NewNop())

		rr := serve(t, h.HandleScout, http.MethodPost, `{"url":"`+pageURL+`"}`)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{pageURL}, ctrl.navigated)
	})

	t.Run("second scout conflicts", func(t *testing.T) {
		ctrl := &fakeController{url: pageURL, scoutErr: usecase.ErrScoutInProgress}
		h := NewHandler(ctrl, "", zap.NewNop())

		rr := serve(t, h.HandleScout, http.MethodPost, `{}`)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, usecase.UserMessage(usecase.ErrScoutInProgress), decodeBody[response.ErrorResponse](t, rr).Error)
	})
}

func TestHandleAsk(t *testing.T) {
	answer := &entity.Answer{
		Text:     "Install with go get.",
		Sources:  []entity.Source{{URL: "https://docs.example.com/install", Title: "Install"}},
		UsedTier: entity.TierSearch,
	}
	ctrl := &fakeController{answer: answer}
	h := NewHandler(ctrl, "", zap.NewNop())

	rr := serve(t, h.HandleAsk, http.MethodPost, `{"question":"how do I install it?"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody[response.AnswerResponse](t, rr)
	assert.False(t, resp.Unknown)
	assert.Equal(t, "Install with go get.", resp.Answer.Text)
}

func TestHandleAskStaleIndex(t *testing.T) {
	h := NewHandler(&fakeController{askErr: usecase.ErrStaleIndex}, "", zap.NewNop())

	rr := serve(t, h.HandleAsk, http.MethodPost, `{"question":"where are the docs?"}`)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandleSource(t *testing.T) {
	ctrl := &fakeController{}
	h := NewHandler(ctrl, "", zap.NewNop())

	rr := serve(t, h.HandleSource, http.MethodPost, `{"index":2}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, ctrl.sourceIndex)

	ctrl.sourceErr = usecase.ErrNoSource
	rr = serve(t, h.HandleSource, http.MethodPost, `{"index":9}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleFeedback(t *testing.T) {
	ctrl := &fakeController{}
	h := NewHandler(ctrl, "", zap.NewNop())

	rr := serve(t, h.HandleFeedback, http.MethodPost,
		`{"job_id":"job-1","landed_url":"https://docs.example.com/install","was_correct":true,"tier":"search"}`)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, ctrl.feedback, 1)
	assert.Equal(t, entity.Feedback{
		JobID:      "job-1",
		LandedURL:  "https://docs.example.com/install",
		WasCorrect: true,
		Tier:       entity.TierSearch,
	}, ctrl.feedback[0])

	rr = serve(t, h.HandleFeedback, http.MethodPost, `{"was_correct":false}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, ctrl.feedback, 1)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid page", usecase.ErrInvalidPage, http.StatusBadRequest},
		{"empty question", usecase.ErrEmptyQuestion, http.StatusBadRequest},
		{"no tab", repository.ErrNoActiveTab, http.StatusNotFound},
		{"not scouted", usecase.ErrNotScouted, http.StatusConflict},
		{"superseded", usecase.ErrSuperseded, http.StatusConflict},
		{"poll timeout", fmt.Errorf("%w: last status running", usecase.ErrPollTimeout), http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"transport timeout", &repository.NetworkError{Op: "/check", Timeout: true, Err: errors.New("i/o timeout")}, http.StatusGatewayTimeout},
		{"server error", repository.NewStatusError("/query", http.StatusInternalServerError), http.StatusBadGateway},
		{"all tiers", fmt.Errorf("%w: boom", usecase.ErrAllTiersFailed), http.StatusBadGateway},
		{"scout step", &usecase.ScoutError{Step: usecase.StepCrawl, Err: usecase.ErrCrawlFailed}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
