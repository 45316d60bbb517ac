package usecase

import (
	"context"
	"errors"

	"github.com/tchan1002/apache/internal/repository"
)

var (
	ErrInvalidPage      = errors.New("page is not a scoutable web page")
	ErrPollTimeout      = errors.New("crawl job did not finish within the polling limit")
	ErrNotScouted       = errors.New("site has not been scouted")
	ErrStaleIndex       = errors.New("site index no longer exists, scout again")
	ErrAllTiersFailed   = errors.New("all query tiers failed")
	ErrScoutInProgress  = errors.New("scout already in progress")
	ErrCrawlFailed      = errors.New("crawl job failed")
	ErrStreamIncomplete = errors.New("crawl stream ended without a terminal event")
	ErrEmptyResult      = errors.New("tier returned no usable result")
	ErrNoSource         = errors.New("answer has no such source")
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrSuperseded       = errors.New("result discarded after navigation")
)

// ScoutStep names the state a scout attempt was in.
type ScoutStep string

const (
	StepCheckExisting ScoutStep = "check_existing"
	StepCreateSite    ScoutStep = "create_site"
	StepCrawl         ScoutStep = "crawl"
	StepDone          ScoutStep = "done"
)

// ScoutError is a fatal scout failure at a given step.
type ScoutError struct {
	Step ScoutStep
	Err  error
}

func (e *ScoutError) Error() string {
	return "scout failed at " + string(e.Step) + ": " + e.Err.Error()
}

func (e *ScoutError) Unwrap() error { return e.Err }

// UserMessage maps err to a message fit for display. Each failure class gets
// its own wording so the user can tell them apart.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var netErr *repository.NetworkError
	var parseErr *repository.StreamParseError

	switch {
	case errors.Is(err, ErrInvalidPage):
		return "Sherpa can't work on this page. Open a regular website and try again."
	case errors.Is(err, ErrScoutInProgress):
		return "Scouting is already running for this site."
	case errors.Is(err, ErrNotScouted):
		return "This site hasn't been scouted yet. Scout it first."
	case errors.Is(err, ErrStaleIndex):
		return "This site's index is gone. Scout it again to keep asking questions."
	case errors.Is(err, ErrAllTiersFailed):
		return "Couldn't get an answer right now. Please try again."
	case errors.Is(err, ErrEmptyQuestion):
		return "Type a question first."
	case errors.Is(err, ErrNoSource):
		return "That answer has no source to open."
	case errors.Is(err, repository.ErrNoActiveTab):
		return "No active browser tab was found."
	case errors.Is(err, ErrPollTimeout):
		return "Scouting is taking too long. Please try again later."
	// An incomplete stream reports its cause when it has one.
	case errors.As(err, &parseErr):
		return "Received an unreadable response while scouting. Please try again."
	case errors.As(err, &netErr) && netErr.Timeout:
		return "The request timed out. Please try again."
	case errors.Is(err, ErrStreamIncomplete):
		return "Lost the connection while scouting. Please try again."
	case errors.Is(err, ErrCrawlFailed):
		return "The site could not be crawled. Please try again."
	case errors.As(err, &netErr) && netErr.ServerError():
		return "The Pathfinder server had a problem. Please try again."
	case errors.As(err, &netErr) && netErr.ClientError():
		return "The Pathfinder server rejected the request."
	case errors.As(err, &netErr):
		return "Network error. Check your connection and try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	case errors.Is(err, context.Canceled), errors.Is(err, ErrSuperseded):
		return "Cancelled."
	default:
		return "Something went wrong. Please try again."
	}
}
