package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tchan1002/apache/internal/repository"
)

func TestUserMessageIsDistinct(t *testing.T) {
	errs := map[string]error{
		"invalid page":  ErrInvalidPage,
		"scout running": ErrScoutInProgress,
		"not scouted":   ErrNotScouted,
		"stale":         ErrStaleIndex,
		"all tiers":     fmt.Errorf("%w: %w", ErrAllTiersFailed, statusErr("/query", 500)),
		"poll timeout":  fmt.Errorf("%w after 3 attempts", ErrPollTimeout),
		"stream":        &ScoutError{Step: StepCrawl, Err: ErrStreamIncomplete},
		"parse": &ScoutError{Step: StepCrawl, Err: fmt.Errorf("%w: %w", ErrStreamIncomplete,
			&repository.StreamParseError{Line: "x", Err: errors.New("bad")})},
		"crawl failed": &ScoutError{Step: StepCrawl, Err: ErrCrawlFailed},
		"timeout": &ScoutError{Step: StepCrawl, Err: fmt.Errorf("%w: %w", ErrStreamIncomplete,
			repository.NewTransportError("/crawl/stream", context.DeadlineExceeded))},
		"server":           &ScoutError{Step: StepCreateSite, Err: statusErr("/site", 503)},
		"client":           statusErr("/site", 400),
		"network":          repository.NewTransportError("/site", errors.New("connection refused")),
		"no source":        ErrNoSource,
		"empty question":   ErrEmptyQuestion,
		"no active tab":    repository.ErrNoActiveTab,
		"unexpected error": errors.New("boom"),
	}

	seen := make(map[string]string)
	for name, err := range errs {
		msg := UserMessage(err)
		assert.NotEmpty(t, msg, name)
		if other, dup := seen[msg]; dup {
			t.Errorf("%s and %s share the message %q", name, other, msg)
		}
		seen[msg] = name
	}
	assert.Empty(t, UserMessage(nil))
}

func TestScoutErrorUnwraps(t *testing.T) {
	cause := statusErr("/site", 500)
	err := error(&ScoutError{Step: StepCreateSite, Err: cause})

	assert.Contains(t, err.Error(), "create_site")
	var netErr *repository.NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, 500, netErr.StatusCode)
}
