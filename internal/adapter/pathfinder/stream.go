package pathfinder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
)

const maxEventLine = 1 << 20

// eventStream decodes newline-delimited `data: <json>` crawl events.
type eventStream struct {
	op     string
	body   io.ReadCloser
	reader *bufio.Reader
	cancel context.CancelFunc
	done   bool
}

func newEventStream(op string, body io.ReadCloser, cancel context.CancelFunc) *eventStream {
	return &eventStream{op: op, body: body, reader: bufio.NewReaderSize(body, 64*1024), cancel: cancel}
}

// NewEventStream wraps r as a repository.CrawlStream.
func NewEventStream(r io.ReadCloser) repository.CrawlStream {
	return newEventStream("/crawl/stream", r, func() {})
}

// Next returns the next event, a *repository.StreamParseError for a malformed
// line, io.EOF at end of stream, or a *repository.NetworkError if reading failed.
func (s *eventStream) Next() (entity.CrawlEvent, error) {
	if s.done {
		return entity.CrawlEvent{}, io.EOF
	}
	for {
		raw, err := s.readLine()
		if errors.Is(err, bufio.ErrTooLong) {
			// The oversized line has been consumed; the stream stays usable.
			return entity.CrawlEvent{}, &repository.StreamParseError{Err: err}
		}
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				return entity.CrawlEvent{}, io.EOF
			}
			return entity.CrawlEvent{}, repository.NewTransportError(s.op, err)
		}

		line := strings.TrimSpace(string(raw))
		payload, ok := eventPayload(line)
		if !ok {
			continue
		}

		var event entity.CrawlEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return entity.CrawlEvent{}, &repository.StreamParseError{Line: line, Err: err}
		}
		switch event.Type {
		case entity.EventStatus, entity.EventDone, entity.EventError:
			return event, nil
		default:
			return entity.CrawlEvent{}, &repository.StreamParseError{
				Line: line,
				Err:  fmt.Errorf("unknown event type %q", event.Type),
			}
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// maxEventLine is read to its end and reported as bufio.ErrTooLong.
func (s *eventStream) readLine() ([]byte, error) {
	var (
		line     []byte
		overflow bool
	)
	for {
		chunk, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			return nil, err
		}
		if !overflow {
			if len(line)+len(chunk) > maxEventLine {
				overflow = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if overflow {
		return nil, bufio.ErrTooLong
	}
	return line, nil
}

// eventPayload extracts the JSON payload of a stream line. SSE comments,
// event names and blank keep-alive lines carry nothing.
func eventPayload(line string) (string, bool) {
	switch {
	case line == "", strings.HasPrefix(line, ":"), strings.HasPrefix(line, "event:"),
		strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
		return "", false
	case strings.HasPrefix(line, "data:"):
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		return payload, payload != ""
	default:
		// Bare newline-delimited JSON.
		return line, true
	}
}

func (s *eventStream) Close() error {
	err := s.body.Close()
	s.cancel()
	return err
}
