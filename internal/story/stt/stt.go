package stt

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Options configure one recognition session.
type Options struct {
	Language   string
	Continuous bool
}

// Result is one recognition hypothesis group. Alternatives are ordered by
// confidence, best first.
type Result struct {
	Alternatives []string
	IsFinal      bool
}

// Event carries a batch of results or a terminal error. A session delivers
// no further events after an error and closes its channel.
type Event struct {
	Results []Result
	Err     error
}

type Session interface {
	Events() <-chan Event
	Stop() error
}

type Recognizer interface {
	Available() bool
	Start(ctx context.Context, opts Options) (Session, error)
}

// session is the event plumbing shared by the recognizers. The producer
// goroutine owns the events channel and closes it through finish.
type session struct {
	id     string
	events chan Event
	cancel context.CancelFunc

	stopOnce sync.Once
	onStop   func()
}

func newSession(parent context.Context) (*session, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:     uuid.NewString(),
		events: make(chan Event, 8),
		cancel: cancel,
	}, ctx
}

func (s *session) Events() <-chan Event {
	return s.events
}

// Stop ends the session. The events channel is closed once the producer
// notices.
func (s *session) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.onStop != nil {
			s.onStop()
		}
	})
	return nil
}

// emit delivers ev unless the session was stopped.
func (s *session) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail delivers a terminal error unless the session was stopped.
func (s *session) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.emit(ctx, Event{Err: err})
}

func (s *session) finish() {
	s.cancel()
	close(s.events)
}
