package stt

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// TextRecognizer treats each line read from r as one final transcript. It
// lets the voice commands be driven from a keyboard or a script. Lines that
// arrive while no session is receiving are dropped.
type TextRecognizer struct {
	r    io.Reader
	once sync.Once

	mu      sync.Mutex
	current *textReceiver
	closed  chan struct{}
}

type textReceiver struct {
	lines chan string
	done  chan struct{}
}

var _ Recognizer = (*TextRecognizer)(nil)

func NewTextRecognizer(r io.Reader) *TextRecognizer {
	return &TextRecognizer{r: r, closed: make(chan struct{})}
}

func (t *TextRecognizer) Available() bool {
	return t.r != nil
}

// read runs for the life of the recognizer so that successive sessions share
// one reader.
func (t *TextRecognizer) read() {
	scanner := bufio.NewScanner(t.r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			t.deliver(line)
		}
	}
	if err := scanner.Err(); err != nil {
		logrus.WithError(err).Warn("Transcript input failed")
	}
	close(t.closed)
}

func (t *TextRecognizer) deliver(line string) {
	t.mu.Lock()
	rx := t.current
	t.mu.Unlock()

	if rx != nil {
		select {
		case rx.lines <- line:
			return
		case <-rx.done:
		}
	}
	logrus.WithField("transcript", line).Debug("No active session, transcript dropped")
}

func (t *TextRecognizer) release(rx *textReceiver) {
	close(rx.done)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == rx {
		t.current = nil
	}
}

func (t *TextRecognizer) Start(ctx context.Context, opts Options) (Session, error) {
	rx := &textReceiver{lines: make(chan string), done: make(chan struct{})}
	t.mu.Lock()
	t.current = rx
	t.mu.Unlock()

	t.once.Do(func() { go t.read() })

	s, ctx := newSession(ctx)
	logrus.WithFields(logrus.Fields{
		"session":  s.id,
		"language": opts.Language,
	}).Debug("Text recognition session started")

	go func() {
		defer s.finish()
		defer t.release(rx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.closed:
				return
			case line := <-rx.lines:
				ev := Event{Results: []Result{{Alternatives: []string{line}, IsFinal: true}}}
				if !s.emit(ctx, ev) {
					return
				}
				if !opts.Continuous {
					return
				}
			}
		}
	}()

	return s, nil
}
