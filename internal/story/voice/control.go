package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cuentacuentos/internal/story/stt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrRecognition reports a failed or interrupted recognition session.
	ErrRecognition = errors.New("speech recognition failed")

	// ErrEngineUnavailable is returned when the recognizer cannot run here.
	ErrEngineUnavailable = errors.New("speech recognizer unavailable")

	// ErrStopped is returned by Start when Stop was called while the
	// recognizer was still connecting.
	ErrStopped = errors.New("voice control stopped while starting")
)

type ControlOptions struct {
	Language   string
	Continuous bool
}

func DefaultControlOptions() ControlOptions {
	return ControlOptions{Language: "es-ES", Continuous: true}
}

// Control owns at most one recognition session and turns its final
// transcripts into intents.
type Control struct {
	recognizer stt.Recognizer
	opts       ControlOptions

	startMu sync.Mutex

	mu      sync.Mutex
	session stt.Session
	gen     uint64
}

func NewControl(recognizer stt.Recognizer, opts ControlOptions) *Control {
	return &Control{recognizer: recognizer, opts: opts}
}

// Start replaces any running session with a new one. onIntent is called once
// per recognized command, never concurrently and never after the session
// ends. onError receives the error that ended the session, if any.
func (c *Control) Start(ctx context.Context, onIntent func(Intent), onError func(error)) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.Stop()

	if c.recognizer == nil || !c.recognizer.Available() {
		return ErrEngineUnavailable
	}

	c.mu.Lock()
	started := c.gen
	c.mu.Unlock()

	session, err := c.recognizer.Start(ctx, stt.Options{
		Language:   c.opts.Language,
		Continuous: c.opts.Continuous,
	})
	if err != nil {
		return fmt.Errorf("start: %w: %w", err, ErrRecognition)
	}

	c.mu.Lock()
	if c.gen != started {
		c.mu.Unlock()
		if err := session.Stop(); err != nil {
			logrus.WithError(err).Warn("Failed to stop recognition session")
		}
		return ErrStopped
	}
	c.gen++
	gen := c.gen
	c.session = session
	c.mu.Unlock()

	logrus.WithField("language", c.opts.Language).Info("Voice control active")

	go c.dispatch(session, gen, onIntent, onError)
	return nil
}

func (c *Control) dispatch(session stt.Session, gen uint64, onIntent func(Intent), onError func(error)) {
	defer c.release(gen)

	for ev := range session.Events() {
		if !c.current(gen) {
			return
		}

		if ev.Err != nil {
			c.release(gen)
			logrus.WithError(ev.Err).Warn("Voice recognition stopped")
			if onError != nil {
				onError(fmt.Errorf("%w: %w", ev.Err, ErrRecognition))
			}
			return
		}

		transcript, ok := latestFinal(ev.Results)
		if !ok {
			continue
		}

		intent := Classify(transcript)
		logrus.WithFields(logrus.Fields{
			"transcript": transcript,
			"intent":     intent.String(),
		}).Debug("Transcript classified")

		if intent.Kind == Unknown || onIntent == nil {
			continue
		}
		onIntent(intent)
	}
}

// latestFinal returns the best alternative of the last final result in the
// batch. Interim results are ignored.
func latestFinal(results []stt.Result) (string, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.IsFinal && len(r.Alternatives) > 0 {
			return r.Alternatives[0], true
		}
	}
	return "", false
}

func (c *Control) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.session != nil
}

// release marks the session of generation gen inactive if it is still the
// current one.
func (c *Control) release(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.session = nil
	}
}

// Stop ends the current session, if any.
func (c *Control) Stop() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.gen++
	c.mu.Unlock()

	if session == nil {
		return
	}
	if err := session.Stop(); err != nil {
		logrus.WithError(err).Warn("Failed to stop recognition session")
	}
	logrus.Info("Voice control stopped")
}

func (c *Control) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}
