package tts

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// MockTTSEngine prints utterances instead of speaking them and completes each
// one after a simulated reading time.
type MockTTSEngine struct {
	out     io.Writer
	perWord time.Duration

	mu      sync.Mutex
	current *mockUtterance
}

type mockUtterance struct {
	done      chan error
	timer     *time.Timer
	stopCtx   func() bool
	started   time.Time
	remaining time.Duration
	paused    bool
	finished  bool
}

var _ Engine = (*MockTTSEngine)(nil)

// NewMockTTSEngine writes to out and simulates perWord of speech per word at
// rate 1.0.
func NewMockTTSEngine(out io.Writer, perWord time.Duration) *MockTTSEngine {
	if out == nil {
		out = os.Stdout
	}
	return &MockTTSEngine{out: out, perWord: perWord}
}

func (m *MockTTSEngine) Available() bool {
	return true
}

func (m *MockTTSEngine) Voices() ([]string, error) {
	return []string{"mock-voice"}, nil
}

func (m *MockTTSEngine) Speak(ctx context.Context, u Utterance) (<-chan error, error) {
	// Simulate reading time based on text length
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(u.Text))
	duration := time.Duration(float64(words) * float64(m.perWord) / rate)

	color.New(color.FgYellow).Fprintf(m.out, "🔊 %s\n", u.Text)

	mu := &mockUtterance{
		done:      make(chan error, 1),
		started:   time.Now(),
		remaining: duration,
	}

	m.mu.Lock()
	prev := m.current
	m.current = mu
	mu.timer = time.AfterFunc(duration, func() { m.complete(mu, nil) })
	m.mu.Unlock()

	if prev != nil {
		m.complete(prev, ErrCancelled)
	}

	stop := context.AfterFunc(ctx, func() { m.complete(mu, ctx.Err()) })
	m.mu.Lock()
	mu.stopCtx = stop
	finished := mu.finished
	m.mu.Unlock()
	if finished {
		stop()
	}

	return mu.done, nil
}

func (m *MockTTSEngine) complete(mu *mockUtterance, err error) {
	m.mu.Lock()
	if mu.finished {
		m.mu.Unlock()
		return
	}
	mu.finished = true
	mu.timer.Stop()
	if m.current == mu {
		m.current = nil
	}
	stopCtx := mu.stopCtx
	m.mu.Unlock()

	if stopCtx != nil {
		stopCtx()
	}
	mu.done <- err
	close(mu.done)
}

func (m *MockTTSEngine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mu := m.current
	if mu == nil || mu.paused {
		return nil
	}
	if mu.timer.Stop() {
		mu.remaining -= time.Since(mu.started)
		mu.paused = true
	}
	return nil
}

func (m *MockTTSEngine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mu := m.current
	if mu == nil || !mu.paused {
		return nil
	}
	mu.paused = false
	mu.started = time.Now()
	mu.timer = time.AfterFunc(mu.remaining, func() { m.complete(mu, nil) })
	return nil
}

func (m *MockTTSEngine) Cancel() error {
	m.mu.Lock()
	mu := m.current
	m.mu.Unlock()

	if mu != nil {
		m.complete(mu, ErrCancelled)
	}
	return nil
}
