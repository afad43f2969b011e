// internal/story/tts/tts.go
package tts

import (
	"context"
	"errors"
)

var (
	// ErrCancelled is delivered on an utterance's completion channel when it
	// was cut short by Cancel or superseded by a newer Speak.
	ErrCancelled = errors.New("utterance cancelled")

	// ErrUnsupported is returned by engines that cannot perform an operation
	// on the current platform.
	ErrUnsupported = errors.New("operation not supported by engine")
)

type Config struct {
	Type      string
	Voice     string
	Language  string
	CachePath string
	Rate      float64
	Volume    float64
}

// Utterance is one request to speak a piece of text.
type Utterance struct {
	ID       string
	Text     string
	Language string
	Rate     float64
	Volume   float64
	Index    int
}

// Engine speaks one utterance at a time. Speak must not block until the
// speech is over: it returns a channel that receives exactly one value (nil on
// natural completion) and is then closed. Starting a new utterance supersedes
// the previous one. Cancelling ctx aborts the utterance.
type Engine interface {
	Available() bool
	Speak(ctx context.Context, u Utterance) (<-chan error, error)
	Pause() error
	Resume() error
	Cancel() error
	Voices() ([]string, error)
}

// CacheableEngine extends Engine with cache management capabilities
type CacheableEngine interface {
	Engine
	CacheStats() (CacheStats, error)
	ClearCache() error
}

type CacheStats struct {
	Directory string
	Files     int64
	SizeMB    float64
}
