package narration

import (
	"context"
	"fmt"
	"math"
	"sync"

	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/story/tts"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type State int

const (
	Idle State = iota
	Playing
	Paused
	// Stopped follows an engine failure. The chunk index is kept so the
	// listener can retry with TogglePlayPause.
	Stopped
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Options struct {
	Language  string
	Rate      float64
	Volume    float64
	ChunkSize int

	// OnChange receives a snapshot after every observable transition. It is
	// called without the sequencer lock held, possibly from the driving
	// goroutine.
	OnChange func(Snapshot)

	// OnError receives playback failures wrapped in ErrPlayback.
	OnError func(error)
}

func DefaultOptions() Options {
	return Options{
		Language:  "es-ES",
		Rate:      0.9,
		Volume:    1.0,
		ChunkSize: 40,
	}
}

// Snapshot is a consistent view of the playback session.
type Snapshot struct {
	State      State
	Story      *story.Story
	ChunkIndex int
	ChunkCount int
	Volume     float64
	Generation uint64
}

func (s Snapshot) IsPlaying() bool {
	return s.State == Playing
}

func (s Snapshot) IsFinished() bool {
	return s.State == Finished
}

// Sequencer narrates a story one chunk at a time through a speech engine.
//
// Every transition that abandons the in-flight utterance (Play, Cancel,
// restart) bumps the generation. The driving goroutine captures the
// generation it was started for and drops any completion that arrives after
// the generation moved on.
type Sequencer struct {
	engine tts.Engine
	opts   Options

	mu         sync.Mutex
	state      State
	story      *story.Story
	chunks     []string
	index      int
	volume     float64
	generation uint64
	cancel     context.CancelFunc

	// wake is non-nil while the driving loop is parked on a pause that began
	// after the last utterance completed.
	wake chan struct{}
}

func New(engine tts.Engine, opts Options) (*Sequencer, error) {
	if engine == nil {
		return nil, fmt.Errorf("nil engine: %w", ErrEngineUnavailable)
	}
	if opts.ChunkSize < 1 {
		return nil, fmt.Errorf("chunk size %d: %w", opts.ChunkSize, ErrConfig)
	}
	if !validVolume(opts.Volume) {
		return nil, fmt.Errorf("volume %v: %w", opts.Volume, ErrConfig)
	}

	return &Sequencer{
		engine: engine,
		opts:   opts,
		volume: opts.Volume,
	}, nil
}

func validVolume(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Play starts narrating st from chunk startIndex, abandoning whatever was
// playing before. A story without words finishes immediately.
func (s *Sequencer) Play(st story.Story, startIndex int) error {
	if !s.engine.Available() {
		return fmt.Errorf("play %q: %w", st.Title, ErrEngineUnavailable)
	}

	chunks, err := Chunk(st.Content, s.opts.ChunkSize)
	if err != nil {
		return err
	}
	if startIndex < 0 || startIndex > len(chunks) {
		return fmt.Errorf("start index %d outside [0, %d]: %w", startIndex, len(chunks), ErrConfig)
	}

	s.mu.Lock()
	s.fenceLocked()
	s.story = &st
	s.chunks = chunks
	s.index = startIndex
	if startIndex == len(chunks) {
		s.state = Finished
	} else {
		s.state = Playing
		s.startLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"story":  st.Title,
		"chunks": len(chunks),
		"start":  startIndex,
	}).Info("Starting narration")

	s.notify(snap)
	return nil
}

// TogglePlayPause pauses while playing, resumes while paused and restarts a
// finished story from its first chunk. After an engine failure it retries
// the chunk that failed. It does nothing when idle.
func (s *Sequencer) TogglePlayPause() error {
	s.mu.Lock()

	switch s.state {
	case Idle:
		s.mu.Unlock()
		return nil

	case Playing:
		return s.pauseLocked()

	case Paused:
		if s.wake != nil {
			close(s.wake)
			s.wake = nil
		} else if err := s.engine.Resume(); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("resume: %w: %w", err, ErrPlayback)
		}
		s.state = Playing

	case Finished, Stopped:
		if !s.engine.Available() {
			s.mu.Unlock()
			return fmt.Errorf("restart: %w", ErrEngineUnavailable)
		}
		if s.state == Finished {
			if len(s.chunks) == 0 {
				s.mu.Unlock()
				return nil
			}
			s.index = 0
		}
		s.fenceLocked()
		s.state = Playing
		s.startLocked()
	}

	snap := s.snapshotLocked()
	s.mu.Unlock()

	logrus.WithField("state", snap.State).Debug("Narration toggled")
	s.notify(snap)
	return nil
}

// PauseOnly pauses when playing and is a no-op otherwise.
func (s *Sequencer) PauseOnly() error {
	s.mu.Lock()
	if s.state != Playing {
		s.mu.Unlock()
		return nil
	}
	return s.pauseLocked()
}

// pauseLocked is entered with s.mu held and releases it.
func (s *Sequencer) pauseLocked() error {
	if err := s.engine.Pause(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("pause: %w: %w", err, ErrPlayback)
	}
	s.state = Paused
	snap := s.snapshotLocked()
	s.mu.Unlock()

	logrus.WithField("chunk", snap.ChunkIndex).Debug("Narration paused")
	s.notify(snap)
	return nil
}

// Cancel stops narration immediately and clears the session.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	if s.state == Idle && s.story == nil {
		s.generation++
		s.mu.Unlock()
		return
	}

	s.fenceLocked()
	s.state = Idle
	s.story = nil
	s.chunks = nil
	s.index = 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	logrus.Debug("Narration cancelled")
	s.notify(snap)
}

// SetVolume applies to the next utterance; the one in flight keeps its volume.
func (s *Sequencer) SetVolume(v float64) error {
	if !validVolume(v) {
		return fmt.Errorf("volume %v: %w", v, ErrConfig)
	}

	s.mu.Lock()
	s.volume = v
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func (s *Sequencer) ChunkIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Sequencer) IsPlaying() bool {
	return s.State() == Playing
}

func (s *Sequencer) IsFinished() bool {
	return s.State() == Finished
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// CurrentStory returns the story being narrated, if any.
func (s *Sequencer) CurrentStory() (story.Story, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.story == nil {
		return story.Story{}, false
	}
	return *s.story, true
}

func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Sequencer) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      s.state,
		ChunkIndex: s.index,
		ChunkCount: len(s.chunks),
		Volume:     s.volume,
		Generation: s.generation,
	}
	if s.story != nil {
		st := *s.story
		snap.Story = &st
	}
	return snap
}

// fenceLocked invalidates the current generation and stops its utterance.
func (s *Sequencer) fenceLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wake = nil
	if err := s.engine.Cancel(); err != nil {
		logrus.WithError(err).Warn("Failed to cancel utterance")
	}
}

// startLocked launches the driving loop for the current generation.
func (s *Sequencer) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx, s.generation)
}

// run speaks chunks in order until the story ends, playback fails or the
// generation is superseded.
func (s *Sequencer) run(ctx context.Context, gen uint64) {
	for {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}

		for s.state == Paused {
			if s.wake == nil {
				s.wake = make(chan struct{})
			}
			wake := s.wake
			s.mu.Unlock()

			select {
			case <-wake:
			case <-ctx.Done():
				return
			}

			s.mu.Lock()
			if s.generation != gen {
				s.mu.Unlock()
				return
			}
		}

		if s.state != Playing {
			s.mu.Unlock()
			return
		}

		u := tts.Utterance{
			ID:       uuid.NewString(),
			Text:     s.chunks[s.index],
			Language: s.opts.Language,
			Rate:     s.opts.Rate,
			Volume:   s.volume,
			Index:    s.index,
		}
		done, err := s.engine.Speak(ctx, u)
		if err != nil {
			s.failLocked(gen, u, err)
			return
		}
		s.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"utterance":  u.ID,
			"chunk":      u.Index,
			"generation": gen,
		}).Debug("Utterance started")

		var result error
		select {
		case result = <-done:
		case <-ctx.Done():
			result = ctx.Err()
		}

		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			logrus.WithField("utterance", u.ID).Debug("Dropping stale completion")
			return
		}
		if result != nil {
			s.failLocked(gen, u, result)
			return
		}

		s.index++
		if s.index >= len(s.chunks) {
			s.state = Finished
			snap := s.snapshotLocked()
			s.mu.Unlock()

			logrus.WithField("story", snap.Story.Title).Info("Narration finished")
			s.notify(snap)
			return
		}
		if s.state == Paused && s.wake == nil {
			// paused just as the utterance ended; resume must wake the loop
			s.wake = make(chan struct{})
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
	}
}

// failLocked is entered with s.mu held and releases it.
func (s *Sequencer) failLocked(gen uint64, u tts.Utterance, cause error) {
	s.state = Stopped
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	err := fmt.Errorf("chunk %d: %w: %w", u.Index, cause, ErrPlayback)
	logrus.WithError(cause).WithFields(logrus.Fields{
		"utterance":  u.ID,
		"chunk":      u.Index,
		"generation": gen,
	}).Error("Utterance failed")

	s.notify(snap)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

func (s *Sequencer) notify(snap Snapshot) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(snap)
	}
}
