package narration

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/story/tts"

	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.PanicLevel)
	os.Exit(m.Run())
}

// fakeEngine records utterances and completes them only when the test says so.
type fakeEngine struct {
	mu          sync.Mutex
	unavailable bool
	speakErr    error
	// cancelDelivers makes Cancel end pending utterances with ErrCancelled.
	cancelDelivers bool
	handles     []chan error
	pauses      int
	resumes     int
	cancels     int

	started chan tts.Utterance
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{started: make(chan tts.Utterance, 64)}
}

func (f *fakeEngine) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

func (f *fakeEngine) Speak(_ context.Context, u tts.Utterance) (<-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.speakErr != nil {
		return nil, f.speakErr
	}
	done := make(chan error, 1)
	f.handles = append(f.handles, done)
	f.started <- u
	return done, nil
}

func (f *fakeEngine) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeEngine) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakeEngine) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	if f.cancelDelivers {
		for _, done := range f.handles {
			select {
			case done <- tts.ErrCancelled:
			default:
			}
		}
	}
	return nil
}

func (f *fakeEngine) Voices() ([]string, error) {
	return nil, nil
}

// complete delivers the result of the n-th Speak call.
func (f *fakeEngine) complete(n int, err error) {
	f.mu.Lock()
	done := f.handles[n]
	f.mu.Unlock()
	done <- err
}

func (f *fakeEngine) next(t *testing.T) tts.Utterance {
	t.Helper()
	select {
	case u := <-f.started:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no utterance started")
		return tts.Utterance{}
	}
}

func (f *fakeEngine) expectNone(t *testing.T) {
	t.Helper()
	select {
	case u := <-f.started:
		t.Fatalf("unexpected utterance %d: %q", u.Index, u.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func newSequencer(t *testing.T, engine tts.Engine, chunkSize int) *Sequencer {
	t.Helper()
	opts := DefaultOptions()
	opts.ChunkSize = chunkSize
	s, err := New(engine, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

var conejo = story.Story{
	Title:    "El Conejo",
	Content:  "uno dos tres cuatro cinco",
	Category: story.Sleep,
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.ChunkSize = 0
	if _, err := New(newFakeEngine(), opts); !errors.Is(err, ErrConfig) {
		t.Errorf("chunk size 0: expected ErrConfig, got %v", err)
	}

	opts = DefaultOptions()
	opts.Volume = 2
	if _, err := New(newFakeEngine(), opts); !errors.Is(err, ErrConfig) {
		t.Errorf("volume 2: expected ErrConfig, got %v", err)
	}
}

func TestSequencer_PlaysChunksInOrder(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 2)

	if err := s.Play(conejo, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"uno dos", "tres cuatro", "cinco"}
	for i, text := range want {
		u := f.next(t)
		if u.Index != i || u.Text != text {
			t.Fatalf("utterance %d: got (%d, %q), want (%d, %q)", i, u.Index, u.Text, i, text)
		}
		if u.Language != "es-ES" || u.Rate != 0.9 {
			t.Errorf("unexpected utterance settings: %+v", u)
		}
		if !s.IsPlaying() || s.IsFinished() {
			t.Errorf("chunk %d: expected playing and not finished", i)
		}

		// the next chunk must wait for this one
		f.expectNone(t)
		f.complete(i, nil)
	}

	eventually(t, "finished", s.IsFinished)
	if s.IsPlaying() {
		t.Error("finished sequencer must not be playing")
	}
	if got := s.ChunkIndex(); got != len(want) {
		t.Errorf("ChunkIndex() = %d, want %d", got, len(want))
	}
	f.expectNone(t)
}

func TestSequencer_StartIndex(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 2)

	if err := s.Play(conejo, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u := f.next(t); u.Index != 2 || u.Text != "cinco" {
		t.Errorf("unexpected first utterance: %+v", u)
	}

	for _, idx := range []int{-1, 4} {
		if err := s.Play(conejo, idx); !errors.Is(err, ErrConfig) {
			t.Errorf("start index %d: expected ErrConfig, got %v", idx, err)
		}
	}
}

func TestSequencer_EmptyStoryFinishes(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 2)

	if err := s.Play(story.Story{Title: "Vacío", Content: "   "}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.IsFinished() {
		t.Errorf("expected finished, got %s", s.State())
	}
	f.expectNone(t)
}

func TestSequencer_CancelFencesStaleCompletion(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 2)

	if err := s.Play(conejo, 0); err != nil {
		t.Fatal(err)
	}
	f.next(t)

	s.Cancel()
	f.complete(0, nil)
	f.expectNone(t)

	if s.State() != Idle {
		t.Errorf("expected idle, got %s", s.State())
	}
	if s.ChunkIndex() != 0 || s.IsPlaying() || s.IsFinished() {
		t.Errorf("unexpected state after stale completion: %+v", s.Snapshot())
	}
	if _, ok := s.CurrentStory(); ok {
		t.Error("cancel must clear the current story")
	}
}

func TestSequencer_CancelFencesStaleError(t *testing.T) {
	f := newFakeEngine()
	var errs []error
	var mu sync.Mutex
	opts := DefaultOptions()
	opts.ChunkSize = 2
	opts.OnError = func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	s, _ := New(f, opts)

	s.Play(conejo, 0)
	f.next(t)
	s.Cancel()
	f.complete(0, errors.New("late failure"))
	f.expectNone(t)

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 0 {
		t.Errorf("stale error must not be reported, got %v", errs)
	}
}

func TestSequencer_CancelledUtteranceIsNotReported(t *testing.T) {
	f := newFakeEngine()
	f.cancelDelivers = true
	var errs []error
	var mu sync.Mutex
	opts := DefaultOptions()
	opts.ChunkSize = 2
	opts.OnError = func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	s, _ := New(f, opts)

	if err := s.Play(conejo, 0); err != nil {
		t.Fatal(err)
	}
	f.next(t)

	// the restart cancels chunk 0, whose ErrCancelled belongs to the old run
	if err := s.Play(conejo, 1); err != nil {
		t.Fatal(err)
	}
	if u := f.next(t); u.Index != 1 {
		t.Fatalf("expected chunk 1, got %d", u.Index)
	}
	f.expectNone(t)

	if s.State() != Playing || s.ChunkIndex() != 1 {
		t.Errorf("stale cancellation changed state: %+v", s.Snapshot())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 0 {
		t.Errorf("cancelled utterance must not be reported, got %v", errs)
	}
}

func TestSequencer_CancelIdleIsIdempotent(t *testing.T) {
	f := newFakeEngine()
	changes := 0
	opts := DefaultOptions()
	opts.OnChange = func(Snapshot) { changes++ }
	s, _ := New(f, opts)

	before := s.Snapshot()
	s.Cancel()
	s.Cancel()
	after := s.Snapshot()

	if before.State != after.State || before.ChunkIndex != after.ChunkIndex ||
		before.Story != after.Story || before.Volume != after.Volume {
		t.Errorf("cancel on idle changed state: %+v -> %+v", before, after)
	}
	if changes != 0 {
		t.Errorf("expected no change notifications, got %d", changes)
	}
	if f.cancels != 0 {
		t.Errorf("expected no engine cancel, got %d", f.cancels)
	}
}

func TestSequencer_RestartFromFinished(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 10)

	s.Play(conejo, 0)
	f.next(t)
	f.complete(0, nil)
	eventually(t, "finished", s.IsFinished)
	gen := s.Snapshot().Generation

	if err := s.TogglePlayPause(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := f.next(t)
	if u.Index != 0 || u.Text != conejo.Content {
		t.Errorf("restart should replay chunk 0, got %+v", u)
	}
	snap := s.Snapshot()
	if snap.State != Playing || snap.ChunkIndex != 0 {
		t.Errorf("unexpected snapshot after restart: %+v", snap)
	}
	if snap.Generation <= gen {
		t.Errorf("restart must bump the generation: %d -> %d", gen, snap.Generation)
	}
}

func TestSequencer_PlayFromFinishedRestarts(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 10)

	s.Play(conejo, 0)
	f.next(t)
	f.complete(0, nil)
	eventually(t, "finished", s.IsFinished)

	if err := s.Play(conejo, 0); err != nil {
		t.Fatal(err)
	}
	if u := f.next(t); u.Index != 0 {
		t.Errorf("expected chunk 0, got %d", u.Index)
	}
	if !s.IsPlaying() {
		t.Error("expected playing")
	}
}

func TestSequencer_PauseResume(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 2)

	s.Play(conejo, 0)
	f.next(t)

	if err := s.TogglePlayPause(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Paused || f.pauses != 1 {
		t.Fatalf("expected paused with one engine pause, got %s / %d", s.State(), f.pauses)
	}
	if s.ChunkIndex() != 0 {
		t.Errorf("pause must not move the index, got %d", s.ChunkIndex())
	}

	if err := s.TogglePlayPause(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Playing || f.resumes != 1 {
		t.Fatalf("expected playing with one engine resume, got %s / %d", s.State(), f.resumes)
	}

	// same utterance continues; its completion advances normally
	f.complete(0, nil)
	if u := f.next(t); u.Index != 1 {
		t.Errorf("expected chunk 1 after resume, got %d", u.Index)
	}
}

func TestSequencer_CompletionWhilePausedParks(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 2)

	s.Play(conejo, 0)
	f.next(t)
	s.PauseOnly()

	f.complete(0, nil)
	eventually(t, "index advance", func() bool { return s.ChunkIndex() == 1 })
	f.expectNone(t)
	if s.State() != Paused {
		t.Fatalf("expected paused, got %s", s.State())
	}

	s.TogglePlayPause()
	if u := f.next(t); u.Index != 1 {
		t.Errorf("expected chunk 1 after resume, got %d", u.Index)
	}
	if f.resumes != 0 {
		t.Errorf("parked resume must not call the engine, got %d", f.resumes)
	}
}

func TestSequencer_PauseOnly(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 10)

	// idle: no-op
	if err := s.PauseOnly(); err != nil || s.State() != Idle {
		t.Fatalf("PauseOnly on idle: %v / %s", err, s.State())
	}

	s.Play(conejo, 0)
	f.next(t)
	s.PauseOnly()
	s.PauseOnly()
	if s.State() != Paused || f.pauses != 1 {
		t.Errorf("expected a single pause, got %s / %d", s.State(), f.pauses)
	}

	// never resumes
	if s.State() != Paused {
		t.Error("PauseOnly must not resume")
	}

	s.TogglePlayPause()
	f.complete(0, nil)
	eventually(t, "finished", s.IsFinished)
	s.PauseOnly()
	if !s.IsFinished() {
		t.Error("PauseOnly on finished must be a no-op")
	}
}

func TestSequencer_EngineErrorStops(t *testing.T) {
	f := newFakeEngine()
	errs := make(chan error, 1)
	opts := DefaultOptions()
	opts.ChunkSize = 2
	opts.OnError = func(err error) { errs <- err }
	s, _ := New(f, opts)

	s.Play(conejo, 0)
	f.next(t)
	f.complete(0, nil)
	f.next(t)

	cause := errors.New("audio device lost")
	f.complete(1, cause)

	select {
	case err := <-errs:
		if !errors.Is(err, ErrPlayback) || !errors.Is(err, cause) {
			t.Errorf("expected wrapped playback error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error was not reported")
	}

	snap := s.Snapshot()
	if snap.State != Stopped || snap.ChunkIndex != 1 || snap.IsPlaying() || snap.IsFinished() {
		t.Errorf("unexpected state after engine error: %+v", snap)
	}
	f.expectNone(t)

	// explicit retry re-speaks the failed chunk
	if err := s.TogglePlayPause(); err != nil {
		t.Fatal(err)
	}
	if u := f.next(t); u.Index != 1 {
		t.Errorf("expected retry of chunk 1, got %d", u.Index)
	}
}

func TestSequencer_SpeakErrorStops(t *testing.T) {
	f := newFakeEngine()
	f.speakErr = errors.New("synthesizer crashed")
	s := newSequencer(t, f, 2)

	if err := s.Play(conejo, 0); err != nil {
		t.Fatal(err)
	}
	eventually(t, "stopped", func() bool { return s.State() == Stopped })
	if s.ChunkIndex() != 0 {
		t.Errorf("index must not advance, got %d", s.ChunkIndex())
	}
}

func TestSequencer_UnavailableEngine(t *testing.T) {
	f := newFakeEngine()
	f.unavailable = true
	s := newSequencer(t, f, 2)

	if err := s.Play(conejo, 0); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if s.State() != Idle {
		t.Errorf("expected idle, got %s", s.State())
	}
	f.expectNone(t)
}

func TestSequencer_Volume(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 2)

	for _, v := range []float64{-0.5, 1.5, math.NaN()} {
		if err := s.SetVolume(v); !errors.Is(err, ErrConfig) {
			t.Errorf("SetVolume(%v): expected ErrConfig, got %v", v, err)
		}
	}
	if s.Volume() != 1.0 {
		t.Errorf("rejected volume must not apply, got %v", s.Volume())
	}

	s.Play(conejo, 0)
	if u := f.next(t); u.Volume != 1.0 {
		t.Errorf("expected volume 1.0, got %v", u.Volume)
	}

	if err := s.SetVolume(0.4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.complete(0, nil)
	if u := f.next(t); u.Volume != 0.4 {
		t.Errorf("next utterance should carry 0.4, got %v", u.Volume)
	}
}

func TestSequencer_NewStorySupersedesOld(t *testing.T) {
	f := newFakeEngine()
	s := newSequencer(t, f, 2)

	s.Play(conejo, 0)
	f.next(t)

	tortuga := story.Story{Title: "La Tortuga", Content: "lenta pero segura"}
	s.Play(tortuga, 0)
	u := f.next(t)
	if u.Text != "lenta pero" {
		t.Fatalf("expected new story chunk, got %q", u.Text)
	}

	// the old story's completion arrives late
	f.complete(0, nil)
	f.expectNone(t)

	if st, _ := s.CurrentStory(); st.Title != "La Tortuga" || s.ChunkIndex() != 0 {
		t.Errorf("stale completion changed state: %+v", s.Snapshot())
	}

	f.complete(1, nil)
	if u := f.next(t); u.Text != "segura" {
		t.Errorf("expected second chunk of new story, got %q", u.Text)
	}
}
