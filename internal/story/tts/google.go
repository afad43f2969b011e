package tts

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/texttospeech/apiv1"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

// GoogleEngine synthesizes utterances with Google Cloud Text-to-Speech,
// caches the MP3 output on disk and plays it through the system speaker.
type GoogleEngine struct {
	client   *texttospeech.Client
	voice    string
	language string
	cacheDir string

	mu          sync.Mutex
	current     *playback
	speakerRate beep.SampleRate
}

type playback struct {
	done     chan error
	stopCtx  func() bool
	ctrl     *beep.Ctrl
	streamer beep.StreamSeekCloser
	paused   bool
	finished bool
}

var _ CacheableEngine = (*GoogleEngine)(nil)

func newGoogleEngine(config Config) (*GoogleEngine, error) {
	client, err := texttospeech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	if err := os.MkdirAll(config.CachePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	return &GoogleEngine{
		client:   client,
		voice:    config.Voice,
		language: config.Language,
		cacheDir: config.CachePath,
	}, nil
}

func (g *GoogleEngine) Available() bool {
	return g.client != nil
}

func (g *GoogleEngine) Speak(ctx context.Context, u Utterance) (<-chan error, error) {
	pb := &playback{done: make(chan error, 1)}

	g.mu.Lock()
	prev := g.current
	g.current = pb
	g.mu.Unlock()

	if prev != nil {
		g.complete(prev, ErrCancelled)
	}

	stop := context.AfterFunc(ctx, func() {
		g.complete(pb, ctx.Err())
	})
	g.mu.Lock()
	pb.stopCtx = stop
	finished := pb.finished
	g.mu.Unlock()
	if finished {
		stop()
	}

	go g.run(ctx, pb, u)
	return pb.done, nil
}

func (g *GoogleEngine) run(ctx context.Context, pb *playback, u Utterance) {
	path, err := g.synthesize(ctx, u)
	if err != nil {
		g.complete(pb, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		g.complete(pb, fmt.Errorf("failed to open cached MP3 %s: %w", path, err))
		return
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		g.complete(pb, fmt.Errorf("failed to decode MP3 %s: %w", path, err))
		return
	}

	source, err := g.prepareSpeaker(streamer, format)
	if err != nil {
		streamer.Close()
		g.complete(pb, err)
		return
	}

	g.mu.Lock()
	if pb.finished {
		g.mu.Unlock()
		streamer.Close()
		return
	}
	pb.streamer = streamer
	pb.ctrl = &beep.Ctrl{Streamer: withVolume(source, u.Volume), Paused: pb.paused}
	ctrl := pb.ctrl
	g.mu.Unlock()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// runs on the speaker goroutine with the speaker locked
		go g.complete(pb, nil)
	})))
}

// prepareSpeaker initializes the speaker on first use and resamples streams
// that do not match its rate.
func (g *GoogleEngine) prepareSpeaker(s beep.Streamer, format beep.Format) (beep.Streamer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.speakerRate == 0 {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return nil, fmt.Errorf("failed to initialize speaker: %w", err)
		}
		g.speakerRate = format.SampleRate
	}

	if format.SampleRate != g.speakerRate {
		return beep.Resample(4, format.SampleRate, g.speakerRate, s), nil
	}
	return s, nil
}

// withVolume maps a linear volume in [0,1] onto beep's logarithmic gain.
func withVolume(s beep.Streamer, volume float64) beep.Streamer {
	if volume >= 1 {
		return s
	}
	v := &effects.Volume{Streamer: s, Base: 2}
	if volume <= 0 {
		v.Silent = true
	} else {
		v.Volume = math.Log2(volume)
	}
	return v
}

func (g *GoogleEngine) complete(pb *playback, err error) {
	g.mu.Lock()
	if pb.finished {
		g.mu.Unlock()
		return
	}
	pb.finished = true
	if g.current == pb {
		g.current = nil
	}
	ctrl, streamer, stopCtx := pb.ctrl, pb.streamer, pb.stopCtx
	g.mu.Unlock()

	if ctrl != nil {
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
	}
	if streamer != nil {
		streamer.Close()
	}
	if stopCtx != nil {
		stopCtx()
	}

	pb.done <- err
	close(pb.done)
}

// synthesize returns the path of the MP3 for u, calling the API only when it
// is not cached yet.
func (g *GoogleEngine) synthesize(ctx context.Context, u Utterance) (string, error) {
	language := u.Language
	if language == "" {
		language = g.language
	}

	contentHash := md5Sum(fmt.Sprintf("%s|%s|%.2f|%s", language, g.voice, u.Rate, u.Text))[:16]
	path := filepath.Join(g.cacheDir, contentHash+".mp3")

	if _, err := os.Stat(path); err == nil {
		logrus.WithFields(logrus.Fields{"utterance": u.ID, "file": path}).Debug("Using cached audio")
		return path, nil
	}

	voice := &texttospeechpb.VoiceSelectionParams{LanguageCode: language}
	if g.voice != "" && g.voice != "default" {
		voice.Name = g.voice
	}

	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	// Chirp voices don't support speakingRate
	if !strings.Contains(strings.ToLower(g.voice), "chirp") && u.Rate > 0 {
		audioCfg.SpeakingRate = u.Rate
	}

	resp, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: u.Text},
		},
		Voice:       voice,
		AudioConfig: audioCfg,
	})
	if err != nil {
		return "", fmt.Errorf("failed to synthesize utterance %d: %w", u.Index, err)
	}

	if err := os.WriteFile(path, resp.AudioContent, 0644); err != nil {
		return "", fmt.Errorf("failed to write MP3 to %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{"utterance": u.ID, "file": path}).Debug("Cached synthesized audio")
	return path, nil
}

func (g *GoogleEngine) Pause() error {
	g.setPaused(true)
	return nil
}

func (g *GoogleEngine) Resume() error {
	g.setPaused(false)
	return nil
}

func (g *GoogleEngine) setPaused(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return
	}
	g.current.paused = paused
	if ctrl := g.current.ctrl; ctrl != nil {
		speaker.Lock()
		ctrl.Paused = paused
		speaker.Unlock()
	}
}

func (g *GoogleEngine) Cancel() error {
	g.mu.Lock()
	pb := g.current
	g.mu.Unlock()

	if pb != nil {
		g.complete(pb, ErrCancelled)
	}
	return nil
}

func (g *GoogleEngine) Voices() ([]string, error) {
	resp, err := g.client.ListVoices(context.Background(), &texttospeechpb.ListVoicesRequest{
		LanguageCode: g.language,
	})
	if err != nil {
		return nil, err
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}
	return voices, nil
}

// CacheStats returns cache statistics for the engine
func (g *GoogleEngine) CacheStats() (CacheStats, error) {
	stats := CacheStats{Directory: g.cacheDir}

	var totalSize int64
	err := filepath.Walk(g.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Continue walking despite errors
		}

		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".mp3") {
			stats.Files++
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	stats.SizeMB = float64(totalSize) / (1024 * 1024)
	return stats, nil
}

// ClearCache removes all cached files
func (g *GoogleEngine) ClearCache() error {
	if err := os.RemoveAll(g.cacheDir); err != nil {
		return err
	}
	return os.MkdirAll(g.cacheDir, 0755)
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}
