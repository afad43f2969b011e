package stt

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"cuentacuentos/internal/story/audio"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type DeepgramConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func DefaultDeepgramConfig() DeepgramConfig {
	return DeepgramConfig{
		BaseURL: "wss://api.deepgram.com",
		Model:   "nova-2",
	}
}

// DeepgramRecognizer streams microphone audio to Deepgram's live
// transcription websocket.
type DeepgramRecognizer struct {
	config DeepgramConfig
	source audio.Source
	dialer *websocket.Dialer
}

var _ Recognizer = (*DeepgramRecognizer)(nil)

func NewDeepgramRecognizer(config DeepgramConfig, source audio.Source) *DeepgramRecognizer {
	defaults := DefaultDeepgramConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	return &DeepgramRecognizer{config: config, source: source, dialer: websocket.DefaultDialer}
}

func (d *DeepgramRecognizer) Available() bool {
	return d.config.APIKey != "" && d.source != nil
}

// listenURL builds the websocket URL with the query parameters for one
// session.
func (d *DeepgramRecognizer) listenURL(opts Options) (string, error) {
	base, err := url.Parse(d.config.BaseURL + "/v1/listen")
	if err != nil {
		return "", err
	}

	q := base.Query()
	q.Set("model", d.config.Model)
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	q.Set("interim_results", "true")
	q.Set("punctuate", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.source.SampleRate()))
	q.Set("channels", "1")

	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (d *DeepgramRecognizer) Start(ctx context.Context, opts Options) (Session, error) {
	wsURL, err := d.listenURL(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	headers := http.Header{"Authorization": {"Token " + d.config.APIKey}}
	conn, _, err := d.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	s, ctx := newSession(ctx)
	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(messageType, data)
	}

	s.onStop = func() {
		if msg, err := sonic.Marshal(deepgramControl{Type: "CloseStream"}); err == nil {
			_ = write(websocket.TextMessage, msg)
		}
		_ = conn.Close()
	}

	logrus.WithFields(logrus.Fields{
		"session":  s.id,
		"language": opts.Language,
	}).Info("Deepgram recognition session started")

	frames := make(chan []byte, 32)
	go func() {
		if err := d.source.Stream(ctx, frames); err != nil && ctx.Err() == nil {
			s.fail(ctx, fmt.Errorf("audio capture: %w", err))
			s.Stop()
		}
	}()

	go func() {
		keepAlive := time.NewTicker(10 * time.Second)
		defer keepAlive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-frames:
				if err := write(websocket.BinaryMessage, frame); err != nil {
					logrus.WithError(err).Debug("Failed to send audio")
					return
				}
			case <-keepAlive.C:
				if msg, err := sonic.Marshal(deepgramControl{Type: "KeepAlive"}); err == nil {
					_ = write(websocket.TextMessage, msg)
				}
			}
		}
	}()

	go func() {
		defer s.finish()

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				s.fail(ctx, fmt.Errorf("error reading message: %w", err))
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			result, ok, err := parseDeepgramMessage(message)
			if err != nil {
				logrus.WithError(err).Debug("Ignoring Deepgram message")
				continue
			}
			if !ok {
				continue
			}
			if !s.emit(ctx, Event{Results: []Result{result}}) {
				return
			}
			if result.IsFinal && !opts.Continuous {
				s.Stop()
				return
			}
		}
	}()

	return s, nil
}

type deepgramControl struct {
	Type string `json:"type"`
}

type deepgramResults struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize,omitempty"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseDeepgramMessage extracts a Result from a "Results" frame. Metadata,
// SpeechStarted and UtteranceEnd frames report ok=false.
func parseDeepgramMessage(message []byte) (Result, bool, error) {
	var msg deepgramResults
	if err := sonic.Unmarshal(message, &msg); err != nil {
		return Result{}, false, fmt.Errorf("failed to parse message: %w", err)
	}

	switch msg.Type {
	case "Results":
	case "Metadata", "SpeechStarted", "UtteranceEnd":
		return Result{}, false, nil
	default:
		return Result{}, false, fmt.Errorf("unknown message type: %s", msg.Type)
	}

	result := Result{IsFinal: msg.IsFinal || msg.SpeechFinal || msg.FromFinalize}
	for _, alt := range msg.Channel.Alternatives {
		if alt.Transcript != "" {
			result.Alternatives = append(result.Alternatives, alt.Transcript)
		}
	}
	if len(result.Alternatives) == 0 {
		return Result{}, false, nil
	}
	return result, true, nil
}
