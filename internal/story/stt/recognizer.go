package stt

import (
	"fmt"
	"io"

	"cuentacuentos/internal/story/audio"
)

type RecognizerType string

const (
	RecognizerTypeText     RecognizerType = "text"
	RecognizerTypeYandex   RecognizerType = "yandex"
	RecognizerTypeDeepgram RecognizerType = "deepgram"
)

type Config struct {
	Type     string
	Audio    audio.Config
	Yandex   YandexConfig
	Deepgram DeepgramConfig
}

// NewRecognizer builds the configured recognizer. Text recognition reads
// transcripts from text; the streaming recognizers capture the microphone.
func NewRecognizer(config Config, text io.Reader) (Recognizer, error) {
	switch RecognizerType(config.Type) {
	case RecognizerTypeText, "":
		return NewTextRecognizer(text), nil
	case RecognizerTypeYandex:
		return NewYandexRecognizer(config.Yandex, audio.NewCapture(config.Audio)), nil
	case RecognizerTypeDeepgram:
		return NewDeepgramRecognizer(config.Deepgram, audio.NewCapture(config.Audio)), nil
	default:
		return nil, fmt.Errorf("unsupported recognizer type: %s", config.Type)
	}
}
