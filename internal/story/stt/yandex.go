package stt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"

	"cuentacuentos/internal/story/audio"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	speechkit "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
)

const yandexEndpoint = "stt.api.cloud.yandex.net:443"

type YandexConfig struct {
	IamToken string
	FolderID string
	Endpoint string
}

// YandexRecognizer streams microphone audio to Yandex SpeechKit v3 and
// reports partial and final hypotheses.
type YandexRecognizer struct {
	config YandexConfig
	source audio.Source
}

var _ Recognizer = (*YandexRecognizer)(nil)

func NewYandexRecognizer(config YandexConfig, source audio.Source) *YandexRecognizer {
	if config.Endpoint == "" {
		config.Endpoint = yandexEndpoint
	}
	return &YandexRecognizer{config: config, source: source}
}

func (y *YandexRecognizer) Available() bool {
	return y.config.IamToken != "" && y.config.FolderID != "" && y.source != nil
}

func (y *YandexRecognizer) Start(ctx context.Context, opts Options) (Session, error) {
	conn, err := grpc.NewClient(y.config.Endpoint, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Yandex STT: %w", err)
	}

	s, ctx := newSession(ctx)

	md := metadata.Pairs(
		"authorization", "Bearer "+y.config.IamToken,
		"x-folder-id", y.config.FolderID,
	)
	stream, err := speechkit.NewRecognizerClient(conn).RecognizeStreaming(metadata.NewOutgoingContext(ctx, md))
	if err != nil {
		s.cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to create streaming client: %w", err)
	}

	if err := stream.Send(yandexSessionOptions(opts.Language, int64(y.source.SampleRate()))); err != nil {
		s.cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to send session options: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session":  s.id,
		"language": opts.Language,
	}).Info("Yandex recognition session started")

	frames := make(chan []byte, 32)
	go func() {
		if err := y.source.Stream(ctx, frames); err != nil && ctx.Err() == nil {
			s.fail(ctx, fmt.Errorf("audio capture: %w", err))
			s.cancel()
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				stream.CloseSend()
				return
			case frame := <-frames:
				err := stream.Send(&speechkit.StreamingRequest{
					Event: &speechkit.StreamingRequest_Chunk{
						Chunk: &speechkit.AudioChunk{Data: frame},
					},
				})
				if err != nil {
					logrus.WithError(err).Debug("Failed to send audio chunk")
					return
				}
			}
		}
	}()

	go func() {
		defer conn.Close()
		defer s.finish()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				s.fail(ctx, err)
				return
			}

			result, ok := yandexResult(resp)
			if !ok {
				continue
			}
			if !s.emit(ctx, Event{Results: []Result{result}}) {
				return
			}
			if result.IsFinal && !opts.Continuous {
				return
			}
		}
	}()

	return s, nil
}

func yandexSessionOptions(language string, sampleRate int64) *speechkit.StreamingRequest {
	return &speechkit.StreamingRequest{
		Event: &speechkit.StreamingRequest_SessionOptions{
			SessionOptions: &speechkit.StreamingOptions{
				RecognitionModel: &speechkit.RecognitionModelOptions{
					AudioFormat: &speechkit.AudioFormatOptions{
						AudioFormat: &speechkit.AudioFormatOptions_RawAudio{
							RawAudio: &speechkit.RawAudio{
								AudioEncoding:     speechkit.RawAudio_LINEAR16_PCM,
								SampleRateHertz:   sampleRate,
								AudioChannelCount: 1,
							},
						},
					},
					TextNormalization: &speechkit.TextNormalizationOptions{
						TextNormalization: speechkit.TextNormalizationOptions_TEXT_NORMALIZATION_ENABLED,
					},
					LanguageRestriction: &speechkit.LanguageRestrictionOptions{
						RestrictionType: speechkit.LanguageRestrictionOptions_WHITELIST,
						LanguageCode:    []string{language},
					},
					AudioProcessingType: speechkit.RecognitionModelOptions_REAL_TIME,
				},
			},
		},
	}
}

// yandexResult converts a partial or final update. Other response kinds
// (status, end of utterance) carry no text.
func yandexResult(resp *speechkit.StreamingResponse) (Result, bool) {
	update, final := resp.GetPartial(), false
	if f := resp.GetFinal(); f != nil {
		update, final = f, true
	}
	if update == nil {
		return Result{}, false
	}

	result := Result{IsFinal: final}
	for _, alternative := range update.GetAlternatives() {
		if text := alternative.GetText(); text != "" {
			result.Alternatives = append(result.Alternatives, text)
		}
	}
	if len(result.Alternatives) == 0 {
		return Result{}, false
	}
	return result, true
}
