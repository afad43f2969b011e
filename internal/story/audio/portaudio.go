package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

type Config struct {
	SampleRate      int
	FramesPerBuffer int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		FramesPerBuffer: 1024,
	}
}

// Capture reads the default input device through PortAudio.
type Capture struct {
	config Config
}

var _ Source = (*Capture)(nil)

func NewCapture(config Config) *Capture {
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultConfig().SampleRate
	}
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = DefaultConfig().FramesPerBuffer
	}
	return &Capture{config: config}
}

func (c *Capture) SampleRate() int {
	return c.config.SampleRate
}

func (c *Capture) Stream(ctx context.Context, out chan<- []byte) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}
	defer portaudio.Terminate()

	buffer := make([]int16, c.config.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.config.SampleRate), len(buffer), buffer)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	defer stream.Stop()

	logrus.WithField("sample_rate", c.config.SampleRate).Debug("Microphone capture started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				logrus.Debug("Audio input overflowed")
				continue
			}
			return fmt.Errorf("failed to read audio: %w", err)
		}

		select {
		case out <- encodePCM(buffer):
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Drop audio if channel is full
		}
	}
}

// encodePCM converts samples to 16-bit little-endian PCM bytes.
func encodePCM(samples []int16) []byte {
	buf := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
	}
	return buf
}
