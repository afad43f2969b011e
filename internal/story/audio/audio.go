package audio

import "context"

// Source produces 16-bit little-endian mono PCM frames for streaming
// recognizers.
type Source interface {
	// SampleRate reports the rate of the produced frames in Hz.
	SampleRate() int

	// Stream captures audio and sends frames to out until ctx is cancelled
	// or capture fails. It blocks for the whole capture.
	Stream(ctx context.Context, out chan<- []byte) error
}
