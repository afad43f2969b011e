package narration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig reports an invalid chunk size, volume or start index.
	ErrConfig = errors.New("invalid narration config")

	// ErrEngineUnavailable is returned when the speech engine reports that it
	// cannot speak on this system.
	ErrEngineUnavailable = errors.New("speech engine unavailable")

	// ErrPlayback wraps a failure reported by the engine mid-utterance.
	ErrPlayback = errors.New("playback failed")
)

// Chunk splits text into groups of at most maxWords words. Whitespace runs
// separate words and are not preserved. Text without words yields no chunks.
func Chunk(text string, maxWords int) ([]string, error) {
	if maxWords < 1 {
		return nil, fmt.Errorf("chunk size %d: %w", maxWords, ErrConfig)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks, nil
}
