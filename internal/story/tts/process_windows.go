//go:build windows

package tts

import "os"

// Windows has no SIGSTOP/SIGCONT equivalent for a child process, so
// synthesizer processes cannot be paused mid-utterance.
func suspendProcess(_ *os.Process) error {
	return ErrUnsupported
}

func resumeProcess(_ *os.Process) error {
	return ErrUnsupported
}
