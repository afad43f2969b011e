//go:build unix

package tts

import (
	"os"
	"syscall"
)

// suspendProcess stops a synthesizer process in place so it can be continued
func suspendProcess(p *os.Process) error {
	return p.Signal(syscall.SIGSTOP)
}

func resumeProcess(p *os.Process) error {
	return p.Signal(syscall.SIGCONT)
}
