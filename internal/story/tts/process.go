package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"
)

// processEngine runs one external synthesizer process per utterance. It backs
// the eSpeak, say and SAPI engines, which differ only in the command they run.
type processEngine struct {
	name    string
	command func(ctx context.Context, u Utterance) (*exec.Cmd, error)

	mu      sync.Mutex
	current *process
}

type process struct {
	cmd       *exec.Cmd
	paused    bool
	cancelled bool
}

func (p *processEngine) Speak(ctx context.Context, u Utterance) (<-chan error, error) {
	cmd, err := p.command(ctx, u)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.stopLocked(); err != nil {
		logrus.WithError(err).WithField("engine", p.name).Warn("Failed to stop previous utterance")
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", p.name, err)
	}

	proc := &process{cmd: cmd}
	p.current = proc

	logrus.WithFields(logrus.Fields{
		"engine":    p.name,
		"utterance": u.ID,
		"pid":       cmd.Process.Pid,
	}).Debug("Speaking")

	done := make(chan error, 1)
	go p.wait(ctx, proc, done)
	return done, nil
}

func (p *processEngine) wait(ctx context.Context, proc *process, done chan<- error) {
	err := proc.cmd.Wait()

	p.mu.Lock()
	cancelled := proc.cancelled
	if p.current == proc {
		p.current = nil
	}
	p.mu.Unlock()

	switch {
	case cancelled:
		err = ErrCancelled
	case ctx.Err() != nil:
		err = ctx.Err()
	case err != nil:
		err = fmt.Errorf("%s exited: %w", p.name, err)
	}

	done <- err
	close(done)
}

func (p *processEngine) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.current.paused {
		return nil
	}
	if err := suspendProcess(p.current.cmd.Process); err != nil {
		return fmt.Errorf("failed to pause %s: %w", p.name, err)
	}
	p.current.paused = true
	return nil
}

func (p *processEngine) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || !p.current.paused {
		return nil
	}
	if err := resumeProcess(p.current.cmd.Process); err != nil {
		return fmt.Errorf("failed to resume %s: %w", p.name, err)
	}
	p.current.paused = false
	return nil
}

func (p *processEngine) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *processEngine) stopLocked() error {
	proc := p.current
	if proc == nil {
		return nil
	}
	proc.cancelled = true
	p.current = nil

	if err := proc.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop %s: %w", p.name, err)
	}
	return nil
}
