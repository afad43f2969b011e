package tts

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// SayEngine speaks through the macOS built-in 'say' command, which drives the
// AVFoundation synthesizer.
type SayEngine struct {
	processEngine
	config Config
}

var _ Engine = (*SayEngine)(nil)

func newSayEngine(config Config) *SayEngine {
	s := &SayEngine{config: config}
	s.processEngine = processEngine{name: "say", command: s.command}
	return s
}

func (s *SayEngine) Available() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath("say")
	return err == nil
}

func (s *SayEngine) command(ctx context.Context, u Utterance) (*exec.Cmd, error) {
	args := []string{}

	// Set voice if specified
	if s.config.Voice != "" && s.config.Voice != "default" {
		args = append(args, "-v", s.config.Voice)
	}

	// Set rate (words per minute, default is ~175)
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	args = append(args, "-r", fmt.Sprintf("%.0f", 175*rate))

	// read from stdin
	args = append(args, "-f", "-")

	cmd := exec.CommandContext(ctx, "say", args...)
	// say has no volume flag; the embedded volm command covers it
	cmd.Stdin = strings.NewReader(fmt.Sprintf("[[volm %.2f]] %s", u.Volume, u.Text))
	return cmd, nil
}

func (s *SayEngine) Voices() ([]string, error) {
	output, err := exec.Command("say", "-v", "?").Output()
	if err != nil {
		return nil, err
	}
	return parseSayVoices(string(output)), nil
}

// parseSayVoices reads `say -v ?` output, one voice per line:
//
//	Mónica              es_ES    # ¡Hola! Me llamo Mónica.
//
// Voice names may contain spaces, so the locale column is located from the
// right.
func parseSayVoices(output string) []string {
	voices := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		head, _, _ := strings.Cut(line, "#")
		fields := strings.Fields(head)
		if len(fields) < 2 {
			continue
		}
		voices = append(voices, strings.Join(fields[:len(fields)-1], " "))
	}
	return voices
}
