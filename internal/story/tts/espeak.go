// Cross-platform eSpeak implementation
package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ESpeakEngine implements TTS using eSpeak/eSpeak-NG
type ESpeakEngine struct {
	processEngine
	config Config
}

var _ Engine = (*ESpeakEngine)(nil)

// newESpeakEngine creates a new eSpeak TTS engine. A missing executable is
// reported through Available rather than as an error.
func newESpeakEngine(config Config) *ESpeakEngine {
	e := &ESpeakEngine{config: config}
	e.processEngine = processEngine{name: "espeak", command: e.command}
	return e
}

func findESpeakExecutable() (string, error) {
	// Try different possible eSpeak executables
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeakEngine) Available() bool {
	_, err := findESpeakExecutable()
	return err == nil
}

func (e *ESpeakEngine) command(ctx context.Context, u Utterance) (*exec.Cmd, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, espeakPath, espeakArgs(e.config.Voice, u)...)
	cmd.Stdin = strings.NewReader(u.Text)
	return cmd, nil
}

// espeakArgs builds the command line for one utterance. The text itself is
// fed on stdin.
func espeakArgs(voice string, u Utterance) []string {
	args := []string{}

	if v := espeakVoice(voice, u.Language); v != "" {
		args = append(args, "-v", v)
	}

	// words per minute, default is 175
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	args = append(args, "-s", strconv.Itoa(int(175*rate)))

	// amplitude 0-200, default is 100
	args = append(args, "-a", strconv.Itoa(int(100*u.Volume)))

	return append(args, "--stdin")
}

// espeakVoice prefers an explicitly configured voice and otherwise derives
// the eSpeak language voice from a locale tag ("es-ES" -> "es").
func espeakVoice(voice, language string) string {
	if voice != "" && voice != "default" {
		return voice
	}
	if language == "" {
		return ""
	}
	lang, _, _ := strings.Cut(language, "-")
	return strings.ToLower(lang)
}

func (e *ESpeakEngine) Voices() ([]string, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(espeakPath, "--voices")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	return parseESpeakVoices(string(output)), nil
}

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Parse voice line: Pty Language Age/Gender VoiceName          File          Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}
