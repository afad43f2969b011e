// internal/story/tts/sapi.go
package tts

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// SAPIEngine implements Windows SAPI TTS through PowerShell's System.Speech.
type SAPIEngine struct {
	processEngine
	config Config
}

var _ Engine = (*SAPIEngine)(nil)

func newSAPIEngine(config Config) *SAPIEngine {
	s := &SAPIEngine{config: config}
	s.processEngine = processEngine{name: "sapi", command: s.command}
	return s
}

func (s *SAPIEngine) Available() bool {
	if runtime.GOOS != "windows" {
		return false
	}
	_, err := exec.LookPath("powershell")
	return err == nil
}

func (s *SAPIEngine) command(ctx context.Context, u Utterance) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", sapiScript(s.config.Voice, u))
	cmd.Stdin = strings.NewReader(u.Text)
	return cmd, nil
}

// sapiScript builds the PowerShell program for one utterance. The text is
// read from stdin so it never needs quoting.
func sapiScript(voice string, u Utterance) string {
	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	b.WriteString("$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	if voice != "" && voice != "default" {
		fmt.Fprintf(&b, "$synth.SelectVoice('%s'); ", strings.ReplaceAll(voice, "'", "''"))
	}
	fmt.Fprintf(&b, "$synth.Rate = %d; ", sapiRate(u.Rate))
	fmt.Fprintf(&b, "$synth.Volume = %d; ", int(u.Volume*100))
	b.WriteString("$synth.Speak([Console]::In.ReadToEnd())")
	return b.String()
}

// sapiRate converts a speed multiplier to the SAPI range (-10 to 10)
func sapiRate(rate float64) int {
	r := int(rate*10) - 10
	if r < -10 {
		return -10
	}
	if r > 10 {
		return 10
	}
	return r
}

func (s *SAPIEngine) Voices() ([]string, error) {
	output, err := exec.Command("powershell", "-NoProfile", "-Command",
		"Add-Type -AssemblyName System.Speech; "+
			"(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | "+
			"ForEach-Object { $_.VoiceInfo.Name }").Output()
	if err != nil {
		return nil, err
	}

	voices := make([]string, 0)
	for _, line := range strings.Split(string(output), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			voices = append(voices, name)
		}
	}
	return voices, nil
}
