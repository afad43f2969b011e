package nest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"cuentacuentos/internal/cli/scheme/colours"

	"github.com/sirupsen/logrus"
)

// Listen runs the keyboard loop of a listening session until q, end of
// input or ctx cancellation. Lines that are not keys are forwarded to
// transcripts while voice control is active, so a text recognizer reading
// the other end hears them as spoken commands.
func (sn *StoryNest) Listen(ctx context.Context, in io.Reader, transcripts io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	sn.printKeys()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := sn.handleKey(ctx, strings.TrimSpace(line), transcripts); quit {
				return nil
			}
		}
	}
}

func (sn *StoryNest) printKeys() {
	fmt.Println()
	colours.Info.Println("⌨️  p: reproducir/pausar · s: detener · v: activar voz · h: ayuda · q: salir")
	colours.Info.Println("💬 Cualquier otro texto se interpreta como un comando de voz")
	fmt.Println()
}

func (sn *StoryNest) handleKey(ctx context.Context, input string, transcripts io.Writer) bool {
	switch strings.ToLower(input) {
	case "":
		return false

	case "q", "quit", "salir":
		return true

	case "p", "pause":
		if err := sn.TogglePlayPause(); err != nil {
			colours.Error.Printf("❌ %v\n", err)
		}

	case "s", "stop":
		sn.Stop()
		colours.Warning.Println("⏹️  Detenido")

	case "v", "voz":
		if err := sn.StartVoice(ctx); err != nil {
			colours.Error.Printf("❌ No se pudo activar la voz: %v\n", err)
			return false
		}
		colours.Success.Println("🎤 Escuchando comandos")

	case "h", "help", "ayuda":
		sn.Help()

	default:
		if transcripts == nil || !sn.VoiceActive() {
			colours.Info.Println("ℹ️  La voz está inactiva, presiona 'v' para activarla")
			return false
		}
		if _, err := io.WriteString(transcripts, input+"\n"); err != nil {
			logrus.WithError(err).Warn("Failed to forward transcript")
		}
	}

	return false
}
