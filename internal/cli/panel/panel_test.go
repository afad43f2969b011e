package panel

import (
	"strings"
	"testing"

	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/story/narration"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		done, total int
		filled      int
	}{
		{0, 0, 0},
		{0, 4, 0},
		{2, 4, barWidth / 2},
		{4, 4, barWidth},
		{9, 4, barWidth},
	}

	for _, tt := range tests {
		got := Progress(tt.done, tt.total)
		if n := strings.Count(got, "█"); n != tt.filled {
			t.Errorf("Progress(%d, %d) filled %d, want %d", tt.done, tt.total, n, tt.filled)
		}
		if n := strings.Count(got, "█") + strings.Count(got, "░"); n != barWidth {
			t.Errorf("Progress(%d, %d) width %d, want %d", tt.done, tt.total, n, barWidth)
		}
	}
}

func TestRender(t *testing.T) {
	cat := story.Sleep
	out := Render(Status{
		Snapshot: narration.Snapshot{
			State:      narration.Paused,
			Story:      &story.Story{Title: "El Conejo Dormilón"},
			ChunkIndex: 1,
			ChunkCount: 3,
			Volume:     0.4,
		},
		Category:    &cat,
		VoiceActive: true,
	})

	for _, want := range []string{"El Conejo Dormilón", "paused", "1/3", "Para Dormir", "40%", "escuchando"} {
		if !strings.Contains(out, want) {
			t.Errorf("panel missing %q:\n%s", want, out)
		}
	}

	idle := Render(Status{})
	for _, want := range []string{"Ningún cuento", "idle", "Todos", "inactiva"} {
		if !strings.Contains(idle, want) {
			t.Errorf("idle panel missing %q:\n%s", want, idle)
		}
	}
}
