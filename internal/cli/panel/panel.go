// Package panel renders the now-playing box shown during a listening
// session.
package panel

import (
	"fmt"
	"strings"

	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/story/narration"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleColor   = lipgloss.Color("#8BE9FD")
	playingColor = lipgloss.Color("#50FA7B")
	pausedColor  = lipgloss.Color("#F1FA8C")
	stoppedColor = lipgloss.Color("#FF5555")
	mutedColor   = lipgloss.Color("#6272A4")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(titleColor).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

const barWidth = 20

// Status is everything the panel shows.
type Status struct {
	Snapshot    narration.Snapshot
	Category    *story.Category
	VoiceActive bool
}

func stateStyle(s narration.State) lipgloss.Style {
	switch s {
	case narration.Playing:
		return lipgloss.NewStyle().Foreground(playingColor).Bold(true)
	case narration.Paused:
		return lipgloss.NewStyle().Foreground(pausedColor).Bold(true)
	case narration.Stopped:
		return lipgloss.NewStyle().Foreground(stoppedColor).Bold(true)
	default:
		return labelStyle
	}
}

var stateIcon = map[narration.State]string{
	narration.Idle:     "⏹",
	narration.Playing:  "▶",
	narration.Paused:   "⏸",
	narration.Stopped:  "⚠",
	narration.Finished: "✔",
}

// Progress draws a fixed-width bar for done out of total chunks.
func Progress(done, total int) string {
	if total <= 0 {
		return strings.Repeat("░", barWidth)
	}
	if done > total {
		done = total
	}
	filled := done * barWidth / total
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func Render(st Status) string {
	snap := st.Snapshot

	title := "Ningún cuento"
	if snap.Story != nil {
		title = snap.Story.Title
	}

	section := "Todos"
	if st.Category != nil {
		section = st.Category.Title()
	}

	voice := "inactiva"
	if st.VoiceActive {
		voice = "escuchando"
	}

	lines := []string{
		titleStyle.Render("📖 " + title),
		fmt.Sprintf("%s %s",
			stateStyle(snap.State).Render(stateIcon[snap.State]+" "+snap.State.String()),
			labelStyle.Render(fmt.Sprintf("%s %d/%d", Progress(snap.ChunkIndex, snap.ChunkCount), snap.ChunkIndex, snap.ChunkCount)),
		),
		labelStyle.Render(fmt.Sprintf("Sección: %s · Volumen: %d%% · Voz: %s",
			section, int(snap.Volume*100+0.5), voice)),
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}
