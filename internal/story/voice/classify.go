package voice

import (
	"fmt"
	"strings"

	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/textnorm"
)

type IntentKind int

const (
	Unknown IntentKind = iota
	PlayPause
	PlayNamed
	PauseOnly
	List
	SetCategory
	Next
	Previous
)

func (k IntentKind) String() string {
	switch k {
	case Unknown:
		return "unknown"
	case PlayPause:
		return "play-pause"
	case PlayNamed:
		return "play-named"
	case PauseOnly:
		return "pause"
	case List:
		return "list"
	case SetCategory:
		return "set-category"
	case Next:
		return "next"
	case Previous:
		return "previous"
	default:
		return fmt.Sprintf("IntentKind(%d)", int(k))
	}
}

// Intent is the meaning of one transcript. Title is set for PlayNamed and
// Category for SetCategory.
type Intent struct {
	Kind     IntentKind
	Title    string
	Category story.Category
}

func (i Intent) String() string {
	switch i.Kind {
	case PlayNamed:
		return fmt.Sprintf("%s(%q)", i.Kind, i.Title)
	case SetCategory:
		return fmt.Sprintf("%s(%s)", i.Kind, i.Category)
	default:
		return i.Kind.String()
	}
}

var playKeywords = []string{"reproducir", "play"}

type rule struct {
	keywords []string
	intent   Intent
}

// rules after the play keywords, highest priority first.
var rules = []rule{
	{[]string{"pausa"}, Intent{Kind: PauseOnly}},
	{[]string{"listar"}, Intent{Kind: List}},
	{[]string{"dormir"}, Intent{Kind: SetCategory, Category: story.Sleep}},
	{[]string{"diversión"}, Intent{Kind: SetCategory, Category: story.Fun}},
	{[]string{"educativo"}, Intent{Kind: SetCategory, Category: story.Educational}},
	{[]string{"aventuras"}, Intent{Kind: SetCategory, Category: story.Adventure}},
	{[]string{"siguiente", "next"}, Intent{Kind: Next}},
	{[]string{"anterior", "previous"}, Intent{Kind: Previous}},
}

func init() {
	for i := range rules {
		for j, kw := range rules[i].keywords {
			rules[i].keywords[j] = textnorm.Fold(kw)
		}
	}
}

// Classify maps a transcript to an intent by keyword containment. Case and
// accents are ignored and the first matching rule wins.
func Classify(transcript string) Intent {
	command := strings.TrimSpace(textnorm.Fold(transcript))

	if containsAny(command, playKeywords) {
		for _, kw := range playKeywords {
			if command == kw {
				return Intent{Kind: PlayPause}
			}
		}

		title := command
		for _, kw := range playKeywords {
			title = strings.Replace(title, kw, "", 1)
		}
		return Intent{Kind: PlayNamed, Title: strings.TrimSpace(title)}
	}

	for _, r := range rules {
		if containsAny(command, r.keywords) {
			return r.intent
		}
	}

	return Intent{Kind: Unknown}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
