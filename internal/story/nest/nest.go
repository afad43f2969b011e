package nest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuentacuentos/internal/domain/library"
	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/story/narration"
	"cuentacuentos/internal/story/stt"
	"cuentacuentos/internal/story/tts"
	"cuentacuentos/internal/story/voice"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	msgNotFound  = "No se encontró la historia solicitada."
	msgEmpty     = "No hay cuentos en esta sección"
	msgNext      = "Siguiente cuento"
	msgPrevious  = "Cuento anterior"
	msgAvailable = "Cuentos disponibles: "
)

const helpText = `Comandos de voz:
"reproducir" o "play": pausar, reanudar, o reiniciar si terminó.
"reproducir" seguido del nombre del cuento.
"pausa": para pausar sin reanudar.
"siguiente": pasar al siguiente cuento.
"anterior": cuento anterior.
"dormir", "diversión", "educativo", "aventuras": cambiar de sección.
"listar": enumerar cuentos de la sección actual.
Presiona v para reactivar la voz.`

type Options struct {
	Narration narration.Options
	Voice     voice.ControlOptions

	// OnFeedback receives every spoken feedback message before it is spoken.
	OnFeedback func(text string)

	// OnVoiceError receives the error that ended a recognition session.
	OnVoiceError func(error)
}

// StoryNest ties the catalog, the narrator and voice control together. It
// turns intents into narration commands and answers with spoken feedback
// through the same engine that narrates.
type StoryNest struct {
	catalog *library.Catalog
	engine  tts.Engine
	narr    *narration.Sequencer
	control *voice.Control
	opts    Options

	ctx    context.Context
	Cancel context.CancelFunc

	mu       sync.Mutex
	category *story.Category
	// feedbackGen fences deferred work queued behind a feedback message.
	feedbackGen uint64
}

func New(catalog *library.Catalog, engine tts.Engine, recognizer stt.Recognizer, opts Options) (*StoryNest, error) {
	if catalog == nil {
		catalog = library.NewCatalog()
	}

	narr, err := narration.New(engine, opts.Narration)
	if err != nil {
		return nil, fmt.Errorf("failed to create narrator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StoryNest{
		catalog: catalog,
		engine:  engine,
		narr:    narr,
		control: voice.NewControl(recognizer, opts.Voice),
		opts:    opts,
		ctx:     ctx,
		Cancel:  cancel,
	}, nil
}

func (sn *StoryNest) Catalog() *library.Catalog {
	return sn.catalog
}

func (sn *StoryNest) Narration() *narration.Sequencer {
	return sn.narr
}

// Close stops voice control and narration.
func (sn *StoryNest) Close() {
	sn.control.Stop()
	sn.narr.Cancel()
	sn.Cancel()
}

// SelectedCategory returns the current section, nil when every story is
// visible.
func (sn *StoryNest) SelectedCategory() *story.Category {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	if sn.category == nil {
		return nil
	}
	c := *sn.category
	return &c
}

// SelectCategory changes the visible section and stops the current story.
func (sn *StoryNest) SelectCategory(c *story.Category) {
	sn.setCategory(c)
	sn.narr.Cancel()
}

func (sn *StoryNest) setCategory(c *story.Category) {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	if c == nil {
		sn.category = nil
		return
	}
	cc := *c
	sn.category = &cc
}

// VisibleStories returns the stories of the selected section in catalog
// order.
func (sn *StoryNest) VisibleStories() []story.Story {
	return sn.catalog.Filter(sn.SelectedCategory())
}

func (sn *StoryNest) PlayStory(st story.Story) error {
	sn.fenceFeedback()
	return sn.narr.Play(st, 0)
}

// PlayTitle plays the first visible story whose title contains title. On a
// miss the listener is told so and nothing is narrated.
func (sn *StoryNest) PlayTitle(title string) error {
	found, err := sn.catalog.FindByTitle(title, sn.SelectedCategory())
	if err != nil {
		if errors.Is(err, library.ErrLookupMiss) {
			sn.feedback(msgNotFound)
		}
		return err
	}
	return sn.PlayStory(found)
}

func (sn *StoryNest) TogglePlayPause() error {
	sn.fenceFeedback()
	return sn.narr.TogglePlayPause()
}

func (sn *StoryNest) Pause() error {
	sn.fenceFeedback()
	return sn.narr.PauseOnly()
}

func (sn *StoryNest) Stop() {
	sn.fenceFeedback()
	sn.narr.Cancel()
}

// AnnounceStories speaks the titles of the visible section.
func (sn *StoryNest) AnnounceStories() {
	sn.feedback(sn.listMessage())
}

func (sn *StoryNest) listMessage() string {
	selected := sn.SelectedCategory()
	stories := sn.catalog.Filter(selected)
	if len(stories) == 0 {
		return msgEmpty
	}

	titles := make([]string, len(stories))
	for i, st := range stories {
		titles[i] = st.Title
	}

	msg := msgAvailable + strings.Join(titles, ", ") + "."
	if selected != nil {
		msg = fmt.Sprintf("Sección %s. %s", selected.Label(), msg)
	}
	return msg
}

// ChangeCategory selects c and announces the new section.
func (sn *StoryNest) ChangeCategory(c story.Category) {
	sn.setCategory(&c)
	sn.feedback("Cambiando a la sección " + c.Label())
}

// Skip moves offset stories away from the current one within the visible
// list. It does nothing when no story is loaded. The neighbour starts once
// the spoken announcement has finished.
func (sn *StoryNest) Skip(offset int) {
	current, ok := sn.narr.CurrentStory()
	if !ok {
		return
	}

	msg := msgNext
	if offset < 0 {
		msg = msgPrevious
	}

	neighbour, found := sn.catalog.Neighbour(current.Title, offset, sn.SelectedCategory())
	done, gen := sn.feedback(msg)
	if !found {
		logrus.WithFields(logrus.Fields{
			"current": current.Title,
			"offset":  offset,
		}).Debug("No neighbouring story")
		return
	}

	go func() {
		if done != nil {
			if err := <-done; err != nil {
				if errors.Is(err, tts.ErrCancelled) || sn.ctx.Err() != nil {
					return
				}
				logrus.WithError(err).Warn("Feedback failed, continuing")
			}
		}
		if !sn.feedbackCurrent(gen) {
			return
		}
		if err := sn.narr.Play(neighbour, 0); err != nil {
			logrus.WithError(err).WithField("story", neighbour.Title).Error("Failed to play story")
		}
	}()
}

// Help stops listening and speaks the list of commands.
func (sn *StoryNest) Help() {
	sn.control.Stop()
	sn.feedback(helpText)
}

// HandleIntent performs the action a voice command asks for.
func (sn *StoryNest) HandleIntent(intent voice.Intent) error {
	logrus.WithField("intent", intent.String()).Info("Voice command")

	switch intent.Kind {
	case voice.PlayPause:
		return sn.TogglePlayPause()
	case voice.PlayNamed:
		return sn.PlayTitle(intent.Title)
	case voice.PauseOnly:
		return sn.Pause()
	case voice.List:
		sn.AnnounceStories()
	case voice.SetCategory:
		sn.ChangeCategory(intent.Category)
	case voice.Next:
		sn.Skip(1)
	case voice.Previous:
		sn.Skip(-1)
	}
	return nil
}

// StartVoice (re)starts listening for commands.
func (sn *StoryNest) StartVoice(ctx context.Context) error {
	return sn.control.Start(ctx, func(intent voice.Intent) {
		if err := sn.HandleIntent(intent); err != nil {
			if errors.Is(err, library.ErrLookupMiss) {
				logrus.WithError(err).Info("Requested story not found")
				return
			}
			logrus.WithError(err).Error("Voice command failed")
		}
	}, sn.opts.OnVoiceError)
}

func (sn *StoryNest) StopVoice() {
	sn.control.Stop()
}

func (sn *StoryNest) VoiceActive() bool {
	return sn.control.Active()
}

// feedback interrupts narration and speaks text. It returns the utterance's
// completion channel, nil when nothing could be spoken, and the feedback
// generation it belongs to.
func (sn *StoryNest) feedback(text string) (<-chan error, uint64) {
	gen := sn.fenceFeedback()
	sn.narr.Cancel()

	if sn.opts.OnFeedback != nil {
		sn.opts.OnFeedback(text)
	}

	if !sn.engine.Available() {
		logrus.WithField("text", text).Warn("Speech engine unavailable, feedback not spoken")
		return nil, gen
	}

	done, err := sn.engine.Speak(sn.ctx, tts.Utterance{
		ID:       uuid.NewString(),
		Text:     text,
		Language: sn.opts.Narration.Language,
		Rate:     sn.opts.Narration.Rate,
		Volume:   sn.narr.Volume(),
	})
	if err != nil {
		logrus.WithError(err).Warn("Failed to speak feedback")
		return nil, gen
	}
	return done, gen
}

// fenceFeedback abandons work queued behind earlier feedback.
func (sn *StoryNest) fenceFeedback() uint64 {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	sn.feedbackGen++
	return sn.feedbackGen
}

func (sn *StoryNest) feedbackCurrent(gen uint64) bool {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	return sn.feedbackGen == gen
}
