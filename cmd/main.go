package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"cuentacuentos/internal/cli/panel"
	"cuentacuentos/internal/cli/scheme/colours"
	"cuentacuentos/internal/config"
	"cuentacuentos/internal/domain/library"
	"cuentacuentos/internal/domain/library/generator"
	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/story/audio"
	"cuentacuentos/internal/story/narration"
	"cuentacuentos/internal/story/nest"
	"cuentacuentos/internal/story/stt"
	"cuentacuentos/internal/story/tts"
	"cuentacuentos/internal/story/voice"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyLogLevel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var remote *generator.RemoteCache
	sources := []generator.StoryGenerator{generator.Builtin{}}
	if cfg.Catalog.Path != "" {
		sources = append(sources, generator.NewFileSource(cfg.Catalog.Path))
	}
	if cfg.Catalog.URL != "" {
		remote = generator.NewRemoteCache(cfg.Catalog.URL, cfg.Catalog.CacheDir, cfg.Catalog.MaxAge)
		sources = append(sources, remote)
	}

	engine, err := tts.NewEngine(tts.Config{
		Type:      cfg.TTS.Type,
		Voice:     cfg.TTS.Voice,
		Language:  cfg.Narration.Language,
		CachePath: cfg.TTS.CachePath,
		Rate:      cfg.Narration.Rate,
		Volume:    cfg.Narration.Volume,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create tts engine")
	}

	// The text recognizer hears lines typed into a listening session.
	transcriptReader, transcriptWriter := io.Pipe()
	recognizer, err := stt.NewRecognizer(stt.Config{
		Type: cfg.STT.Type,
		Audio: audio.Config{
			SampleRate:      cfg.Audio.SampleRate,
			FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		},
		Yandex: stt.YandexConfig{
			IamToken: cfg.STT.YandexIamToken,
			FolderID: cfg.STT.YandexFolderID,
			Endpoint: cfg.STT.YandexEndpoint,
		},
		Deepgram: stt.DeepgramConfig{
			APIKey:  cfg.STT.DeepgramAPIKey,
			BaseURL: cfg.STT.DeepgramBaseURL,
			Model:   cfg.STT.DeepgramModel,
		},
	}, transcriptReader)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create speech recognizer")
	}

	var transcripts io.Writer
	if _, ok := recognizer.(*stt.TextRecognizer); ok {
		transcripts = transcriptWriter
	}

	var app *nest.StoryNest
	opts := nest.Options{
		Narration: narration.Options{
			Language:  cfg.Narration.Language,
			Rate:      cfg.Narration.Rate,
			Volume:    cfg.Narration.Volume,
			ChunkSize: cfg.Narration.ChunkSize,
			OnChange: func(snap narration.Snapshot) {
				if app == nil {
					return
				}
				fmt.Println(panel.Render(panel.Status{
					Snapshot:    snap,
					Category:    app.SelectedCategory(),
					VoiceActive: app.VoiceActive(),
				}))
			},
			OnError: func(err error) {
				colours.Error.Printf("❌ %v\n", err)
			},
		},
		Voice: voice.ControlOptions{
			Language:   cfg.STT.Language,
			Continuous: cfg.STT.Continuous,
		},
		OnFeedback: func(text string) {
			colours.Feedback.Printf("🗣️  %s\n", text)
		},
		OnVoiceError: func(err error) {
			colours.Error.Printf("❌ %v\n", err)
			colours.Info.Println("💡 Presiona 'v' para reactivar la voz")
		},
	}

	app, err = nest.New(nest.LoadCatalog(ctx, sources...), engine, recognizer, opts)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create story nest")
	}
	defer app.Close()

	rootCmd := &cobra.Command{
		Use:   "cuentacuentos",
		Short: "🏠 Cuentos narrados en voz alta y controlados por voz",
		Long: `
┌─────────────────────────────────────┐
│  📚 ¡Bienvenido a Cuentacuentos! 🏠 │
│  Cuentos narrados en voz alta       │
│  y controlados con la voz 🎤✨      │
└─────────────────────────────────────┘

Cuentacuentos narra cuentos infantiles en español. Durante la narración
puedes decir "pausa", "siguiente" o "reproducir" seguido del título.
		`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowWelcome()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "📋 Ver los cuentos disponibles",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := categoryFlag(cmd)
			if err != nil {
				return err
			}
			app.PrintStories(category)
			return nil
		},
	}

	readCmd := &cobra.Command{
		Use:   "read <título>",
		Short: "📖 Narrar un cuento",
		Long:  "Narra el primer cuento cuyo título contenga el texto indicado",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := categoryFlag(cmd)
			if err != nil {
				return err
			}
			app.SelectCategory(category)

			if err := app.PlayTitle(strings.Join(args, " ")); err != nil {
				if errors.Is(err, library.ErrLookupMiss) {
					return fmt.Errorf("no story matches %q", strings.Join(args, " "))
				}
				return err
			}

			if voiceOn, _ := cmd.Flags().GetBool("voice"); voiceOn {
				startVoice(ctx, app)
			}
			return app.Listen(ctx, os.Stdin, transcripts)
		},
	}

	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "🎤 Controlar la narración con la voz",
		Long:  "Escucha comandos de voz y narra los cuentos que se pidan",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := categoryFlag(cmd)
			if err != nil {
				return err
			}
			app.SelectCategory(category)

			startVoice(ctx, app)
			return app.Listen(ctx, os.Stdin, transcripts)
		},
	}

	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🗣️ Ver las voces del motor de habla",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.PrintVoices()
		},
	}

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "⚙️ Ver la configuración",
		Run: func(cmd *cobra.Command, args []string) {
			showSettings()
		},
	}

	for _, c := range []*cobra.Command{listCmd, readCmd, listenCmd} {
		c.Flags().StringP("category", "c", "", "Sección: sleep, fun, educational, adventure")
	}
	readCmd.Flags().Bool("voice", false, "Escuchar comandos de voz durante la narración")

	rootCmd.AddCommand(listCmd, readCmd, listenCmd, voicesCmd, settingsCmd)
	app.AddCatalogCommands(rootCmd, remote)

	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		colours.Error.Printf("❌ Error: %v\n", err)
		app.Close()
		os.Exit(1)
	}

	if ctx.Err() != nil {
		fmt.Println("\n" + colours.Warning.Sprint("👋 ¡Hasta pronto! ¡Dulces sueños! 🌙"))
	}
}

func categoryFlag(cmd *cobra.Command) (*story.Category, error) {
	value, _ := cmd.Flags().GetString("category")
	if value == "" {
		return nil, nil
	}
	c, err := story.ParseCategory(value)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func startVoice(ctx context.Context, app *nest.StoryNest) {
	if err := app.StartVoice(ctx); err != nil {
		colours.Warning.Printf("⚠️  Voz no disponible: %v\n", err)
		return
	}
	colours.Success.Println("🎤 Escuchando comandos")
}

func showSettings() {
	fmt.Println()
	colours.Title.Println("⚙️ Configuración ⚙️")
	if file := viper.ConfigFileUsed(); file != "" {
		colours.Info.Printf("📄 %s\n", file)
	}
	fmt.Println()

	settings := viper.AllSettings()
	keys := flatten("", settings)
	sort.Strings(keys)
	for _, key := range keys {
		value := viper.Get(key)
		if isSecret(key) && fmt.Sprint(value) != "" {
			value = "********"
		}
		fmt.Printf("  • %s: %v\n", key, value)
	}
}

func flatten(prefix string, m map[string]any) []string {
	var keys []string
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			keys = append(keys, flatten(key, nested)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func isSecret(key string) bool {
	return strings.HasSuffix(key, "token") || strings.HasSuffix(key, "api_key")
}
