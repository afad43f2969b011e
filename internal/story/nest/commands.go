package nest

import (
	"context"
	"fmt"
	"time"

	"cuentacuentos/internal/cli/scheme/colours"
	"cuentacuentos/internal/domain/library/generator"
	"cuentacuentos/internal/domain/story"
	"cuentacuentos/internal/story/tts"

	"github.com/spf13/cobra"
)

func (sn *StoryNest) ShowWelcome() {
	fmt.Println()
	colours.Title.Println("🌟 ¡Bienvenido a Cuentacuentos! 🌟")
	fmt.Println()
	colours.Info.Println("📚 Comandos disponibles:")
	fmt.Println("  • cuentacuentos list     - Ver los cuentos disponibles")
	fmt.Println("  • cuentacuentos read     - Narrar un cuento por su título")
	fmt.Println("  • cuentacuentos listen   - Controlar la narración con la voz")
	fmt.Println("  • cuentacuentos voices   - Ver las voces del motor de habla")
	fmt.Println("  • cuentacuentos catalog  - Gestionar el catálogo remoto")
	fmt.Println("  • cuentacuentos settings - Ver la configuración")
	fmt.Println()
	colours.Prompt.Println("✨ ¿Listos para un cuento? ✨")
}

// PrintStories lists the stories of category, or every section when
// category is nil.
func (sn *StoryNest) PrintStories(category *story.Category) {
	fmt.Println()
	colours.Title.Println("📚 Cuentos disponibles 📚")

	sections := story.Categories()
	if category != nil {
		sections = []story.Category{*category}
	}

	count := 0
	for _, c := range sections {
		stories := sn.catalog.ByCategory(c)
		if len(stories) == 0 {
			continue
		}

		fmt.Println()
		colours.Info.Printf("📖 %s:\n", c.Title())
		for _, st := range stories {
			count++
			fmt.Printf("  %d. ", count)
			colours.Title.Print(st.Title)
			if st.Author != "" {
				fmt.Print(" - ")
				colours.Author.Print(st.Author)
			}
			fmt.Printf("\n     ⏱️ %d palabras\n", st.WordCount())
		}
	}

	fmt.Println()
	if count == 0 {
		colours.Warning.Println("🔍 No hay cuentos en esta sección.")
	} else {
		colours.Success.Printf("✨ %d cuentos encontrados ✨\n", count)
	}
}

func (sn *StoryNest) PrintVoices() error {
	voices, err := sn.engine.Voices()
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	fmt.Println()
	colours.Title.Println("🎤 Voces disponibles")
	fmt.Println()
	if len(voices) == 0 {
		colours.Warning.Println("El motor de habla no informa de sus voces.")
		return nil
	}
	for _, v := range voices {
		fmt.Printf("  • %s\n", v)
	}
	return nil
}

// PrintSpeechCache reports the synthesis cache of engines that keep one.
func (sn *StoryNest) PrintSpeechCache() {
	cacheable, ok := sn.engine.(tts.CacheableEngine)
	if !ok {
		return
	}

	stats, err := cacheable.CacheStats()
	if err != nil {
		colours.Error.Printf("❌ Failed to read speech cache: %v\n", err)
		return
	}

	fmt.Println()
	colours.Title.Println("🔊 Speech Cache Status")
	colours.Info.Printf("📁 Location: %s\n", stats.Directory)
	colours.Info.Printf("🗂️  Files: %d (%.2f MB)\n", stats.Files, stats.SizeMB)
}

// AddCatalogCommands registers the commands that manage the remote catalog
// cache.
func (sn *StoryNest) AddCatalogCommands(rootCmd *cobra.Command, cache *generator.RemoteCache) {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "📚 Gestionar el catálogo remoto",
		Long:  "Consultar y refrescar la copia local del catálogo de cuentos remoto",
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "🔄 Descargar de nuevo el catálogo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cache == nil {
				return fmt.Errorf("no remote catalog configured (catalog.url)")
			}
			colours.Info.Println("🔄 Refreshing story catalog...")

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			lib, err := cache.Refresh(ctx)
			if err != nil {
				return fmt.Errorf("failed to refresh catalog: %w", err)
			}
			colours.Success.Printf("✅ Catalog refreshed! Loaded %d stories from %s\n", len(lib.Stories), lib.Name)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "📊 Estado de la caché",
		Run: func(cmd *cobra.Command, args []string) {
			colours.Title.Println("📊 Catalog Cache Status")

			if cache == nil {
				colours.Warning.Println("❌ No remote catalog configured")
				colours.Info.Println("💡 Set catalog.url in cuentacuentos.yaml")
			} else if info := cache.Info(); info.Exists {
				colours.Success.Println("✅ Cache exists")
				colours.Info.Printf("📁 Location: %s\n", info.Path)
				colours.Info.Printf("📏 Size: %d bytes\n", info.Size)
				colours.Info.Printf("🕐 Last modified: %s\n", info.LastModified.Format("2006-01-02 15:04:05"))
				if info.Fresh {
					colours.Success.Println("🔄 Cache is fresh")
				} else {
					colours.Warning.Println("⏰ Cache is stale")
				}
				colours.Info.Printf("⏳ Max age: %.1f hours\n", info.MaxAge.Hours())
			} else {
				colours.Warning.Println("❌ Cache does not exist")
				colours.Info.Println("💡 Run 'cuentacuentos catalog refresh' to create it")
			}

			sn.PrintSpeechCache()
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear-speech",
		Short: "🧹 Vaciar la caché de audio sintetizado",
		RunE: func(cmd *cobra.Command, args []string) error {
			cacheable, ok := sn.engine.(tts.CacheableEngine)
			if !ok {
				colours.Info.Println("ℹ️  The current speech engine keeps no cache")
				return nil
			}
			if err := cacheable.ClearCache(); err != nil {
				return err
			}
			colours.Success.Println("✅ Speech cache cleared")
			return nil
		},
	}

	catalogCmd.AddCommand(refreshCmd, statusCmd, clearCmd)
	rootCmd.AddCommand(catalogCmd)
}
