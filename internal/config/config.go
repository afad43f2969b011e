package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Narration NarrationConfig
	TTS       TTSConfig
	STT       STTConfig
	Audio     AudioConfig
	Catalog   CatalogConfig
	LogLevel  string
}

type NarrationConfig struct {
	Language  string
	Rate      float64
	Volume    float64
	ChunkSize int
}

type TTSConfig struct {
	Type      string
	Voice     string
	CachePath string
}

type STTConfig struct {
	Type       string
	Language   string
	Continuous bool

	YandexIamToken string
	YandexFolderID string
	YandexEndpoint string

	DeepgramAPIKey  string
	DeepgramBaseURL string
	DeepgramModel   string
}

type AudioConfig struct {
	SampleRate      int
	FramesPerBuffer int
}

type CatalogConfig struct {
	Path     string
	URL      string
	CacheDir string
	MaxAge   time.Duration
}

func SetDefaults() {
	viper.SetDefault("narration.language", "es-ES")
	viper.SetDefault("narration.rate", 0.9)
	viper.SetDefault("narration.volume", 1.0)
	viper.SetDefault("narration.chunk_size", 40)

	viper.SetDefault("tts.type", "auto") // Auto-select best engine
	viper.SetDefault("tts.voice", "default")
	viper.SetDefault("tts.cache_path", filepath.Join(cacheDirectory(), "tts"))

	viper.SetDefault("stt.type", "text")
	viper.SetDefault("stt.language", "es-ES")
	viper.SetDefault("stt.continuous", true)
	viper.SetDefault("stt.yandex.iam_token", "")
	viper.SetDefault("stt.yandex.folder_id", "")
	viper.SetDefault("stt.yandex.endpoint", "stt.api.cloud.yandex.net:443")
	viper.SetDefault("stt.deepgram.api_key", "")
	viper.SetDefault("stt.deepgram.base_url", "wss://api.deepgram.com")
	viper.SetDefault("stt.deepgram.model", "nova-2")

	viper.SetDefault("audio.sample_rate", 16000)
	viper.SetDefault("audio.frames_per_buffer", 1024)

	viper.SetDefault("catalog.path", "")
	viper.SetDefault("catalog.url", "")
	viper.SetDefault("catalog.cache_dir", cacheDirectory())
	viper.SetDefault("catalog.max_age", 24*time.Hour)

	viper.SetDefault("log.level", "info")
}

// Load reads .env, the config file and CUENTACUENTOS_* environment variables
// on top of the defaults. A missing config file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	SetDefaults()

	viper.SetConfigName("cuentacuentos")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.cuentacuentos")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("cuentacuentos")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		logrus.WithField("file", viper.ConfigFileUsed()).Debug("Loaded config file")
	}

	return FromViper(), nil
}

// FromViper builds a Config from the current viper state.
func FromViper() *Config {
	return &Config{
		Narration: NarrationConfig{
			Language:  viper.GetString("narration.language"),
			Rate:      viper.GetFloat64("narration.rate"),
			Volume:    viper.GetFloat64("narration.volume"),
			ChunkSize: viper.GetInt("narration.chunk_size"),
		},
		TTS: TTSConfig{
			Type:      viper.GetString("tts.type"),
			Voice:     viper.GetString("tts.voice"),
			CachePath: viper.GetString("tts.cache_path"),
		},
		STT: STTConfig{
			Type:            viper.GetString("stt.type"),
			Language:        viper.GetString("stt.language"),
			Continuous:      viper.GetBool("stt.continuous"),
			YandexIamToken:  firstNonEmpty(viper.GetString("stt.yandex.iam_token"), os.Getenv("IAM_TOKEN")),
			YandexFolderID:  firstNonEmpty(viper.GetString("stt.yandex.folder_id"), os.Getenv("FOLDER_ID")),
			YandexEndpoint:  viper.GetString("stt.yandex.endpoint"),
			DeepgramAPIKey:  firstNonEmpty(viper.GetString("stt.deepgram.api_key"), os.Getenv("DEEPGRAM_API_KEY")),
			DeepgramBaseURL: viper.GetString("stt.deepgram.base_url"),
			DeepgramModel:   viper.GetString("stt.deepgram.model"),
		},
		Audio: AudioConfig{
			SampleRate:      viper.GetInt("audio.sample_rate"),
			FramesPerBuffer: viper.GetInt("audio.frames_per_buffer"),
		},
		Catalog: CatalogConfig{
			Path:     viper.GetString("catalog.path"),
			URL:      viper.GetString("catalog.url"),
			CacheDir: viper.GetString("catalog.cache_dir"),
			MaxAge:   viper.GetDuration("catalog.max_age"),
		},
		LogLevel: viper.GetString("log.level"),
	}
}

// ApplyLogLevel sets the logrus level, keeping the current one when level
// does not parse.
func (c *Config) ApplyLogLevel() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.WithError(err).Warnf("Unknown log level %q", c.LogLevel)
		return
	}
	logrus.SetLevel(level)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cacheDirectory returns the appropriate cache directory
func cacheDirectory() string {
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "cuentacuentos")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".cuentacuentos", "cache")
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, "cache")
	}

	return "cache"
}
