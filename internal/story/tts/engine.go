package tts

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

type EngineType string

const (
	EngineTypeMock   EngineType = "mock"
	EngineTypeESpeak EngineType = "espeak"
	EngineTypeSAPI   EngineType = "sapi" // Windows only
	EngineTypeSay    EngineType = "say"  // macOS only
	EngineTypeGoogle EngineType = "google"
	EngineTypeAuto   EngineType = "auto" // Automatically choose best for platform
)

func (e EngineType) String() string {
	return string(e)
}

// mockWordDuration approximates 150 words per minute.
const mockWordDuration = 400 * time.Millisecond

// NewEngine creates a new TTS engine based on the provided config
func NewEngine(config Config) (Engine, error) {
	engineType := EngineType(config.Type)

	if engineType == EngineTypeAuto {
		engine, err := NewEngine(Config{
			Type:      getBestEngineForPlatform().String(),
			Voice:     config.Voice,
			Language:  config.Language,
			CachePath: config.CachePath,
			Rate:      config.Rate,
			Volume:    config.Volume,
		})
		if err == nil && engine.Available() {
			return engine, nil
		}
		logrus.WithError(err).Warn("No speech engine available for this platform, falling back to mock")
		return NewMockTTSEngine(os.Stdout, mockWordDuration), nil
	}

	switch engineType {
	case EngineTypeMock:
		return NewMockTTSEngine(os.Stdout, mockWordDuration), nil

	case EngineTypeGoogle, "googleclassic":
		return newGoogleEngine(config)

	case EngineTypeESpeak:
		return newESpeakEngine(config), nil

	case EngineTypeSAPI:
		return newSAPIEngine(config), nil

	case EngineTypeSay, "avfoundation":
		return newSayEngine(config), nil

	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
}

// getBestEngineForPlatform returns the recommended engine for the current platform
func getBestEngineForPlatform() EngineType {
	if hasGoogleCredentials() {
		return EngineTypeGoogle
	}

	switch runtime.GOOS {
	case "windows":
		return EngineTypeSAPI
	case "darwin":
		return EngineTypeSay
	default:
		return EngineTypeESpeak
	}
}

// GetAvailableEngines returns engines available on the current platform
func GetAvailableEngines() []EngineType {
	engines := []EngineType{EngineTypeMock}

	if _, err := findESpeakExecutable(); err == nil {
		engines = append(engines, EngineTypeESpeak)
	}

	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogle)
	}

	switch runtime.GOOS {
	case "windows":
		engines = append(engines, EngineTypeSAPI)
	case "darwin":
		engines = append(engines, EngineTypeSay)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
