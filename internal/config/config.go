package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the coaching client.
type Config struct {
	Service ServiceConfig
	Camera  CameraConfig
	Frames  FrameConfig
	Overlay OverlayConfig
	Speech  SpeechConfig
	Runtime RuntimeConfig
}

type ServiceConfig struct {
	APIBaseURL  string
	Locale      string
	HTTPTimeout time.Duration
}

type CameraConfig struct {
	Command     string
	InputFormat string
	FrontDevice string
	BackDevice  string
	IdealWidth  int
	IdealHeight int
}

type FrameConfig struct {
	Interval time.Duration
	Quality  int
	MaxWidth int
}

type OverlayConfig struct {
	ShowGrid     bool
	GridInterval time.Duration
}

type SpeechConfig struct {
	EspeakCommand string
	PlayerCommand string
	CloudTTS      bool
	Voice         string
	Speed         float64
	Pitch         float64
	Format        string
	Cache         bool
	LexiconPath   string
}

type RuntimeConfig struct {
	EnvFile     string
	MetricsAddr string
	LogLevel    string
}

// Load resolves configuration from an optional dotenv file, environment
// variables and defaults. Variables already set win over the dotenv file.
func Load() (Config, error) {
	envFile := envOrDefault("COACHCAM_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	lexiconPath := strings.TrimSpace(os.Getenv("COACHCAM_LEXICON_FILE"))
	if lexiconPath == "" {
		lexiconPath = filepath.Join(home, ".config", "coachcam", "lexicon.txt")
	}

	frontDevice := envOrDefault("COACHCAM_CAMERA_FRONT_DEVICE", "/dev/video0")
	cfg := Config{
		Service: ServiceConfig{
			APIBaseURL:  envOrDefault("COACHCAM_API_BASE", "http://localhost:8000"),
			Locale:      envOrDefault("COACHCAM_LOCALE", "zh-TW"),
			HTTPTimeout: time.Duration(envOrDefaultInt("COACHCAM_HTTP_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Camera: CameraConfig{
			Command:     envOrDefault("COACHCAM_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat: envOrDefault("COACHCAM_CAMERA_INPUT_FORMAT", "v4l2"),
			FrontDevice: frontDevice,
			BackDevice:  envOrDefault("COACHCAM_CAMERA_BACK_DEVICE", frontDevice),
			IdealWidth:  envOrDefaultInt("COACHCAM_CAMERA_WIDTH", 1920),
			IdealHeight: envOrDefaultInt("COACHCAM_CAMERA_HEIGHT", 1080),
		},
		Frames: FrameConfig{
			Interval: time.Duration(envOrDefaultInt("COACHCAM_FRAME_INTERVAL_MS", 700)) * time.Millisecond,
			Quality:  envOrDefaultInt("COACHCAM_FRAME_QUALITY", 60),
			MaxWidth: envOrDefaultInt("COACHCAM_FRAME_MAX_WIDTH", 0),
		},
		Overlay: OverlayConfig{
			ShowGrid:     envOrDefaultBool("COACHCAM_SHOW_GRID", true),
			GridInterval: time.Duration(envOrDefaultInt("COACHCAM_GRID_INTERVAL_MS", 500)) * time.Millisecond,
		},
		Speech: SpeechConfig{
			EspeakCommand: envOrDefault("COACHCAM_ESPEAK_COMMAND", "espeak-ng"),
			PlayerCommand: envOrDefault("COACHCAM_PLAYER_COMMAND", "ffplay"),
			CloudTTS:      envOrDefaultBool("COACHCAM_CLOUD_TTS", false),
			Voice:         envOrDefault("COACHCAM_TTS_VOICE", "zh-TW-Wavenet-A"),
			Speed:         envOrDefaultFloat("COACHCAM_TTS_SPEED", 1.0),
			Pitch:         envOrDefaultFloat("COACHCAM_TTS_PITCH", 0.0),
			Format:        envOrDefault("COACHCAM_TTS_FORMAT", "mp3"),
			Cache:         envOrDefaultBool("COACHCAM_TTS_CACHE", true),
			LexiconPath:   lexiconPath,
		},
		Runtime: RuntimeConfig{
			EnvFile:     envFile,
			MetricsAddr: strings.TrimSpace(os.Getenv("COACHCAM_METRICS_ADDR")),
			LogLevel:    envOrDefault("COACHCAM_LOG_LEVEL", "info"),
		},
	}

	if cfg.Service.HTTPTimeout <= 0 {
		cfg.Service.HTTPTimeout = 10 * time.Second
	}
	if cfg.Camera.IdealWidth <= 0 || cfg.Camera.IdealHeight <= 0 {
		cfg.Camera.IdealWidth, cfg.Camera.IdealHeight = 1920, 1080
	}
	if cfg.Frames.Interval <= 0 {
		cfg.Frames.Interval = 700 * time.Millisecond
	}
	if cfg.Frames.Quality <= 0 || cfg.Frames.Quality > 100 {
		cfg.Frames.Quality = 60
	}
	if cfg.Frames.MaxWidth < 0 {
		cfg.Frames.MaxWidth = 0
	}
	if cfg.Overlay.GridInterval <= 0 {
		cfg.Overlay.GridInterval = 500 * time.Millisecond
	}
	if cfg.Speech.Speed <= 0 {
		cfg.Speech.Speed = 1.0
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
