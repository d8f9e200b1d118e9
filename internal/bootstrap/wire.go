package bootstrap

import (
	"fmt"

	"coachcam/internal/camera"
	"coachcam/internal/config"
	"coachcam/internal/lexicon"
	"coachcam/internal/logging"
	"coachcam/internal/metrics"
	"coachcam/internal/ports"
	"coachcam/internal/providers/coach"
	"coachcam/internal/speech"
	"coachcam/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.Controller
	Config     config.Config
	Logging    logging.Runtime
	// Exporter is nil unless a metrics address is configured.
	Exporter *metrics.Exporter
}

// Close releases the log file.
func (s Services) Close() error {
	return s.Logging.Close()
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, version string) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logs, err := logging.New(cfg.Runtime.LogLevel)
	if err != nil {
		logs = logging.Discard()
	}
	logger := logs.Logger

	words, err := lexicon.Load(cfg.Speech.LexiconPath)
	if err != nil {
		_ = logs.Close()
		return Services{}, fmt.Errorf("failed to load lexicon: %w", err)
	}

	client := coach.NewClient(coach.Config{
		APIBaseURL: cfg.Service.APIBaseURL,
		Timeout:    cfg.Service.HTTPTimeout,
		Logger:     logger.With("component", "coach"),
	})

	controller := usecase.NewController(usecase.Dependencies{
		Camera: camera.NewFFMPEGCamera(cfg.Camera.Command, camera.Devices{
			InputFormat: cfg.Camera.InputFormat,
			Front:       cfg.Camera.FrontDevice,
			Back:        cfg.Camera.BackDevice,
		}),
		Sessions: client,
		Dialer:   coach.NewDialer(logger.With("component", "socket")),
		Speech: usecase.SpeechDeps{
			Local:    speech.NewEspeak(cfg.Speech.EspeakCommand),
			Remote:   client,
			Player:   speech.NewFFPlay(cfg.Speech.PlayerCommand),
			Rewriter: words,
		},
		Events: eventSink,
		Logger: logger,
	}, usecase.Config{
		Capture: usecase.CaptureConfig{
			IdealWidth:  cfg.Camera.IdealWidth,
			IdealHeight: cfg.Camera.IdealHeight,
		},
		Sampler: usecase.SamplerConfig{
			Interval: cfg.Frames.Interval,
			Quality:  cfg.Frames.Quality,
			MaxWidth: cfg.Frames.MaxWidth,
		},
		Negotiator: usecase.NegotiatorConfig{
			Locale: cfg.Service.Locale,
			Device: usecase.DesktopDevice(version),
		},
		Feedback: usecase.FeedbackConfig{
			Locale:   cfg.Service.Locale,
			CloudTTS: cfg.Speech.CloudTTS,
			Remote: usecase.RemoteVoice{
				Voice:  cfg.Speech.Voice,
				Speed:  cfg.Speech.Speed,
				Pitch:  cfg.Speech.Pitch,
				Format: cfg.Speech.Format,
				Cache:  cfg.Speech.Cache,
			},
		},
		ShowGrid:     cfg.Overlay.ShowGrid,
		GridInterval: cfg.Overlay.GridInterval,
	})

	services := Services{Controller: controller, Config: cfg, Logging: logs}
	if cfg.Runtime.MetricsAddr != "" {
		services.Exporter = metrics.NewExporter(cfg.Runtime.MetricsAddr)
	}

	logger.Info("coachcam services built",
		"api_base", cfg.Service.APIBaseURL,
		"locale", cfg.Service.Locale,
		"lexicon_terms", words.Len(),
		"cloud_tts", cfg.Speech.CloudTTS,
	)
	return services, nil
}
