package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coachcam/internal/domain"
	"coachcam/internal/metrics"
	"coachcam/internal/ports"
	"coachcam/internal/speech"
)

const (
	strategyLocal  = "local"
	strategyRemote = "remote"

	voiceListTimeout = 5 * time.Second
)

// FeedbackConfig holds the speech preferences.
type FeedbackConfig struct {
	Locale       string
	CloudTTS     bool
	AudioEnabled bool
	Remote       RemoteVoice
}

// RemoteVoice is the voice requested from the remote synthesizer.
type RemoteVoice struct {
	Voice  string
	Speed  float64
	Pitch  float64
	Format string
	Cache  bool
}

// FeedbackRenderer shows and speaks tips. Each tip preempts the speech of
// the one before it; the strategy is chosen when the tip arrives.
type FeedbackRenderer struct {
	local     ports.SpeechSynthesizer
	remote    ports.RemoteSpeech
	player    ports.AudioPlayer
	rewriter  ports.TextRewriter
	events    ports.EventSink
	sessionID func() string
	logger    *slog.Logger
	cfg       FeedbackConfig

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu           sync.Mutex
	message      string
	audioEnabled bool
	cloudTTS     bool
	cancel       context.CancelFunc

	voiceOnce sync.Once
	voice     ports.Voice
}

// SpeechDeps groups the speech backends.
type SpeechDeps struct {
	Local    ports.SpeechSynthesizer
	Remote   ports.RemoteSpeech
	Player   ports.AudioPlayer
	Rewriter ports.TextRewriter
}

func NewFeedbackRenderer(deps SpeechDeps, events ports.EventSink, sessionID func() string, logger *slog.Logger, cfg FeedbackConfig) *FeedbackRenderer {
	if cfg.Locale == "" {
		cfg.Locale = "zh-TW"
	}
	if sessionID == nil {
		sessionID = func() string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FeedbackRenderer{
		local:        deps.Local,
		remote:       deps.Remote,
		player:       deps.Player,
		rewriter:     deps.Rewriter,
		events:       events,
		sessionID:    sessionID,
		logger:       logger,
		cfg:          cfg,
		baseCtx:      ctx,
		baseCancel:   cancel,
		message:      domain.MessagePending,
		audioEnabled: cfg.AudioEnabled,
		cloudTTS:     cfg.CloudTTS,
	}
}

// HandleTip shows text and, once audio is enabled, speaks it.
func (f *FeedbackRenderer) HandleTip(text string) {
	f.mu.Lock()
	f.message = text
	enabled, cloud := f.audioEnabled, f.cloudTTS
	previous := f.cancel
	f.cancel = nil
	var ctx context.Context
	if enabled {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(f.baseCtx)
		f.cancel = cancel
	}
	f.mu.Unlock()

	f.events.TipReceived(text)
	if !enabled {
		return
	}

	f.preempt(previous)
	spoken := text
	if f.rewriter != nil {
		spoken = f.rewriter.Rewrite(text)
	}

	if cloud {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.speakRemote(ctx, spoken)
		}()
		return
	}
	f.speakLocal(ctx, spoken)
}

// EnableAudio satisfies the audio gate after a user gesture.
func (f *FeedbackRenderer) EnableAudio() {
	f.SetAudioEnabled(true)
}

// SetAudioEnabled toggles the gate. Disabling silences current speech.
func (f *FeedbackRenderer) SetAudioEnabled(enabled bool) {
	f.mu.Lock()
	f.audioEnabled = enabled
	var previous context.CancelFunc
	if !enabled {
		previous = f.cancel
		f.cancel = nil
	}
	f.mu.Unlock()

	if !enabled {
		f.preempt(previous)
	}
}

// SetCloudTTS selects the strategy for tips that arrive from now on.
func (f *FeedbackRenderer) SetCloudTTS(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cloudTTS = enabled
}

func (f *FeedbackRenderer) AudioEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioEnabled
}

func (f *FeedbackRenderer) CloudTTS() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cloudTTS
}

// Message is the subtitle text currently shown.
func (f *FeedbackRenderer) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Stop silences all speech and waits for remote playback to unwind. The
// renderer stays usable for later tips.
func (f *FeedbackRenderer) Stop() {
	f.mu.Lock()
	f.cancel = nil
	cancel := f.baseCancel
	f.baseCtx, f.baseCancel = context.WithCancel(context.Background())
	f.mu.Unlock()

	cancel()
	if f.local != nil {
		f.local.Cancel()
	}
	f.wg.Wait()
}

func (f *FeedbackRenderer) preempt(previous context.CancelFunc) {
	if previous != nil {
		previous()
	}
	if f.local != nil {
		f.local.Cancel()
	}
}

func (f *FeedbackRenderer) speakLocal(ctx context.Context, text string) {
	if f.local == nil {
		return
	}
	voice := f.localVoice()
	if err := f.local.Speak(ctx, text, voice); err != nil {
		metrics.RecordSpeech(strategyLocal, metrics.ResultError)
		f.playbackFailed(strategyLocal, err)
		return
	}
	metrics.RecordSpeech(strategyLocal, metrics.ResultSuccess)
}

func (f *FeedbackRenderer) speakRemote(ctx context.Context, text string) {
	sessionID := f.sessionID()
	if sessionID == "" || f.remote == nil || f.player == nil {
		f.logger.Debug("remote speech skipped", "has_session", sessionID != "")
		return
	}

	url, err := f.remote.SynthesizeSpeech(ctx, ports.SpeechRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     f.cfg.Remote.Voice,
		Speed:     f.cfg.Remote.Speed,
		Pitch:     f.cfg.Remote.Pitch,
		Format:    f.cfg.Remote.Format,
		Cache:     f.cfg.Remote.Cache,
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		metrics.RecordSpeech(strategyRemote, metrics.ResultError)
		f.playbackFailed(strategyRemote, err)
		return
	}

	if err := f.player.Play(ctx, url); err != nil {
		metrics.RecordSpeech(strategyRemote, metrics.ResultError)
		f.playbackFailed(strategyRemote, err)
		return
	}
	metrics.RecordSpeech(strategyRemote, metrics.ResultSuccess)
}

func (f *FeedbackRenderer) localVoice() ports.Voice {
	f.voiceOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), voiceListTimeout)
		defer cancel()
		voices, err := f.local.Voices(ctx)
		if err != nil {
			f.logger.Debug("voice listing failed; using default voice", "error", err)
			return
		}
		if voice, ok := speech.SelectVoice(voices, f.cfg.Locale); ok {
			f.voice = voice
			f.logger.Info("selected speech voice", "voice", voice.ID, "language", voice.Language)
		}
	})
	return f.voice
}

func (f *FeedbackRenderer) playbackFailed(strategy string, err error) {
	f.logger.Warn("speech failed", "strategy", strategy, "error", err)
	f.events.SessionError(domain.ErrorCodePlayback, err.Error())
}
