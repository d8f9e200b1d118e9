package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"coachcam/internal/bootstrap"
	"coachcam/internal/domain"
	"coachcam/internal/usecase"
)

const (
	eventCamera   = "coachcam:camera"
	eventSession  = "coachcam:session"
	eventChannel  = "coachcam:channel"
	eventTip      = "coachcam:tip"
	eventPreview  = "coachcam:preview"
	eventGrid     = "coachcam:grid"
	eventSubtitle = "coachcam:subtitle"
	eventPhoto    = "coachcam:photo"
	eventError    = "coachcam:error"

	shutdownTimeout = 3 * time.Second
)

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	services   bootstrap.Services
	controller *usecase.Controller
	bootErr    error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, version)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services
	a.controller = services.Controller

	if exporter := services.Exporter; exporter != nil {
		if err := exporter.Start(); err != nil {
			services.Logging.Logger.Warn("metrics exporter failed to start", "error", err)
		}
	}

	// Camera failures are already reported through SessionError.
	_ = a.controller.Mount(ctx)
}

func (a *App) shutdown(ctx context.Context) {
	if a.controller != nil {
		a.controller.Unmount()
	}
	if exporter := a.services.Exporter; exporter != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		_ = exporter.Shutdown(shutdownCtx)
		cancel()
	}
	_ = a.services.Close()
}

// SwitchCamera toggles between the front and back camera.
func (a *App) SwitchCamera() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.SwitchFacing(); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// TakePhoto returns the current frame as a PNG data URL.
func (a *App) TakePhoto() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	dataURL, err := a.controller.TakePhoto()
	if errors.Is(err, usecase.ErrNoFrame) {
		a.SessionError(domain.ErrorCodeSnapshot, err.Error())
	}
	return dataURL, err
}

func (a *App) SetGrid(enabled bool) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.SetGrid(enabled)
	return a.controller.Status(), nil
}

func (a *App) SetCloudTTS(enabled bool) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.SetCloudTTS(enabled)
	return a.controller.Status(), nil
}

// EnableAudio is called from the first user gesture.
func (a *App) EnableAudio() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.EnableAudio()
	return a.controller.Status(), nil
}

func (a *App) SetAudioEnabled(enabled bool) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.SetAudioEnabled(enabled)
	return a.controller.Status(), nil
}

// Resize reports the rendered video box.
func (a *App) Resize(width, height float64) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.Resize(width, height)
	return nil
}

func (a *App) PointerDown(pointerID int, x, y float64) bool {
	if a.requireReady() != nil {
		return false
	}
	return a.controller.PointerDown(pointerID, x, y)
}

func (a *App) PointerMove(pointerID int, x, y float64) {
	if a.requireReady() != nil {
		return
	}
	a.controller.PointerMove(pointerID, x, y)
}

func (a *App) PointerUp(pointerID int) {
	if a.requireReady() != nil {
		return
	}
	a.controller.PointerUp(pointerID)
}

func (a *App) SnapSubtitle(preset string) (domain.SubtitlePosition, error) {
	if err := a.requireReady(); err != nil {
		return domain.SubtitlePosition{}, err
	}
	return a.controller.SnapSubtitle(preset)
}

// GetStatus returns the current lifecycle status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		status := domain.Status{
			Camera:       domain.CameraStateIdle,
			Channel:      domain.ChannelStateDisconnected,
			SessionLabel: domain.SessionLabelPending,
			Message:      domain.MessagePending,
		}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"version":     version,
		"apiBase":     cfg.Service.APIBaseURL,
		"locale":      cfg.Service.Locale,
		"frontCamera": cfg.Camera.FrontDevice,
		"backCamera":  cfg.Camera.BackDevice,
		"ttsVoice":    cfg.Speech.Voice,
		"lexiconFile": cfg.Speech.LexiconPath,
		"logFile":     a.services.Logging.Path,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) send(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func (a *App) CameraStateChanged(state domain.CameraState, facing domain.Facing) {
	a.send(eventCamera, map[string]string{
		"state":  string(state),
		"facing": string(facing),
	})
}

func (a *App) SessionChanged(label string) {
	a.send(eventSession, map[string]string{"label": label})
}

func (a *App) ChannelStateChanged(state domain.ChannelState) {
	a.send(eventChannel, map[string]string{
		"state":   string(state),
		"message": channelStateMessage(state),
	})
}

func (a *App) TipReceived(text string) {
	a.send(eventTip, map[string]string{"text": text})
}

func (a *App) FramePreview(dataURL string) {
	a.send(eventPreview, map[string]string{"dataUrl": dataURL})
}

func (a *App) GridChanged(lines []domain.GridLine) {
	if lines == nil {
		lines = []domain.GridLine{}
	}
	a.send(eventGrid, map[string]interface{}{"lines": lines})
}

func (a *App) SubtitleMoved(pos domain.SubtitlePosition) {
	a.send(eventSubtitle, pos)
}

func (a *App) PhotoTaken(dataURL string) {
	a.send(eventPhoto, map[string]string{"dataUrl": dataURL})
}

// SessionError emits contained backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func channelStateMessage(state domain.ChannelState) string {
	switch state {
	case domain.ChannelStateNegotiating:
		return "Starting coaching session"
	case domain.ChannelStateConnecting:
		return "Connecting to coach"
	case domain.ChannelStateOpen:
		return "Coach connected"
	case domain.ChannelStateClosed:
		return "Coach disconnected"
	case domain.ChannelStateDisconnected:
		return "Offline"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCamera:
		return "Camera unavailable"
	case domain.ErrorCodeNegotiation:
		return "Could not start coaching session"
	case domain.ErrorCodeChannel:
		return "Coach connection issue"
	case domain.ErrorCodePlayback:
		return "Speech playback failed"
	case domain.ErrorCodeSnapshot:
		return "Photo capture failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
