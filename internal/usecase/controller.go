package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"coachcam/internal/domain"
	"coachcam/internal/media"
	"coachcam/internal/overlay"
	"coachcam/internal/ports"
)

var (
	ErrNotMounted = errors.New("coaching session is not mounted")
	ErrNoFrame    = errors.New("no camera frame available")
)

// Config controls the coaching session lifecycle.
type Config struct {
	Capture      CaptureConfig
	Sampler      SamplerConfig
	Negotiator   NegotiatorConfig
	Feedback     FeedbackConfig
	ShowGrid     bool
	GridInterval time.Duration
}

// Dependencies are the adapters the controller drives.
type Dependencies struct {
	Camera   ports.Camera
	Sessions ports.SessionService
	Dialer   ports.ChannelDialer
	Speech   SpeechDeps
	Events   ports.EventSink
	Logger   *slog.Logger
}

// Controller ties camera, negotiation, channel, sampling, feedback and
// overlay together for one mounted view.
type Controller struct {
	capture    *CaptureController
	negotiator *Negotiator
	channel    *Channel
	sampler    *FrameSampler
	feedback   *FeedbackRenderer
	grid       *overlay.Grid
	subtitle   *overlay.Subtitle
	events     ports.EventSink
	logger     *slog.Logger

	mu      sync.Mutex
	mounted bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewController(deps Dependencies, cfg Config) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{events: deps.Events, logger: logger}
	c.feedback = NewFeedbackRenderer(deps.Speech, deps.Events, func() string {
		return c.negotiator.SessionID()
	}, logger.With("component", "feedback"), cfg.Feedback)
	c.channel = NewChannel(deps.Dialer, deps.Events, logger.With("component", "channel"), c.feedback.HandleTip)
	c.negotiator = NewNegotiator(deps.Sessions, c.channel, deps.Events, logger.With("component", "negotiator"), cfg.Negotiator)
	c.capture = NewCaptureController(deps.Camera, deps.Events, logger.With("component", "capture"), cfg.Capture)
	c.sampler = NewFrameSampler(c.channel, deps.Events, logger.With("component", "sampler"), cfg.Sampler)
	c.grid = overlay.NewGrid(cfg.ShowGrid, cfg.GridInterval, deps.Events.GridChanged)
	c.subtitle = overlay.NewSubtitle(0, 0)
	return c
}

// Mount starts the front camera and, once it streams, sampling and
// negotiation. Mounting twice is a no-op.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Unlock()

	c.logger.Info("coaching session mounted")
	return c.start(domain.FacingFront)
}

// SwitchFacing toggles between the front and back camera. Sampling and
// the grid pause while the new stream is acquired and resume on the
// previous facing if the switch fails.
func (c *Controller) SwitchFacing() error {
	if !c.isMounted() {
		return ErrNotMounted
	}
	previous := c.capture.Facing()

	c.sampler.Stop()
	c.grid.SetStreaming(c.lifecycleCtx(), false)

	if err := c.start(previous.Toggle()); err != nil {
		c.resume(previous)
		return err
	}
	return nil
}

// Unmount stops every timer, the camera and the channel.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	cancel := c.cancel
	c.mu.Unlock()

	c.sampler.Stop()
	c.grid.SetStreaming(context.Background(), false)
	c.capture.Release()
	cancel()
	c.channel.Close()
	c.feedback.Stop()
	c.wg.Wait()
	c.logger.Info("coaching session unmounted")
}

func (c *Controller) start(facing domain.Facing) error {
	session, err := c.capture.Request(c.lifecycleCtx(), facing)
	switch {
	case err == nil:
	case errors.Is(err, ErrCaptureBusy), errors.Is(err, ErrCaptureReleased):
		return nil
	default:
		c.logger.Error("camera start failed", "facing", facing, "error", err)
		c.events.SessionError(domain.ErrorCodeCamera, err.Error())
		return fmt.Errorf("camera start failed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return nil
	}

	c.sampler.Start(c.ctx, session)
	c.grid.SetStreaming(c.ctx, true)

	c.wg.Add(1)
	go func(ctx context.Context, facing domain.Facing) {
		defer c.wg.Done()
		c.negotiate(ctx, facing)
	}(c.ctx, session.Facing)
	return nil
}

// resume restarts sampling on the stream left after a failed switch. A
// stream released to free a shared device is reacquired first.
func (c *Controller) resume(facing domain.Facing) {
	session, ok := c.capture.Current()
	if !ok {
		var err error
		session, err = c.capture.Request(c.lifecycleCtx(), facing)
		if err != nil {
			c.logger.Warn("camera restore failed", "facing", facing, "error", err)
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return
	}
	c.sampler.Start(c.ctx, session)
	c.grid.SetStreaming(c.ctx, true)
}

func (c *Controller) negotiate(ctx context.Context, facing domain.Facing) {
	err := c.negotiator.Open(ctx, facing)
	switch {
	case err == nil:
	case errors.Is(err, ErrNegotiationBusy):
		c.logger.Debug("negotiation already in flight", "facing", facing)
	case ctx.Err() != nil:
	case errors.Is(err, ErrChannelUnavailable):
		c.logger.Warn("channel open failed", "facing", facing, "error", err)
		c.events.SessionError(domain.ErrorCodeChannel, err.Error())
	default:
		c.logger.Warn("negotiation failed", "facing", facing, "error", err)
		c.events.SessionError(domain.ErrorCodeNegotiation, err.Error())
	}
}

// TakePhoto encodes the current frame at full resolution as a PNG data URL.
func (c *Controller) TakePhoto() (string, error) {
	session, ok := c.capture.Current()
	if !ok {
		return "", ErrNoFrame
	}
	img, ok := session.Stream.Frame()
	if !ok {
		return "", ErrNoFrame
	}

	bounds := img.Bounds()
	canvas, err := media.Render(img, bounds.Dx(), bounds.Dy())
	if err != nil {
		return "", ErrNoFrame
	}
	dataURL, err := media.PNGDataURL(canvas)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeSnapshot, err.Error())
		return "", err
	}
	c.events.PhotoTaken(dataURL)
	return dataURL, nil
}

func (c *Controller) SetGrid(enabled bool) {
	c.grid.SetEnabled(c.lifecycleCtx(), enabled)
}

// SetCloudTTS picks the speech strategy for later tips. It does not
// renegotiate the session.
func (c *Controller) SetCloudTTS(enabled bool) {
	c.feedback.SetCloudTTS(enabled)
}

func (c *Controller) EnableAudio() {
	c.feedback.EnableAudio()
}

func (c *Controller) SetAudioEnabled(enabled bool) {
	c.feedback.SetAudioEnabled(enabled)
}

// Resize records the rendered video box, which is also the subtitle
// container.
func (c *Controller) Resize(width, height float64) {
	c.grid.Resize(width, height)
	c.events.SubtitleMoved(c.subtitle.SetContainer(width, height))
}

func (c *Controller) PointerDown(pointerID int, x, y float64) bool {
	return c.subtitle.PointerDown(pointerID, x, y)
}

func (c *Controller) PointerMove(pointerID int, x, y float64) {
	if pos, moved := c.subtitle.PointerMove(pointerID, x, y); moved {
		c.events.SubtitleMoved(pos)
	}
}

func (c *Controller) PointerUp(pointerID int) {
	c.subtitle.PointerUp(pointerID)
}

func (c *Controller) SnapSubtitle(preset string) (domain.SubtitlePosition, error) {
	p, ok := domain.ParseSnapPreset(preset)
	if !ok {
		return c.subtitle.Position(), fmt.Errorf("unknown subtitle preset %q", preset)
	}
	pos := c.subtitle.Snap(p)
	c.events.SubtitleMoved(pos)
	return pos, nil
}

// Status returns the current backend status.
func (c *Controller) Status() domain.Status {
	channel := c.channel.State()
	if c.negotiator.InFlight() {
		channel = domain.ChannelStateNegotiating
	}
	return domain.Status{
		Camera:       c.capture.State(),
		Channel:      channel,
		Facing:       c.capture.Facing(),
		SessionLabel: domain.SessionLabel(c.negotiator.SessionID()),
		Message:      c.feedback.Message(),
		ShowGrid:     c.grid.Enabled(),
		CloudTTS:     c.feedback.CloudTTS(),
		AudioReady:   c.feedback.AudioEnabled(),
		Subtitle:     c.subtitle.Position(),
	}
}

func (c *Controller) isMounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

func (c *Controller) lifecycleCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}
