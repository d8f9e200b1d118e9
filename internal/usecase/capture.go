package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"coachcam/internal/domain"
	"coachcam/internal/fsm"
	"coachcam/internal/metrics"
	"coachcam/internal/ports"
)

var (
	// ErrCaptureBusy is returned while another acquisition is in flight. The
	// requested facing is recorded and the in-flight run acquires it next.
	ErrCaptureBusy = errors.New("camera acquisition already in progress")

	// ErrCaptureReleased is returned when Release cancels a pending start.
	ErrCaptureReleased = errors.New("camera released during acquisition")
)

// CaptureConfig holds the requested stream hints.
type CaptureConfig struct {
	IdealWidth   int
	IdealHeight  int
	ReadyTimeout time.Duration
}

// CameraSession is the attached camera stream.
type CameraSession struct {
	Stream     ports.CameraStream
	Facing     domain.Facing
	Generation uint64
}

// CaptureController owns the single camera stream. Every Request issues a
// new generation; a stream acquired for an older generation is stopped and
// never attached.
type CaptureController struct {
	camera ports.Camera
	events ports.EventSink
	logger *slog.Logger
	cfg    CaptureConfig

	mu         sync.Mutex
	generation uint64
	acquiring  bool
	desired    domain.Facing
	state      domain.CameraState
	current    *CameraSession
}

func NewCaptureController(camera ports.Camera, events ports.EventSink, logger *slog.Logger, cfg CaptureConfig) *CaptureController {
	if cfg.IdealWidth <= 0 || cfg.IdealHeight <= 0 {
		cfg.IdealWidth, cfg.IdealHeight = 1920, 1080
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureController{
		camera:  camera,
		events:  events,
		logger:  logger,
		cfg:     cfg,
		desired: domain.FacingFront,
		state:   domain.CameraStateIdle,
	}
}

// Request acquires a stream for facing and attaches it once its first frame
// has arrived. If another Request arrives meanwhile, this call keeps going
// and returns the session for the most recent facing. The current stream
// stays attached until the new one is ready, unless both facings share one
// device, in which case it is released first.
func (c *CaptureController) Request(ctx context.Context, facing domain.Facing) (CameraSession, error) {
	c.mu.Lock()
	c.generation++
	previous := c.facingLocked()
	c.desired = facing
	busy := c.acquiring
	c.acquiring = true
	c.transitionLocked(fsm.EventAcquire)
	c.mu.Unlock()
	c.emitState()

	if busy {
		metrics.RecordCameraAcquisition(string(facing), metrics.ResultBusy)
		return CameraSession{}, ErrCaptureBusy
	}

	for {
		c.mu.Lock()
		generation, want := c.generation, c.desired
		if want == "" {
			c.acquiring = false
			c.mu.Unlock()
			return CameraSession{}, ErrCaptureReleased
		}
		var released *CameraSession
		if c.current != nil && c.camera.SharesDevice(c.current.Facing, want) {
			released, c.current = c.current, nil
		}
		c.mu.Unlock()

		if released != nil {
			c.logger.Debug("releasing shared camera device", "from", released.Facing, "to", want)
			c.stop(released.Stream)
		}

		stream, err := c.acquire(ctx, want)

		if c.superseded(generation) {
			c.logger.Debug("discarding superseded camera stream", "facing", want, "generation", generation)
			c.stop(stream)
			continue
		}

		if err != nil {
			c.mu.Lock()
			c.acquiring = false
			c.state = domain.CameraStateIdle
			c.desired = previous
			if c.current != nil {
				c.state = domain.CameraStateStreaming
				c.desired = c.current.Facing
			}
			c.mu.Unlock()
			c.emitState()
			metrics.RecordCameraAcquisition(string(want), metrics.ResultError)
			return CameraSession{}, err
		}

		c.mu.Lock()
		replaced := c.current
		c.current = nil
		c.mu.Unlock()
		if replaced != nil {
			c.stop(replaced.Stream)
		}

		c.mu.Lock()
		if c.generation != generation {
			c.mu.Unlock()
			c.stop(stream)
			continue
		}
		session := CameraSession{Stream: stream, Facing: want, Generation: generation}
		c.current = &session
		c.acquiring = false
		c.transitionLocked(fsm.EventReady)
		c.mu.Unlock()

		c.emitState()
		metrics.RecordCameraAcquisition(string(want), metrics.ResultSuccess)
		c.logger.Info("camera streaming", "facing", want, "generation", generation)
		return session, nil
	}
}

// Release cancels any pending start and stops the current stream.
func (c *CaptureController) Release() {
	c.mu.Lock()
	c.generation++
	c.desired = ""
	current := c.current
	c.current = nil
	c.transitionLocked(fsm.EventRelease)
	c.mu.Unlock()

	if current != nil {
		c.stop(current.Stream)
		c.rememberFacing(current.Facing)
	}
	c.emitState()
}

// Current returns the attached session.
func (c *CaptureController) Current() (CameraSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return CameraSession{}, false
	}
	return *c.current, true
}

func (c *CaptureController) State() domain.CameraState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Facing is the most recently requested facing, or the attached one after
// a release.
func (c *CaptureController) Facing() domain.Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facingLocked()
}

func (c *CaptureController) facingLocked() domain.Facing {
	if c.desired != "" {
		return c.desired
	}
	if c.current != nil {
		return c.current.Facing
	}
	return domain.FacingFront
}

// rememberFacing keeps the released facing for a later restart unless an
// acquisition is still winding down and needs to observe the release.
func (c *CaptureController) rememberFacing(facing domain.Facing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acquiring && c.desired == "" {
		c.desired = facing
	}
}

func (c *CaptureController) acquire(ctx context.Context, facing domain.Facing) (ports.CameraStream, error) {
	stream, err := c.camera.Acquire(ctx, ports.CameraConstraints{
		Facing:      facing,
		IdealWidth:  c.cfg.IdealWidth,
		IdealHeight: c.cfg.IdealHeight,
		Audio:       false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s camera: %w", facing, err)
	}

	timer := time.NewTimer(c.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-stream.Ready():
		return stream, nil
	case <-stream.Done():
		select {
		case <-stream.Ready():
			return stream, nil
		default:
		}
		c.stop(stream)
		return nil, fmt.Errorf("%s camera stopped before its first frame", facing)
	case <-ctx.Done():
		c.stop(stream)
		return nil, ctx.Err()
	case <-timer.C:
		c.stop(stream)
		return nil, fmt.Errorf("%s camera produced no frame within %s", facing, c.cfg.ReadyTimeout)
	}
}

func (c *CaptureController) superseded(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation != generation
}

func (c *CaptureController) stop(stream ports.CameraStream) {
	if stream == nil {
		return
	}
	if err := stream.Stop(); err != nil {
		c.logger.Debug("camera stream stop failed", "error", err)
	}
}

func (c *CaptureController) transitionLocked(event fsm.Event) {
	next, err := fsm.CameraTransition(c.state, event)
	if err != nil {
		c.logger.Warn("ignoring camera transition", "error", err)
		return
	}
	c.state = next
}

func (c *CaptureController) emitState() {
	c.mu.Lock()
	state, facing := c.state, c.facingLocked()
	c.mu.Unlock()
	c.events.CameraStateChanged(state, facing)
}
