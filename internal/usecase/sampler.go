package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coachcam/internal/domain"
	"coachcam/internal/media"
	"coachcam/internal/metrics"
	"coachcam/internal/ports"
	"coachcam/internal/schedule"
)

// SamplerConfig controls frame cadence and encoding.
type SamplerConfig struct {
	Interval time.Duration
	Quality  int
	// MaxWidth caps the sent frame width; zero sends native resolution.
	MaxWidth int
}

type frameSender interface {
	IsOpen() bool
	SendFrame(frame domain.OutboundFrame) bool
}

// FrameSampler periodically encodes the latest camera frame and sends it
// over the channel. Ticks never queue: a tick with nothing to send is
// skipped.
type FrameSampler struct {
	sender frameSender
	events ports.EventSink
	logger *slog.Logger
	cfg    SamplerConfig
	now    func() time.Time

	task schedule.Slot

	mu     sync.Mutex
	stream ports.CameraStream
}

func NewFrameSampler(sender frameSender, events ports.EventSink, logger *slog.Logger, cfg SamplerConfig) *FrameSampler {
	if cfg.Interval <= 0 {
		cfg.Interval = 700 * time.Millisecond
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = media.DefaultQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameSampler{
		sender: sender,
		events: events,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Start samples session's stream, replacing any running schedule.
func (s *FrameSampler) Start(ctx context.Context, session CameraSession) {
	s.task.Stop()

	s.mu.Lock()
	s.stream = session.Stream
	s.mu.Unlock()

	s.task.Replace(schedule.Every(ctx, s.cfg.Interval, func(context.Context) {
		s.SampleOnce()
	}))
}

func (s *FrameSampler) Stop() {
	s.task.Stop()

	s.mu.Lock()
	s.stream = nil
	s.mu.Unlock()
}

func (s *FrameSampler) Running() bool {
	return s.task.Active()
}

// SampleOnce emits the latest frame as a preview and, if the channel is
// open, sends it. It reports whether a frame was sent. The preview keeps
// the UI alive before a channel exists.
func (s *FrameSampler) SampleOnce() bool {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream == nil {
		return false
	}
	img, ok := stream.Frame()
	if !ok {
		metrics.RecordFrameDropped(metrics.DropNoFrame)
		return false
	}

	srcW, srcH := stream.Size()
	width, height := media.CanvasSize(srcW, srcH, s.cfg.MaxWidth)
	canvas, err := media.Render(img, width, height)
	if err != nil {
		metrics.RecordFrameDropped(metrics.DropNoFrame)
		return false
	}
	payload, err := media.EncodeJPEGBase64(canvas, s.cfg.Quality)
	if err != nil {
		metrics.RecordFrameDropped(metrics.DropEncodeFail)
		s.logger.Warn("frame encode failed", "error", err)
		return false
	}

	s.events.FramePreview(media.DataURL(media.MIMETypeJPEG, payload))

	if !s.sender.IsOpen() {
		metrics.RecordFrameDropped(metrics.DropNotOpen)
		return false
	}
	return s.sender.SendFrame(domain.OutboundFrame{
		Type:        domain.MessageTypeFrame,
		Timestamp:   s.now().UnixMilli(),
		ContentType: media.MIMETypeJPEG,
		Shape:       [2]int{height, width},
		Bytes:       payload,
	})
}
