package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"coachcam/internal/domain"
	"coachcam/internal/metrics"
	"coachcam/internal/ports"
)

// ErrNegotiationBusy is returned when a negotiation is already outstanding.
var ErrNegotiationBusy = errors.New("session negotiation already in progress")

// NegotiatorConfig describes the client to the session service.
type NegotiatorConfig struct {
	Locale string
	Device ports.DeviceInfo
}

// DesktopDevice is the device description sent by the desktop client.
func DesktopDevice(version string) ports.DeviceInfo {
	if version == "" {
		version = "dev"
	}
	return ports.DeviceInfo{
		Model:   "Desktop",
		OS:      runtime.GOOS + "/" + runtime.GOARCH,
		Browser: "coachcam/" + version + " (wails)",
	}
}

// Negotiator creates remote sessions and opens their channel. At most one
// negotiation runs at a time.
type Negotiator struct {
	sessions ports.SessionService
	channel  *Channel
	events   ports.EventSink
	logger   *slog.Logger
	cfg      NegotiatorConfig

	mu       sync.Mutex
	inFlight bool
	session  domain.RemoteSession
}

func NewNegotiator(sessions ports.SessionService, channel *Channel, events ports.EventSink, logger *slog.Logger, cfg NegotiatorConfig) *Negotiator {
	if cfg.Locale == "" {
		cfg.Locale = "zh-TW"
	}
	if cfg.Device == (ports.DeviceInfo{}) {
		cfg.Device = DesktopDevice("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{
		sessions: sessions,
		channel:  channel,
		events:   events,
		logger:   logger,
		cfg:      cfg,
	}
}

// Open negotiates a session for facing and, when the service returns a
// channel URL, opens the streaming channel on it. On failure the previous
// session is kept.
func (n *Negotiator) Open(ctx context.Context, facing domain.Facing) error {
	n.mu.Lock()
	if n.inFlight {
		n.mu.Unlock()
		metrics.RecordNegotiation(metrics.ResultBusy)
		return ErrNegotiationBusy
	}
	n.inFlight = true
	n.mu.Unlock()

	n.events.ChannelStateChanged(domain.ChannelStateNegotiating)
	err := n.open(ctx, facing)

	n.mu.Lock()
	n.inFlight = false
	n.mu.Unlock()

	if err != nil {
		n.events.ChannelStateChanged(n.channel.State())
	}
	return err
}

func (n *Negotiator) open(ctx context.Context, facing domain.Facing) error {
	session, err := n.sessions.CreateSession(ctx, ports.SessionRequest{
		Device:  n.cfg.Device,
		Mode:    facing.Mode(),
		Locale:  n.cfg.Locale,
		Consent: map[string]bool{"vision": true},
	})
	if err != nil {
		metrics.RecordNegotiation(metrics.ResultError)
		return fmt.Errorf("failed to create session: %w", err)
	}
	metrics.RecordNegotiation(metrics.ResultSuccess)

	n.mu.Lock()
	n.session = session
	n.mu.Unlock()

	n.logger.Info("coaching session created", "session", domain.SessionLabel(session.ID), "mode", facing.Mode())
	n.events.SessionChanged(domain.SessionLabel(session.ID))

	if session.ChannelURL == "" {
		n.logger.Warn("session has no channel url; frames will not be streamed")
		n.events.ChannelStateChanged(n.channel.State())
		return nil
	}
	return n.channel.Open(ctx, session.ChannelURL)
}

// Session returns the most recent successfully negotiated session.
func (n *Negotiator) Session() domain.RemoteSession {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session
}

// SessionID is the current session identifier, empty before negotiation.
func (n *Negotiator) SessionID() string {
	return n.Session().ID
}

func (n *Negotiator) InFlight() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inFlight
}
