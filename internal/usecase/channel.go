package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"coachcam/internal/domain"
	"coachcam/internal/fsm"
	"coachcam/internal/metrics"
	"coachcam/internal/ports"
)

var (
	// ErrChannelBusy is returned when a channel open is already in flight.
	ErrChannelBusy = errors.New("channel open already in progress")
	// ErrChannelUnavailable wraps dial failures.
	ErrChannelUnavailable = errors.New("coaching channel unavailable")
)

// Channel owns the one live streaming connection.
type Channel struct {
	dialer ports.ChannelDialer
	events ports.EventSink
	logger *slog.Logger
	onTip  func(text string)

	mu      sync.Mutex
	conn    ports.ChannelConn
	state   domain.ChannelState
	opening bool
	// epoch changes on Close so an in-flight dial can tell it was cancelled.
	epoch uint64
	wg    sync.WaitGroup
}

func NewChannel(dialer ports.ChannelDialer, events ports.EventSink, logger *slog.Logger, onTip func(text string)) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if onTip == nil {
		onTip = func(string) {}
	}
	return &Channel{
		dialer: dialer,
		events: events,
		logger: logger,
		onTip:  onTip,
		state:  domain.ChannelStateDisconnected,
	}
}

// Open closes any previous connection and dials url.
func (c *Channel) Open(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.opening {
		c.mu.Unlock()
		return ErrChannelBusy
	}
	c.opening = true
	epoch := c.epoch
	previous := c.conn
	c.conn = nil
	c.transitionLocked(fsm.EventConnect)
	c.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			c.logger.Debug("previous channel closed with error", "error", err)
		}
	}
	c.emitState()

	conn, err := c.dialer.Dial(ctx, url)

	c.mu.Lock()
	c.opening = false
	if c.epoch != epoch {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		c.transitionLocked(fsm.EventFail)
		c.mu.Unlock()
		c.emitState()
		return fmt.Errorf("%w: %w", ErrChannelUnavailable, err)
	}
	c.conn = conn
	c.transitionLocked(fsm.EventOpen)
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("coaching channel open")
	c.emitState()

	go c.dispatch(conn)
	return nil
}

// SendFrame writes one frame if the channel is open. It never blocks on a
// previous write and never queues.
func (c *Channel) SendFrame(frame domain.OutboundFrame) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == domain.ChannelStateOpen
	c.mu.Unlock()

	if conn == nil || !open {
		metrics.RecordFrameDropped(metrics.DropNotOpen)
		return false
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		metrics.RecordFrameDropped(metrics.DropEncodeFail)
		return false
	}
	if err := conn.Send(payload); err != nil {
		if errors.Is(err, ports.ErrSendBusy) {
			metrics.RecordFrameDropped(metrics.DropSendBusy)
		} else {
			metrics.RecordFrameDropped(metrics.DropNotOpen)
			c.logger.Debug("frame send failed", "error", err)
		}
		return false
	}
	metrics.RecordFrameSent(len(payload))
	return true
}

// IsOpen reports whether frames would currently be sent.
func (c *Channel) IsOpen() bool {
	return c.State() == domain.ChannelStateOpen
}

func (c *Channel) State() domain.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close drops the current connection and waits for its dispatcher.
func (c *Channel) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.epoch++
	c.transitionLocked(fsm.EventDisconnect)
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("channel closed with error", "error", err)
		}
	}
	c.wg.Wait()
	c.emitState()
}

func (c *Channel) dispatch(conn ports.ChannelConn) {
	defer c.wg.Done()

	for payload := range conn.Messages() {
		c.route(payload)
	}

	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
		c.transitionLocked(fsm.EventClose)
	}
	c.mu.Unlock()

	if current {
		c.logger.Info("coaching channel closed by remote")
		c.emitState()
	}
}

type inboundMessage struct {
	Type string          `json:"type"`
	Text json.RawMessage `json:"text"`
}

func (c *Channel) route(payload []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Debug("ignoring malformed channel message", "error", err)
		return
	}
	if msg.Type != domain.MessageTypeTip {
		return
	}

	var text *string
	if err := json.Unmarshal(msg.Text, &text); err != nil || text == nil {
		c.logger.Debug("ignoring tip without string text", "error", err)
		return
	}
	metrics.RecordTip()
	c.onTip(*text)
}

func (c *Channel) transitionLocked(event fsm.Event) {
	next, err := fsm.ChannelTransition(c.state, event)
	if err != nil {
		c.logger.Warn("ignoring channel transition", "error", err)
		return
	}
	c.state = next
}

func (c *Channel) emitState() {
	c.events.ChannelStateChanged(c.State())
}
