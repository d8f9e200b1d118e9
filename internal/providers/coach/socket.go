package coach

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coachcam/internal/ports"
)

const (
	defaultDialTimeout    = 10 * time.Second
	defaultWriteWait      = 5 * time.Second
	defaultMaxMessageSize = 1 << 20
	closeGracePeriod      = time.Second
)

// ErrSendBusy is returned when a previous write is still in progress.
var ErrSendBusy = ports.ErrSendBusy

// ErrSocketClosed is returned for sends after the socket has ended.
var ErrSocketClosed = errors.New("channel closed")

// Dialer implements ports.ChannelDialer with gorilla/websocket.
type Dialer struct {
	dialer    websocket.Dialer
	writeWait time.Duration
	logger    *slog.Logger
}

func NewDialer(logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{
		dialer: websocket.Dialer{
			HandshakeTimeout: defaultDialTimeout,
			TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
		},
		writeWait: defaultWriteWait,
		logger:    logger,
	}
}

func (d *Dialer) Dial(ctx context.Context, url string) (ports.ChannelConn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to coaching channel: %w", err)
	}
	conn.SetReadLimit(defaultMaxMessageSize)

	s := &socket{
		conn:      conn,
		messages:  make(chan []byte, 16),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		writeWait: d.writeWait,
		logger:    d.logger,
	}
	go s.readLoop()
	return s, nil
}

type socket struct {
	conn      *websocket.Conn
	messages  chan []byte
	closing   chan struct{}
	done      chan struct{}
	writeWait time.Duration
	logger    *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// Send writes without queuing: if another write holds the connection the
// payload is dropped with ErrSendBusy.
func (s *socket) Send(payload []byte) error {
	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}

	if !s.writeMu.TryLock() {
		return ErrSendBusy
	}
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

func (s *socket) Messages() <-chan []byte {
	return s.messages
}

func (s *socket) Done() <-chan struct{} {
	return s.done
}

func (s *socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *socket) readLoop() {
	defer close(s.done)
	defer close(s.messages)

	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case s.messages <- payload:
		case <-s.closing:
			return
		}
	}
}

func (s *socket) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *socket) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, net.ErrClosed) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
		s.logger.Debug("coaching channel read ended", "error", err)
	}
}
