package ports

import (
	"context"
	"errors"
	"image"

	"coachcam/internal/domain"
)

// CameraConstraints describes the requested camera stream. Width and height
// are hints: the backend never forces a size the device cannot produce.
type CameraConstraints struct {
	Facing      domain.Facing
	IdealWidth  int
	IdealHeight int
	Audio       bool
}

// CameraStream is a live camera handle.
type CameraStream interface {
	// Ready is closed once the first frame has arrived and Size is known.
	Ready() <-chan struct{}
	// Frame returns the most recent unmirrored frame.
	Frame() (image.Image, bool)
	// Size is the native resolution, or zeros while unknown.
	Size() (width int, height int)
	// Done is closed when the stream ends and no more frames will arrive.
	Done() <-chan struct{}
	Stop() error
}

// Camera acquires camera streams.
type Camera interface {
	Acquire(ctx context.Context, constraints CameraConstraints) (CameraStream, error)
	// SharesDevice reports whether two facings are served by one device,
	// which cannot be opened twice.
	SharesDevice(a, b domain.Facing) bool
}

// DeviceInfo is the client description sent during negotiation.
type DeviceInfo struct {
	Model   string `json:"model"`
	OS      string `json:"os"`
	Browser string `json:"browser"`
}

// SessionRequest is the negotiation payload.
type SessionRequest struct {
	Device  DeviceInfo      `json:"device"`
	Mode    string          `json:"mode"`
	Locale  string          `json:"locale"`
	Consent map[string]bool `json:"consent"`
}

// SessionService negotiates remote coaching sessions.
type SessionService interface {
	CreateSession(ctx context.Context, req SessionRequest) (domain.RemoteSession, error)
}

// ErrSendBusy is returned by ChannelConn.Send when a previous write is still
// in progress and the payload was dropped.
var ErrSendBusy = errors.New("channel write in progress")

// ChannelConn is one live socket connection.
type ChannelConn interface {
	// Send writes one text message. It must not queue.
	Send(payload []byte) error
	// Messages yields inbound text payloads and is closed when the socket ends.
	Messages() <-chan []byte
	Done() <-chan struct{}
	Close() error
}

// ChannelDialer opens socket connections.
type ChannelDialer interface {
	Dial(ctx context.Context, url string) (ChannelConn, error)
}

// Voice is a speech voice offered by a synthesizer.
type Voice struct {
	ID       string
	Name     string
	Language string
}

// SpeechSynthesizer speaks text on the local device.
type SpeechSynthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	// Speak starts an utterance and returns without waiting for it to finish.
	Speak(ctx context.Context, text string, voice Voice) error
	// Cancel stops the current utterance, if any.
	Cancel()
}

// SpeechRequest is the remote synthesis payload.
type SpeechRequest struct {
	SessionID string  `json:"session_id"`
	Text      string  `json:"text"`
	Voice     string  `json:"voice"`
	Speed     float64 `json:"speed"`
	Pitch     float64 `json:"pitch"`
	Format    string  `json:"format"`
	Cache     bool    `json:"cache"`
}

// RemoteSpeech synthesizes speech on the coaching service.
type RemoteSpeech interface {
	SynthesizeSpeech(ctx context.Context, req SpeechRequest) (audioURL string, err error)
}

// AudioPlayer plays an audio URL until it ends or ctx is cancelled.
type AudioPlayer interface {
	Play(ctx context.Context, url string) error
}

// TextRewriter rewrites tip text before it is spoken.
type TextRewriter interface {
	Rewrite(text string) string
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	CameraStateChanged(state domain.CameraState, facing domain.Facing)
	SessionChanged(label string)
	ChannelStateChanged(state domain.ChannelState)
	TipReceived(text string)
	FramePreview(dataURL string)
	GridChanged(lines []domain.GridLine)
	SubtitleMoved(pos domain.SubtitlePosition)
	PhotoTaken(dataURL string)
	SessionError(code domain.ErrorCode, detail string)
}
