package domain

import "strings"

// Facing selects which camera the capture controller acquires.
type Facing string

const (
	FacingFront Facing = "user"
	FacingBack  Facing = "environment"
)

// Toggle returns the opposite camera.
func (f Facing) Toggle() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// Mode is the coaching mode the session service expects for this facing.
func (f Facing) Mode() string {
	if f == FacingFront {
		return "selfie"
	}
	return "group"
}

// CameraState models the camera acquisition lifecycle.
type CameraState string

const (
	CameraStateIdle      CameraState = "idle"
	CameraStateAcquiring CameraState = "acquiring"
	CameraStateStreaming CameraState = "streaming"
)

// ChannelState models the negotiation and socket lifecycle.
type ChannelState string

const (
	ChannelStateDisconnected ChannelState = "disconnected"
	ChannelStateNegotiating  ChannelState = "negotiating"
	ChannelStateConnecting   ChannelState = "connecting"
	ChannelStateOpen         ChannelState = "open"
	ChannelStateClosed       ChannelState = "closed"
)

// ErrorCode identifies contained, non-fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeCamera      ErrorCode = "camera"
	ErrorCodeNegotiation ErrorCode = "negotiation"
	ErrorCodeChannel     ErrorCode = "channel"
	ErrorCodePlayback    ErrorCode = "playback"
	ErrorCodeSnapshot    ErrorCode = "snapshot"
)

// RemoteSession is the result of one successful negotiation.
type RemoteSession struct {
	ID         string `json:"sessionId"`
	ChannelURL string `json:"channelUrl"`
}

const (
	sessionLabelLength = 12

	// SessionLabelPending is shown while no session has been negotiated.
	SessionLabelPending = "Connecting"

	// MessagePending is the subtitle text shown before the first tip.
	MessagePending = "Connecting to coach ..."
)

// SessionLabel is the short indicator text for a session id.
func SessionLabel(id string) string {
	if id == "" {
		return SessionLabelPending
	}
	runes := []rune(id)
	if len(runes) > sessionLabelLength {
		runes = runes[:sessionLabelLength]
	}
	return string(runes) + "..."
}

// MessageTypeTip and MessageTypeFrame are the socket message discriminators.
const (
	MessageTypeTip   = "tip"
	MessageTypeFrame = "frame"
)

// TipMessage is an inbound coaching tip.
type TipMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutboundFrame is one sampled camera frame sent over the channel.
type OutboundFrame struct {
	Type        string `json:"type"`
	Timestamp   int64  `json:"ts"`
	ContentType string `json:"content_type"`
	Shape       [2]int `json:"shape"`
	Bytes       string `json:"bytes"`
}

// SubtitlePosition is the subtitle anchor in container-local coordinates.
type SubtitlePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SnapPreset names a fixed subtitle placement.
type SnapPreset string

const (
	SnapTop    SnapPreset = "top"
	SnapCenter SnapPreset = "center"
	SnapBottom SnapPreset = "bottom"
)

// ParseSnapPreset accepts preset names from the UI.
func ParseSnapPreset(value string) (SnapPreset, bool) {
	switch SnapPreset(strings.ToLower(strings.TrimSpace(value))) {
	case SnapTop:
		return SnapTop, true
	case SnapCenter:
		return SnapCenter, true
	case SnapBottom:
		return SnapBottom, true
	default:
		return "", false
	}
}

// GridLine is one overlay guideline segment.
type GridLine struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Status summarizes the lifecycle state for the UI.
type Status struct {
	Camera       CameraState      `json:"camera"`
	Channel      ChannelState     `json:"channel"`
	Facing       Facing           `json:"facing"`
	SessionLabel string           `json:"sessionLabel"`
	Message      string           `json:"message"`
	ShowGrid     bool             `json:"showGrid"`
	CloudTTS     bool             `json:"cloudTts"`
	AudioReady   bool             `json:"audioReady"`
	Subtitle     SubtitlePosition `json:"subtitle"`
}
