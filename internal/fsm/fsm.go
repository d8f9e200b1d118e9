// Package fsm holds the camera and channel transition tables.
package fsm

import (
	"fmt"

	"coachcam/internal/domain"
)

type Event string

const (
	EventAcquire Event = "acquire"
	EventReady   Event = "ready"
	EventRelease Event = "release"

	EventConnect    Event = "connect"
	EventOpen       Event = "open"
	EventClose      Event = "close"
	EventFail       Event = "fail"
	EventDisconnect Event = "disconnect"
)

// CameraTransition advances the camera lifecycle. A failed acquisition is not
// an event here: the caller restores the state it had before acquiring.
func CameraTransition(current domain.CameraState, event Event) (domain.CameraState, error) {
	if event == EventRelease {
		return domain.CameraStateIdle, nil
	}

	switch current {
	case domain.CameraStateIdle, domain.CameraStateStreaming:
		if event == EventAcquire {
			return domain.CameraStateAcquiring, nil
		}
	case domain.CameraStateAcquiring:
		switch event {
		case EventAcquire:
			return domain.CameraStateAcquiring, nil
		case EventReady:
			return domain.CameraStateStreaming, nil
		}
	default:
		return current, fmt.Errorf("unknown camera state %q", current)
	}
	return current, invalidTransition(string(current), event)
}

// ChannelTransition advances the socket lifecycle. Negotiation is tracked by
// the negotiator and never changes the state of a live connection.
func ChannelTransition(current domain.ChannelState, event Event) (domain.ChannelState, error) {
	if event == EventDisconnect {
		return domain.ChannelStateDisconnected, nil
	}

	switch current {
	case domain.ChannelStateDisconnected, domain.ChannelStateClosed:
		switch event {
		case EventConnect:
			return domain.ChannelStateConnecting, nil
		case EventClose:
			return current, nil
		}
	case domain.ChannelStateConnecting:
		switch event {
		case EventOpen:
			return domain.ChannelStateOpen, nil
		case EventFail, EventClose:
			return domain.ChannelStateClosed, nil
		}
	case domain.ChannelStateOpen:
		switch event {
		case EventConnect:
			return domain.ChannelStateConnecting, nil
		case EventClose, EventFail:
			return domain.ChannelStateClosed, nil
		}
	default:
		return current, fmt.Errorf("unknown channel state %q", current)
	}
	return current, invalidTransition(string(current), event)
}

func invalidTransition(state string, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
