package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coachcam/internal/domain"
	"coachcam/internal/ports"
)

type tipRecorder struct {
	mu   sync.Mutex
	tips []string
}

func (r *tipRecorder) handle(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tips = append(r.tips, text)
}

func (r *tipRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tips...)
}

func testFrame() domain.OutboundFrame {
	return domain.OutboundFrame{
		Type:        domain.MessageTypeFrame,
		Timestamp:   1,
		ContentType: "image/jpeg",
		Shape:       [2]int{2, 2},
		Bytes:       "AA==",
	}
}

func TestChannelSendWhileClosedIsNoop(t *testing.T) {
	t.Parallel()

	channel := NewChannel(&fakeDialer{}, &fakeEventSink{}, discardLogger(), nil)
	require.False(t, channel.SendFrame(testFrame()))
	require.False(t, channel.IsOpen())
	require.Equal(t, domain.ChannelStateDisconnected, channel.State())
}

func TestChannelDispatchesTipsInOrderAndSurvivesMalformedMessages(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	tips := &tipRecorder{}
	channel := NewChannel(dialer, &fakeEventSink{}, discardLogger(), tips.handle)

	require.NoError(t, channel.Open(context.Background(), "ws://coach/ws"))
	conn := dialer.conn(0)
	for _, msg := range []string{
		`{not json`,
		`{"type":"tip","text":"first"}`,
		`{"type":"score","value":3}`,
		`{"type":"tip","text":7}`,
		`{"type":"tip","text":null}`,
		`{"type":"tip"}`,
		`{"type":"tip","text":"second"}`,
	} {
		conn.messages <- []byte(msg)
	}

	require.Eventually(t, func() bool { return len(tips.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"first", "second"}, tips.snapshot())
	require.False(t, conn.isClosed())
	require.True(t, channel.IsOpen())

	channel.Close()
	require.True(t, conn.isClosed())
	require.Equal(t, domain.ChannelStateDisconnected, channel.State())
}

func TestChannelSendFrameWritesJSON(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	channel := NewChannel(dialer, &fakeEventSink{}, discardLogger(), nil)
	require.NoError(t, channel.Open(context.Background(), "ws://coach/ws"))
	defer channel.Close()

	require.True(t, channel.SendFrame(testFrame()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(dialer.conn(0).lastSent(), &got))
	require.Equal(t, "frame", got["type"])
	require.Equal(t, "image/jpeg", got["content_type"])
	require.Equal(t, []any{2.0, 2.0}, got["shape"])
	require.Equal(t, "AA==", got["bytes"])
}

func TestChannelSendBusyDropsFrame(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	channel := NewChannel(dialer, &fakeEventSink{}, discardLogger(), nil)
	require.NoError(t, channel.Open(context.Background(), "ws://coach/ws"))
	defer channel.Close()

	conn := dialer.conn(0)
	conn.mu.Lock()
	conn.sendErr = ports.ErrSendBusy
	conn.mu.Unlock()

	require.False(t, channel.SendFrame(testFrame()))
	require.Zero(t, conn.sentCount())
	require.True(t, channel.IsOpen(), "a dropped frame does not affect the connection")
}

func TestChannelRemoteCloseClearsConnection(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	events := &fakeEventSink{}
	channel := NewChannel(dialer, events, discardLogger(), nil)
	require.NoError(t, channel.Open(context.Background(), "ws://coach/ws"))

	dialer.conn(0).remoteClose()

	require.Eventually(t, func() bool { return channel.State() == domain.ChannelStateClosed }, 2*time.Second, 5*time.Millisecond)
	require.False(t, channel.SendFrame(testFrame()))
	require.Len(t, dialer.dialed(), 1, "no automatic reconnect")

	channels := events.snapshotChannels()
	require.Equal(t, domain.ChannelStateClosed, channels[len(channels)-1])
}

func TestChannelOpenReplacesPreviousConnection(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	tips := &tipRecorder{}
	channel := NewChannel(dialer, &fakeEventSink{}, discardLogger(), tips.handle)

	require.NoError(t, channel.Open(context.Background(), "ws://coach/one"))
	require.NoError(t, channel.Open(context.Background(), "ws://coach/two"))
	defer channel.Close()

	require.True(t, dialer.conn(0).isClosed())
	require.False(t, dialer.conn(1).isClosed())
	require.True(t, channel.IsOpen(), "closing the old connection must not clear the new one")

	dialer.conn(1).messages <- []byte(`{"type":"tip","text":"from two"}`)
	require.Eventually(t, func() bool { return len(tips.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestChannelDialFailure(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{err: errors.New("refused")}
	channel := NewChannel(dialer, &fakeEventSink{}, discardLogger(), nil)

	err := channel.Open(context.Background(), "ws://coach/ws")
	require.ErrorIs(t, err, ErrChannelUnavailable)
	require.ErrorContains(t, err, "refused")
	require.Equal(t, domain.ChannelStateClosed, channel.State())
	require.False(t, channel.SendFrame(testFrame()))
}
