package coach

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// scriptedServer sends the given messages, then records what the client sends.
func scriptedServer(t *testing.T, outbound []string, received chan<- string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range outbound {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if received != nil {
				received <- string(data)
			}
		}
	}))
}

func TestSocketReceivesAndSends(t *testing.T) {
	t.Parallel()

	received := make(chan string, 4)
	srv := scriptedServer(t, []string{`{"type":"tip","text":"a"}`, `{"type":"tip","text":"b"}`}, received)
	defer srv.Close()

	conn, err := NewDialer(nil).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	require.Equal(t, `{"type":"tip","text":"a"}`, string(<-conn.Messages()))
	require.Equal(t, `{"type":"tip","text":"b"}`, string(<-conn.Messages()))

	require.NoError(t, conn.Send([]byte(`{"type":"frame"}`)))
	select {
	case got := <-received:
		require.Equal(t, `{"type":"frame"}`, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not receive frame")
	}

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	require.ErrorIs(t, conn.Send([]byte("late")), ErrSocketClosed)
}

func TestSocketRemoteCloseEndsMessages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = conn.Close()
	}))
	defer srv.Close()

	conn, err := NewDialer(nil).Dial(context.Background(), wsURL(srv))
	require.NoError(t, err)

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("socket did not observe remote close")
	}
	_, open := <-conn.Messages()
	require.False(t, open)
	require.NoError(t, conn.Close())
}

func TestSocketSendDropsWhileWriting(t *testing.T) {
	t.Parallel()

	s := &socket{done: make(chan struct{})}
	s.writeMu.Lock()
	require.ErrorIs(t, s.Send([]byte("x")), ErrSendBusy)
	s.writeMu.Unlock()
}

func TestDialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewDialer(nil).Dial(context.Background(), wsURL(srv))
	require.ErrorContains(t, err, "failed to connect")
}

func TestSocketSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &socket{logger: discardLogger()}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	require.NoError(t, s.waitErr())

	s.setErr(errBoom("first"))
	s.setErr(errBoom("second"))
	require.EqualError(t, s.waitErr(), "first")
}

type errBoom string

func (e errBoom) Error() string { return string(e) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
