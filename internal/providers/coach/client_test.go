package coach

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"coachcam/internal/ports"
)

func TestCreateSessionUpgradesChannelURL(t *testing.T) {
	t.Parallel()

	var got ports.SessionRequest
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/sessions", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		requestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"session_id":"abc123def456ghi789","ws_url":"http://x/ws"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIBaseURL: srv.URL + "/"})
	session, err := client.CreateSession(context.Background(), ports.SessionRequest{
		Device:  ports.DeviceInfo{Model: "Desktop", OS: "linux/amd64", Browser: "coachcam"},
		Mode:    "selfie",
		Locale:  "zh-TW",
		Consent: map[string]bool{"vision": true},
	})
	require.NoError(t, err)
	require.Equal(t, "abc123def456ghi789", session.ID)
	require.Equal(t, "ws://x/ws", session.ChannelURL)

	require.NotEmpty(t, requestID)
	require.Equal(t, "selfie", got.Mode)
	require.Equal(t, "zh-TW", got.Locale)
	require.True(t, got.Consent["vision"])
	require.Equal(t, "Desktop", got.Device.Model)
}

func TestCreateSessionNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{APIBaseURL: srv.URL})
	_, err := client.CreateSession(context.Background(), ports.SessionRequest{})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Contains(t, statusErr.Error(), "quota exceeded")
}

func TestCreateSessionEmptyChannelURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"session_id":"s1","ws_url":""}`))
	}))
	defer srv.Close()

	session, err := NewClient(Config{APIBaseURL: srv.URL}).CreateSession(context.Background(), ports.SessionRequest{})
	require.NoError(t, err)
	require.Equal(t, "s1", session.ID)
	require.Empty(t, session.ChannelURL)
}

func TestCreateSessionBadPayload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIBaseURL: srv.URL}).CreateSession(context.Background(), ports.SessionRequest{})
	require.ErrorContains(t, err, "failed to decode response")
}

func TestSynthesizeSpeech(t *testing.T) {
	t.Parallel()

	var got ports.SpeechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/tts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"audio_url":"https://cdn/a.mp3"}`))
	}))
	defer srv.Close()

	url, err := NewClient(Config{APIBaseURL: srv.URL}).SynthesizeSpeech(context.Background(), ports.SpeechRequest{
		SessionID: "s1", Text: "hi", Voice: "zh-TW-Wavenet-A", Speed: 1, Format: "mp3", Cache: true,
	})
	require.NoError(t, err)
	require.Equal(t, "https://cdn/a.mp3", url)
	require.Equal(t, "s1", got.SessionID)
	require.Equal(t, "zh-TW-Wavenet-A", got.Voice)
	require.True(t, got.Cache)
}

func TestSynthesizeSpeechMissingAudioURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIBaseURL: srv.URL}).SynthesizeSpeech(context.Background(), ports.SpeechRequest{})
	require.ErrorContains(t, err, "no audio url")
}

func TestChannelURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "http://x/ws", want: "ws://x/ws", ok: true},
		{in: "https://api.example.com/v1/ws?s=1", want: "wss://api.example.com/v1/ws?s=1", ok: true},
		{in: "wss://already/ws", want: "wss://already/ws", ok: true},
		{in: "  ", ok: false},
		{in: "ftp://x/ws", ok: false},
		{in: "://bad", ok: false},
		{in: "/relative/only", ok: false},
	}
	for _, tc := range tests {
		got, ok := ChannelURL(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}
