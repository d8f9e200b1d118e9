// Package coach talks to the remote coaching service over HTTP and websocket.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachcam/internal/domain"
	"coachcam/internal/ports"
)

const (
	sessionsPath = "/v1/sessions"
	ttsPath      = "/v1/tts"

	maxErrorBody = 512
)

// Config controls the coaching service client.
type Config struct {
	APIBaseURL string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client implements ports.SessionService and ports.RemoteSpeech.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	WSURL     string `json:"ws_url"`
}

// CreateSession negotiates a session. The returned ChannelURL is already
// upgraded to ws(s) and is empty when the service returned nothing usable.
func (c *Client) CreateSession(ctx context.Context, req ports.SessionRequest) (domain.RemoteSession, error) {
	var resp createSessionResponse
	if err := c.postJSON(ctx, sessionsPath, req, &resp); err != nil {
		return domain.RemoteSession{}, fmt.Errorf("create session failed: %w", err)
	}

	channelURL, ok := ChannelURL(resp.WSURL)
	if !ok && strings.TrimSpace(resp.WSURL) != "" {
		c.logger.Warn("session returned an unusable channel url", "ws_url", resp.WSURL)
	}
	return domain.RemoteSession{ID: resp.SessionID, ChannelURL: channelURL}, nil
}

type speechResponse struct {
	AudioURL string `json:"audio_url"`
}

// SynthesizeSpeech asks the service to synthesize text and returns a playable URL.
func (c *Client) SynthesizeSpeech(ctx context.Context, req ports.SpeechRequest) (string, error) {
	var resp speechResponse
	if err := c.postJSON(ctx, ttsPath, req, &resp); err != nil {
		return "", fmt.Errorf("speech synthesis failed: %w", err)
	}
	if strings.TrimSpace(resp.AudioURL) == "" {
		return "", errors.New("speech synthesis returned no audio url")
	}
	return resp.AudioURL, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("coach request", "path", path, "status", resp.StatusCode, "request_id", requestID, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// ChannelURL upgrades an http(s) endpoint to ws(s). ws(s) URLs pass through.
// It reports false for empty or unparsable input.
func ChannelURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", false
	}
	return parsed.String(), true
}
