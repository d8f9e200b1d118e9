package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// FFPlay plays audio URLs with an ffplay compatible command.
type FFPlay struct {
	command string
}

func NewFFPlay(command string) *FFPlay {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlay{command: command}
}

// Play blocks until playback finishes. Cancelling ctx stops playback and
// is not reported as an error.
func (p *FFPlay) Play(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("empty audio url")
	}

	cmd := exec.CommandContext(ctx, p.command, "-nodisp", "-autoexit", "-loglevel", "quiet", url)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("audio playback failed: %w", err)
	}
	return nil
}
