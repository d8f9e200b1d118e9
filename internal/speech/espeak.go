// Package speech drives local speech synthesis and audio playback subprocesses.
package speech

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"coachcam/internal/ports"
)

// Espeak speaks through an espeak-ng compatible command. At most one
// utterance runs at a time: Speak kills the previous one first.
type Espeak struct {
	command string

	// speakMu serializes Speak and Cancel; mu guards current.
	speakMu sync.Mutex
	mu      sync.Mutex
	current *utterance
}

type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEspeak(command string) *Espeak {
	if command == "" {
		command = "espeak-ng"
	}
	return &Espeak{command: command}
}

// Voices lists installed voices from `--voices`.
func (e *Espeak) Voices(ctx context.Context) ([]ports.Voice, error) {
	out, err := exec.CommandContext(ctx, e.command, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return parseVoices(string(out)), nil
}

func (e *Espeak) Speak(ctx context.Context, text string, voice ports.Voice) error {
	e.speakMu.Lock()
	defer e.speakMu.Unlock()

	e.cancelCurrent()

	args := []string{}
	if voice.ID != "" {
		args = append(args, "-v", voice.ID)
	}
	args = append(args, "--", text)

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, e.command, args...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start speech: %w", err)
	}

	u := &utterance{cancel: cancel, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		cancel()
		close(u.done)

		e.mu.Lock()
		if e.current == u {
			e.current = nil
		}
		e.mu.Unlock()
	}()

	e.mu.Lock()
	e.current = u
	e.mu.Unlock()
	return nil
}

// Cancel stops the running utterance and waits for the process to exit.
func (e *Espeak) Cancel() {
	e.speakMu.Lock()
	defer e.speakMu.Unlock()
	e.cancelCurrent()
}

func (e *Espeak) cancelCurrent() {
	e.mu.Lock()
	u := e.current
	e.current = nil
	e.mu.Unlock()

	if u == nil {
		return
	}
	u.cancel()
	<-u.done
}

var otherLanguagePattern = regexp.MustCompile(`\(([^\s()]+)\s+\d+\)`)

// parseVoices reads the espeak-ng voice table:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  cmn            --/M       Chinese_(Mandarin) sit/cmn       (zh-cmn 5)(zh 5)
func parseVoices(output string) []ports.Voice {
	var voices []ports.Voice
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		voice := ports.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
		}
		voices = append(voices, voice)

		rest := strings.Join(fields[5:], " ")
		for _, match := range otherLanguagePattern.FindAllStringSubmatch(rest, -1) {
			alias := voice
			alias.Language = match[1]
			voices = append(voices, alias)
		}
	}
	return voices
}
