package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"coachcam/internal/domain"
	"coachcam/internal/ports"
)

// Devices maps each facing to a platform capture device.
type Devices struct {
	InputFormat string
	Front       string
	Back        string
}

// FFMPEGCamera captures camera frames as an MJPEG stream from ffmpeg.
type FFMPEGCamera struct {
	command string
	devices Devices
}

func NewFFMPEGCamera(command string, devices Devices) *FFMPEGCamera {
	if command == "" {
		command = "ffmpeg"
	}
	if devices.InputFormat == "" {
		devices.InputFormat = "v4l2"
	}
	if devices.Front == "" {
		devices.Front = "/dev/video0"
	}
	if devices.Back == "" {
		devices.Back = devices.Front
	}
	return &FFMPEGCamera{command: command, devices: devices}
}

func (c *FFMPEGCamera) Acquire(ctx context.Context, constraints ports.CameraConstraints) (ports.CameraStream, error) {
	cmd := exec.Command(c.command, c.args(constraints)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start camera capture: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	stream := newFrameStream(stdout)
	stream.process = cmd.Process
	stream.waitErr = waitErr
	stream.stderr = &stderr

	select {
	case err, ok := <-waitErr:
		if ok && err != nil {
			return nil, fmt.Errorf("camera capture exited early: %w: %s", err, trimSpace(stderr.String()))
		}
		return nil, errors.New("camera capture exited early")
	case <-ctx.Done():
		_ = stream.Stop()
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	return stream, nil
}

// SharesDevice reports whether both facings open the same capture device.
func (c *FFMPEGCamera) SharesDevice(a, b domain.Facing) bool {
	return c.device(a) == c.device(b)
}

func (c *FFMPEGCamera) device(facing domain.Facing) string {
	if facing == domain.FacingBack {
		return c.devices.Back
	}
	return c.devices.Front
}

func (c *FFMPEGCamera) args(constraints ports.CameraConstraints) []string {
	device := c.device(constraints.Facing)

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.devices.InputFormat,
		"-i", device,
	}
	if !constraints.Audio {
		args = append(args, "-an")
	}
	if constraints.IdealWidth > 0 && constraints.IdealHeight > 0 {
		// Ideal size only caps the output; smaller devices keep their native size.
		args = append(args, "-vf", fmt.Sprintf(
			"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease",
			constraints.IdealWidth, constraints.IdealHeight,
		))
	}
	return append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-")
}

type frameStream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	ready     chan struct{}
	readyOnce sync.Once
	readDone  chan struct{}

	mu     sync.RWMutex
	latest image.Image
	width  int
	height int

	stopOnce sync.Once
	stopErr  error
}

func newFrameStream(stdout io.ReadCloser) *frameStream {
	s := &frameStream{
		stdout:   stdout,
		ready:    make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *frameStream) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once the read loop has ended.
func (s *frameStream) Done() <-chan struct{} {
	return s.readDone
}

func (s *frameStream) Frame() (image.Image, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

func (s *frameStream) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

func (s *frameStream) readLoop() {
	defer close(s.readDone)

	scanner := bufio.NewScanner(s.stdout)
	scanner.Buffer(make([]byte, 0, 1<<20), maxFrameBytes)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		img, err := jpeg.Decode(bytes.NewReader(scanner.Bytes()))
		if err != nil {
			continue
		}
		bounds := img.Bounds()

		s.mu.Lock()
		s.latest = img
		s.width = bounds.Dx()
		s.height = bounds.Dy()
		s.mu.Unlock()

		s.readyOnce.Do(func() { close(s.ready) })
	}
}

func (s *frameStream) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)

			select {
			case err, ok := <-s.waitErr:
				if ok {
					s.stopErr = normalizeStopErr(err)
				}
			case <-time.After(1200 * time.Millisecond):
				_ = s.process.Kill()
				err, ok := <-s.waitErr
				if ok {
					s.stopErr = normalizeStopErr(err)
				}
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}
		<-s.readDone

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimSpace(s.stderr.String()))
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimSpace(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
