package usecase

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"

	"coachcam/internal/domain"
	"coachcam/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type cameraEvent struct {
	state  domain.CameraState
	facing domain.Facing
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu       sync.Mutex
	cameras  []cameraEvent
	sessions []string
	channels []domain.ChannelState
	tips     []string
	previews int
	grids    [][]domain.GridLine
	moves    []domain.SubtitlePosition
	photos   []string
	errors   []errorEvent
}

func (f *fakeEventSink) CameraStateChanged(state domain.CameraState, facing domain.Facing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cameras = append(f.cameras, cameraEvent{state: state, facing: facing})
}

func (f *fakeEventSink) SessionChanged(label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, label)
}

func (f *fakeEventSink) ChannelStateChanged(state domain.ChannelState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, state)
}

func (f *fakeEventSink) TipReceived(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tips = append(f.tips, text)
}

func (f *fakeEventSink) FramePreview(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews++
}

func (f *fakeEventSink) GridChanged(lines []domain.GridLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grids = append(f.grids, lines)
}

func (f *fakeEventSink) SubtitleMoved(pos domain.SubtitlePosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, pos)
}

func (f *fakeEventSink) PhotoTaken(dataURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, dataURL)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errorEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotTips() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tips...)
}

func (f *fakeEventSink) snapshotSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sessions...)
}

func (f *fakeEventSink) snapshotChannels() []domain.ChannelState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChannelState(nil), f.channels...)
}

func (f *fakeEventSink) snapshotErrors() []errorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errorEvent(nil), f.errors...)
}

func (f *fakeEventSink) lastCamera() cameraEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cameras) == 0 {
		return cameraEvent{}
	}
	return f.cameras[len(f.cameras)-1]
}

func (f *fakeEventSink) previewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.previews
}

func (f *fakeEventSink) lastMove() domain.SubtitlePosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.moves) == 0 {
		return domain.SubtitlePosition{}
	}
	return f.moves[len(f.moves)-1]
}

type fakeStream struct {
	width  int
	height int
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	frame   image.Image
	stopped bool
}

func newFakeStream(width, height int, ready bool) *fakeStream {
	s := &fakeStream{width: width, height: height, ready: make(chan struct{}), done: make(chan struct{})}
	if ready {
		s.frame = image.NewRGBA(image.Rect(0, 0, width, height))
		close(s.ready)
	}
	return s
}

func (s *fakeStream) Ready() <-chan struct{} { return s.ready }

func (s *fakeStream) Done() <-chan struct{} { return s.done }

// end simulates the device going away.
func (s *fakeStream) end() {
	s.once.Do(func() { close(s.done) })
}

func (s *fakeStream) Frame() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frame != nil
}

func (s *fakeStream) Size() (int, int) { return s.width, s.height }

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.end()
	return nil
}

func (s *fakeStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeCamera struct {
	width    int
	height   int
	notReady bool
	// endEarly makes new streams end without ever producing a frame.
	endEarly     bool
	sharedDevice bool

	mu      sync.Mutex
	facings []domain.Facing
	streams []*fakeStream
	// liveAtAcquire counts unstopped streams at each Acquire call.
	liveAtAcquire []int
	err           error
	failNext      error
	// hold blocks acquisition number holdCall (the first by default) until
	// closed.
	hold     chan struct{}
	holdCall int
	entered  chan struct{}
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{width: 1280, height: 720, entered: make(chan struct{}, 16)}
}

func (c *fakeCamera) Acquire(_ context.Context, constraints ports.CameraConstraints) (ports.CameraStream, error) {
	c.mu.Lock()
	c.facings = append(c.facings, constraints.Facing)
	live := 0
	for _, s := range c.streams {
		if !s.Stopped() {
			live++
		}
	}
	c.liveAtAcquire = append(c.liveAtAcquire, live)
	var hold chan struct{}
	if len(c.facings) == max(c.holdCall, 1) {
		hold = c.hold
	}
	err := c.err
	if c.failNext != nil {
		err, c.failNext = c.failNext, nil
	}
	var stream *fakeStream
	if err == nil {
		stream = newFakeStream(c.width, c.height, !c.notReady && !c.endEarly)
		if c.endEarly {
			stream.end()
		}
		c.streams = append(c.streams, stream)
	}
	c.mu.Unlock()

	c.entered <- struct{}{}
	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *fakeCamera) SharesDevice(a, b domain.Facing) bool {
	return a == b || c.sharedDevice
}

func (c *fakeCamera) holdAcquisition(call int) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hold = make(chan struct{})
	c.holdCall = call
	return c.hold
}

func (c *fakeCamera) liveCounts() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.liveAtAcquire...)
}

func (c *fakeCamera) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// failOnce fails only the next acquisition.
func (c *fakeCamera) failOnce(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = err
}

func (c *fakeCamera) requested() []domain.Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Facing(nil), c.facings...)
}

func (c *fakeCamera) acquired() []*fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeStream(nil), c.streams...)
}

type fakeSessions struct {
	mu       sync.Mutex
	requests []ports.SessionRequest
	results  []domain.RemoteSession
	err      error
	hold     chan struct{}
	entered  chan struct{}
}

func newFakeSessions(results ...domain.RemoteSession) *fakeSessions {
	return &fakeSessions{results: results, entered: make(chan struct{}, 16)}
}

func (s *fakeSessions) CreateSession(ctx context.Context, req ports.SessionRequest) (domain.RemoteSession, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	index := len(s.requests) - 1
	hold, err := s.hold, s.err
	s.mu.Unlock()

	s.entered <- struct{}{}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return domain.RemoteSession{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.RemoteSession{}, err
	}
	if len(s.results) == 0 {
		return domain.RemoteSession{}, errors.New("no scripted session")
	}
	if index >= len(s.results) {
		index = len(s.results) - 1
	}
	return s.results[index], nil
}

func (s *fakeSessions) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSessions) snapshotRequests() []ports.SessionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SessionRequest(nil), s.requests...)
}

type fakeConn struct {
	messages chan []byte
	done     chan struct{}

	mu      sync.Mutex
	sent    [][]byte
	sendErr error
	closed  bool
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{messages: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Messages() <-chan []byte { return c.messages }

func (c *fakeConn) Done() <-chan struct{} { return c.done }

// Close ends the message stream as a real socket does.
func (c *fakeConn) Close() error {
	c.remoteClose()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) remoteClose() {
	c.once.Do(func() {
		close(c.messages)
		close(c.done)
	})
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) lastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(_ context.Context, url string) (ports.ChannelConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDialer) conn(index int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index >= len(d.conns) {
		return nil
	}
	return d.conns[index]
}

type spokenUtterance struct {
	ctx   context.Context
	text  string
	voice ports.Voice
}

type fakeSynth struct {
	voices []ports.Voice

	mu      sync.Mutex
	spoken  []spokenUtterance
	cancels int
	err     error
}

func (s *fakeSynth) Voices(context.Context) ([]ports.Voice, error) {
	return s.voices, nil
}

func (s *fakeSynth) Speak(ctx context.Context, text string, voice ports.Voice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.spoken = append(s.spoken, spokenUtterance{ctx: ctx, text: text, voice: voice})
	return nil
}

func (s *fakeSynth) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
}

func (s *fakeSynth) utterances() []spokenUtterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spokenUtterance(nil), s.spoken...)
}

type fakeRemoteSpeech struct {
	mu       sync.Mutex
	requests []ports.SpeechRequest
	err      error
	// blockOn makes requests for this text wait for cancellation.
	blockOn string
}

func (r *fakeRemoteSpeech) SynthesizeSpeech(ctx context.Context, req ports.SpeechRequest) (string, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	err, blockOn := r.err, r.blockOn
	r.mu.Unlock()

	if blockOn != "" && req.Text == blockOn {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return "https://cdn.example/" + strings.ReplaceAll(req.Text, " ", "-") + ".mp3", nil
}

func (r *fakeRemoteSpeech) snapshotRequests() []ports.SpeechRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.SpeechRequest(nil), r.requests...)
}

type fakePlayer struct {
	mu     sync.Mutex
	played []string
}

func (p *fakePlayer) Play(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, url)
	return nil
}

func (p *fakePlayer) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

type upperRewriter struct{}

func (upperRewriter) Rewrite(text string) string { return strings.ToUpper(text) }
