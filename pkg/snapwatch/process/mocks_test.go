package process_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"

	"github.com/tauraamui/snapwatch/pkg/detect"
	"github.com/tauraamui/snapwatch/pkg/video/videobackend"
	"github.com/tauraamui/snapwatch/pkg/video/videoframe"
)

func solidJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type mockSource struct {
	mu        sync.Mutex
	address   string
	fetches   int
	fetchFunc func(ctx context.Context, call int) ([]byte, error)
	onFetch   func()
}

func (m *mockSource) UUID() string { return "mock-source" }

func (m *mockSource) Address() string { return m.address }

func (m *mockSource) Fetch(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	m.fetches++
	call := m.fetches
	m.mu.Unlock()
	if m.onFetch != nil {
		m.onFetch()
	}
	return m.fetchFunc(ctx, call)
}

func (m *mockSource) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

type mockWindow struct {
	mu       sync.Mutex
	title    string
	shown    int
	polls    int
	closes   int
	quitAt   int
	showErr  error
	lastDims videoframe.Dimensions
}

func (m *mockWindow) Title() string { return m.title }

func (m *mockWindow) Show(frame videoframe.NoCloser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.showErr != nil {
		return m.showErr
	}
	m.shown++
	m.lastDims = frame.Dimensions()
	return nil
}

func (m *mockWindow) PollQuit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	return m.quitAt > 0 && m.polls >= m.quitAt
}

func (m *mockWindow) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *mockWindow) counts() (shown, polls, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shown, m.polls, m.closes
}

type trackedFrame struct {
	videoframe.Frame
	once    sync.Once
	onClose func()
}

func (f *trackedFrame) Close() {
	f.once.Do(func() {
		f.Frame.Close()
		f.onClose()
	})
}

// spyBackend decodes and annotates with the pure Go backend, counts
// frames still open and hands out a single mock window.
type spyBackend struct {
	videobackend.Backend
	window *mockWindow

	mu        sync.Mutex
	open      int
	annotated [][]detect.Detection
}

func newSpyBackend(window *mockWindow) *spyBackend {
	return &spyBackend{Backend: videobackend.Image(videobackend.Options{}), window: window}
}

func (b *spyBackend) track(f videoframe.Frame) videoframe.Frame {
	b.mu.Lock()
	b.open++
	b.mu.Unlock()
	return &trackedFrame{Frame: f, onClose: func() {
		b.mu.Lock()
		b.open--
		b.mu.Unlock()
	}}
}

func (b *spyBackend) openFrames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *spyBackend) NewFrameFromBytes(d []byte) (videoframe.Frame, error) {
	f, err := b.Backend.NewFrameFromBytes(d)
	if err != nil {
		return nil, err
	}
	return b.track(f), nil
}

func (b *spyBackend) Annotate(frame videoframe.NoCloser, detections []detect.Detection) (videoframe.Frame, error) {
	b.mu.Lock()
	b.annotated = append(b.annotated, detections)
	b.mu.Unlock()
	f, err := b.Backend.Annotate(frame, detections)
	if err != nil {
		return nil, err
	}
	return b.track(f), nil
}

func (b *spyBackend) NewWindow(settings videobackend.WindowSettings) videobackend.Window {
	b.window.title = settings.Title
	return b.window
}

type mockDetector struct {
	mu         sync.Mutex
	detects    int
	closes     int
	detectFunc func(videoframe.NoCloser) ([]detect.Detection, error)
}

func (m *mockDetector) Detect(frame videoframe.NoCloser) ([]detect.Detection, error) {
	m.mu.Lock()
	m.detects++
	m.mu.Unlock()
	return m.detectFunc(frame)
}

func (m *mockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *mockDetector) detections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detects
}

func (m *mockDetector) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
