package snapwatch_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tauraamui/snapwatch/pkg/configdef"
	"github.com/tauraamui/snapwatch/pkg/detect"
	"github.com/tauraamui/snapwatch/pkg/video/videobackend"
	"github.com/tauraamui/snapwatch/pkg/video/videoframe"
)

type testConfigResolver struct {
	resolveConfigs func() (configdef.Values, error)
}

func (tcr testConfigResolver) Resolve() (configdef.Values, error) {
	if tcr.resolveConfigs == nil {
		return configdef.Values{}, nil
	}
	return tcr.resolveConfigs()
}

func testValues(address string) configdef.Values {
	return configdef.Values{
		VideoBackend:  "image",
		Camera:        configdef.Camera{Address: address, TimeoutSeconds: 2},
		LiveView:      configdef.View{Title: "live transmission", QuitKey: "q", PollDelayMS: 1},
		DetectionView: configdef.View{Title: "detection", QuitKey: "d", PollDelayMS: 1},
		Detector:      configdef.Detector{Kind: "none", Confidence: 0.5, NMSThreshold: 0.3, InputSize: 416},
	}
}

func solidJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func serveFrames(t *testing.T, frame []byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(frame)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// recordingWindow keeps a copy of the last frame it was shown and reports
// quit once it has been polled quitAt times, zero never quits.
type recordingWindow struct {
	mu     sync.Mutex
	title  string
	quitAt int
	polls  int
	shown  int
	closes int
	last   *image.RGBA
}

func (w *recordingWindow) Title() string { return w.title }

func (w *recordingWindow) Show(frame videoframe.NoCloser) error {
	img, ok := frame.DataRef().(*image.RGBA)
	if !ok {
		return videobackend.ErrDisplay
	}
	cp := image.NewRGBA(img.Bounds())
	copy(cp.Pix, img.Pix)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.shown++
	w.last = cp
	return nil
}

func (w *recordingWindow) PollQuit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.polls++
	return w.quitAt > 0 && w.polls >= w.quitAt
}

func (w *recordingWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closes++
	return nil
}

func (w *recordingWindow) lastFrame() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *recordingWindow) closeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closes
}

// recordingBackend decodes and annotates with the pure Go backend and
// hands out a recording window per title.
type recordingBackend struct {
	videobackend.Backend
	mu      sync.Mutex
	quitAt  map[string]int
	windows map[string]*recordingWindow
}

func newRecordingBackend(quitAt map[string]int) *recordingBackend {
	return &recordingBackend{
		Backend: videobackend.Image(videobackend.Options{}),
		quitAt:  quitAt,
		windows: map[string]*recordingWindow{},
	}
}

func (b *recordingBackend) NewWindow(settings videobackend.WindowSettings) videobackend.Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := &recordingWindow{title: settings.Title, quitAt: b.quitAt[settings.Title]}
	b.windows[settings.Title] = w
	return w
}

func (b *recordingBackend) window(title string) *recordingWindow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.windows[title]
}

type stubDetector struct {
	mu         sync.Mutex
	detections []detect.Detection
	closed     int
}

func (d *stubDetector) Detect(videoframe.NoCloser) ([]detect.Detection, error) {
	return d.detections, nil
}

func (d *stubDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

type failingSource struct {
	err error
}

func (f failingSource) UUID() string { return "failing-source" }

func (f failingSource) Address() string { return "http://unreachable/cam-hi.jpg" }

func (f failingSource) Fetch(context.Context) ([]byte, error) { return nil, f.err }
