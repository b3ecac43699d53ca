package videobackend

import (
	"sync"

	"github.com/tauraamui/snapwatch/pkg/detect"
	"github.com/tauraamui/snapwatch/pkg/video/videoframe"
	"gocv.io/x/gocv"
)

type openCVFrame struct {
	isClosed bool
	mat      gocv.Mat
}

func (frame *openCVFrame) DataRef() interface{} {
	return &frame.mat
}

func (frame *openCVFrame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: frame.mat.Cols(), H: frame.mat.Rows()}
}

func (frame *openCVFrame) Clone() videoframe.Frame {
	return &openCVFrame{mat: frame.mat.Clone()}
}

func (frame *openCVFrame) Close() {
	if !frame.isClosed {
		frame.mat.Close()
		frame.isClosed = true
	}
}

type openCVBackend struct {
	opts    Options
	pressed *pressedKeys
}

const (
	captionFont      = gocv.FontHersheySimplex
	captionScale     = 0.5
	captionThickness = 1
	boxThickness     = 2
)

func (b *openCVBackend) NewFrameFromBytes(d []byte) (videoframe.Frame, error) {
	if len(d) == 0 {
		return nil, decodeError("no bytes to decode")
	}

	mat, err := imDecode(d)
	if err != nil {
		return nil, decodeError("unable to decode %d bytes: %v", len(d), err)
	}

	if mat.Empty() {
		mat.Close()
		return nil, decodeError("%d bytes are not a valid image encoding", len(d))
	}

	return &openCVFrame{mat: mat}, nil
}

var imDecode = func(d []byte) (gocv.Mat, error) {
	return gocv.IMDecode(d, gocv.IMReadColor)
}

func (b *openCVBackend) Annotate(frame videoframe.NoCloser, detections []detect.Detection) (videoframe.Frame, error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, annotateError("must pass OpenCV frame to OpenCV annotate")
	}

	out := mat.Clone()
	for _, d := range detections {
		c := LabelColour(d.Label)
		gocv.Rectangle(&out, d.Box, c, boxThickness)

		text := caption(d, b.opts.WriteConfidence)
		size := gocv.GetTextSize(text, captionFont, captionScale, captionThickness)
		gocv.PutText(&out, text, captionOrigin(d.Box, size.Y), captionFont, captionScale, c, captionThickness)
	}

	return &openCVFrame{mat: out}, nil
}

func (b *openCVBackend) NewWindow(settings WindowSettings) Window {
	return &openCVWindow{sett: settings, pressed: b.pressed}
}

// pressedKeys latches key presses for every window of one backend.
// HighGUI hands a key to whichever thread calls WaitKey first, not to
// the focused window, so each window takes only its own quit key.
type pressedKeys struct {
	mu      sync.Mutex
	pending map[rune]bool
}

func newPressedKeys() *pressedKeys {
	return &pressedKeys{pending: map[rune]bool{}}
}

func (p *pressedKeys) press(key rune) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[key] = true
}

func (p *pressedKeys) take(key rune) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending[key] {
		return false
	}
	delete(p.pending, key)
	return true
}

type highGUIWindow interface {
	IMShow(gocv.Mat)
	WaitKey(int) int
	Close() error
}

type openCVWindow struct {
	sett     WindowSettings
	pressed  *pressedKeys
	window   highGUIWindow
	isClosed bool
}

var newWindow = func(title string) highGUIWindow {
	return gocv.NewWindow(title)
}

func (w *openCVWindow) Title() string {
	return w.sett.Title
}

// Show creates the named window on first use.
func (w *openCVWindow) Show(frame videoframe.NoCloser) error {
	if w.isClosed {
		return displayError("window [%s] is closed", w.sett.Title)
	}

	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return displayError("must pass OpenCV frame to OpenCV window [%s]", w.sett.Title)
	}

	if w.window == nil {
		w.window = newWindow(w.sett.Title)
	}
	w.window.IMShow(*mat)
	return nil
}

func (w *openCVWindow) PollQuit() bool {
	if w.window == nil || w.isClosed {
		return false
	}
	key := w.window.WaitKey(pollDelayMillis(w.sett.PollDelay))
	if key >= 0 {
		w.pressed.press(rune(key & 0xFF))
	}
	return w.pressed.take(w.sett.QuitKey)
}

func (w *openCVWindow) Close() error {
	if w.isClosed {
		return nil
	}
	w.isClosed = true
	if w.window == nil {
		return nil
	}
	return w.window.Close()
}
