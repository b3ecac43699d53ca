package videobackend

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	// decoders registered for image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/tauraamui/snapwatch/pkg/detect"
	"github.com/tauraamui/snapwatch/pkg/log"
	"github.com/tauraamui/snapwatch/pkg/video/videoframe"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

type imageFrame struct {
	isClosed bool
	img      *image.RGBA
}

func (frame *imageFrame) DataRef() interface{} {
	return frame.img
}

func (frame *imageFrame) Dimensions() videoframe.Dimensions {
	b := frame.img.Bounds()
	return videoframe.Dimensions{W: b.Dx(), H: b.Dy()}
}

func (frame *imageFrame) Clone() videoframe.Frame {
	return &imageFrame{img: cloneImage(frame.img)}
}

func (frame *imageFrame) Close() {
	frame.isClosed = true
}

// NewImageFrame wraps an in-memory image as a frame of the image backend.
func NewImageFrame(img image.Image) videoframe.Frame {
	return &imageFrame{img: cloneImage(img)}
}

type imageBackend struct {
	opts Options
}

const captionFontSize = 13.0

func (b *imageBackend) NewFrameFromBytes(d []byte) (videoframe.Frame, error) {
	if len(d) == 0 {
		return nil, decodeError("no bytes to decode")
	}

	img, format, err := image.Decode(bytes.NewReader(d))
	if err != nil {
		return nil, decodeError("unable to decode %d bytes: %v", len(d), err)
	}

	log.Debug("Decoded %s frame of %d bytes", format, len(d))
	return &imageFrame{img: cloneImage(img)}, nil
}

func (b *imageBackend) Annotate(frame videoframe.NoCloser, detections []detect.Detection) (videoframe.Frame, error) {
	src, ok := frame.DataRef().(*image.RGBA)
	if !ok {
		return nil, annotateError("must pass image frame to image annotate")
	}

	out := cloneImage(src)
	if len(detections) == 0 {
		return &imageFrame{img: out}, nil
	}

	face, err := newCaptionFace()
	if err != nil {
		return nil, annotateError("unable to load caption font: %v", err)
	}
	defer face.Close()

	for _, d := range detections {
		c := LabelColour(d.Label)
		drawBox(out, d.Box, c, boxThickness)
		drawText(out, face, c, d.Box, caption(d, b.opts.WriteConfidence))
	}

	return &imageFrame{img: out}, nil
}

func (b *imageBackend) NewWindow(settings WindowSettings) Window {
	w := headlessWindow{sett: settings}
	if b.opts.Keys != nil {
		w.keys = b.opts.Keys.Listen()
	}
	return &w
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

// drawBox outlines r inwards by thickness pixels, skipping any
// pixel outside the canvas.
func drawBox(canvas *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	for i := 0; i < thickness; i++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setInBounds(canvas, x, r.Min.Y+i, c)
			setInBounds(canvas, x, r.Max.Y-1-i, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setInBounds(canvas, r.Min.X+i, y, c)
			setInBounds(canvas, r.Max.X-1-i, y, c)
		}
	}
}

func setInBounds(canvas *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(canvas.Bounds()) {
		canvas.SetRGBA(x, y, c)
	}
}

var (
	parseFontOnce sync.Once
	parsedFont    *truetype.Font
	parseFontErr  error
)

// newCaptionFace returns a fresh face per call, faces are not safe
// for concurrent use while the parsed font is.
func newCaptionFace() (font.Face, error) {
	parseFontOnce.Do(func() {
		parsedFont, parseFontErr = freetype.ParseFont(goregular.TTF)
	})
	if parseFontErr != nil {
		return nil, parseFontErr
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    captionFontSize,
		Hinting: font.HintingFull,
	}), nil
}

func drawText(canvas *image.RGBA, face font.Face, c color.RGBA, box image.Rectangle, text string) {
	fontDrawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(c),
		Face: face,
	}
	textHeight := face.Metrics().Ascent.Ceil()
	origin := captionOrigin(box, textHeight)
	fontDrawer.Dot = fixed.Point26_6{
		X: fixed.I(origin.X),
		Y: fixed.I(origin.Y),
	}
	fontDrawer.DrawString(text)
}

// headlessWindow stands in for an on-screen window where there is no
// display, quit keys come from the terminal.
type headlessWindow struct {
	sett     WindowSettings
	keys     KeyListener
	shown    int
	isClosed bool
}

func (w *headlessWindow) Title() string {
	return w.sett.Title
}

func (w *headlessWindow) Show(frame videoframe.NoCloser) error {
	if w.isClosed {
		return displayError("window [%s] is closed", w.sett.Title)
	}
	if _, ok := frame.DataRef().(*image.RGBA); !ok {
		return displayError("must pass image frame to headless window [%s]", w.sett.Title)
	}
	w.shown++
	dimensions := frame.Dimensions()
	log.Debug("[%s] frame %d: %dx%d", w.sett.Title, w.shown, dimensions.W, dimensions.H)
	return nil
}

func (w *headlessWindow) PollQuit() bool {
	delay := time.Duration(pollDelayMillis(w.sett.PollDelay)) * time.Millisecond
	if w.keys == nil || w.isClosed {
		time.Sleep(delay)
		return false
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case k, ok := <-w.keys.Keys():
			if !ok {
				w.keys = nil
				return false
			}
			if k == w.sett.QuitKey {
				return true
			}
		case <-timer.C:
			return false
		}
	}
}

func (w *headlessWindow) Close() error {
	if w.isClosed {
		return nil
	}
	w.isClosed = true
	if w.keys != nil {
		w.keys.Close()
	}
	return nil
}
