package videobackend

import (
	"errors"
	"time"

	"github.com/tauraamui/snapwatch/pkg/detect"
	"github.com/tauraamui/snapwatch/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

var (
	ErrDecode   = errors.New("frame decode failure")
	ErrAnnotate = errors.New("frame annotate failure")
	ErrDisplay  = errors.New("frame display failure")
)

const (
	DecodeKind   = xerror.Kind("decode")
	AnnotateKind = xerror.Kind("annotate")
	DisplayKind  = xerror.Kind("display")
)

type Backend interface {
	// NewFrameFromBytes decodes one encoded still image.
	NewFrameFromBytes([]byte) (videoframe.Frame, error)
	// Annotate returns a copy of the frame with each detection drawn onto it.
	Annotate(videoframe.NoCloser, []detect.Detection) (videoframe.Frame, error)
	NewWindow(WindowSettings) Window
}

type WindowSettings struct {
	Title     string
	QuitKey   rune
	PollDelay time.Duration
}

type Window interface {
	Title() string
	Show(videoframe.NoCloser) error
	// PollQuit waits at most the poll delay and reports whether
	// the quit key was pressed during that wait.
	PollQuit() bool
	Close() error
}

// KeyListener delivers key presses to a single window.
type KeyListener interface {
	Keys() <-chan rune
	Close()
}

type KeySource interface {
	Listen() KeyListener
}

type Options struct {
	WriteConfidence bool
	// Keys feeds headless windows, nil means they never see a quit key.
	Keys KeySource
}

func Default(opts Options) Backend {
	return OpenCV(opts)
}

func OpenCV(opts Options) Backend {
	return &openCVBackend{opts: opts, pressed: newPressedKeys()}
}

func Image(opts Options) Backend {
	return &imageBackend{opts: opts}
}

func Resolve(t string, opts Options) Backend {
	switch t {
	case "image":
		return Image(opts)
	default:
		return Default(opts)
	}
}

func decodeError(format string, a ...interface{}) error {
	return kindError(ErrDecode, DecodeKind, format, a...)
}

func annotateError(format string, a ...interface{}) error {
	return kindError(ErrAnnotate, AnnotateKind, format, a...)
}

func displayError(format string, a ...interface{}) error {
	return kindError(ErrDisplay, DisplayKind, format, a...)
}

func kindError(sentinel error, kind xerror.Kind, format string, a ...interface{}) error {
	return xerror.Errorf("%w: "+format, append([]interface{}{sentinel}, a...)...).AsKind(kind)
}

func pollDelayMillis(d time.Duration) int {
	ms := int(d / time.Millisecond)
	// a zero delay blocks forever in HighGUI
	if ms < 1 {
		return 1
	}
	return ms
}
