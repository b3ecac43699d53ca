package detect

import (
	"errors"
	"fmt"
	"image"

	"github.com/tauraamui/snapwatch/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

// ErrInference is matched by every error a Detector returns.
var ErrInference = errors.New("detection inference failure")

const InferenceKind = xerror.Kind("inference")

// Detection is one recognised object within a single frame.
type Detection struct {
	Box        image.Rectangle
	Label      string
	Confidence float32
}

func (d Detection) String() string {
	return fmt.Sprintf("%s (%.2f) at %v", d.Label, d.Confidence, d.Box)
}

type Detector interface {
	Detect(videoframe.NoCloser) ([]Detection, error)
	Close() error
}

type Settings struct {
	Kind         string
	Model        string
	Config       string
	Names        string
	Confidence   float32
	NMSThreshold float32
	InputSize    int
}

func Resolve(settings Settings) (Detector, error) {
	switch settings.Kind {
	case "none":
		return Nop(), nil
	default:
		return NewYOLO(settings)
	}
}

func Nop() Detector {
	return nopDetector{}
}

type nopDetector struct{}

func (nopDetector) Detect(videoframe.NoCloser) ([]Detection, error) { return nil, nil }

func (nopDetector) Close() error { return nil }

func inferenceError(format string, a ...interface{}) error {
	return xerror.Errorf("%w: "+format, append([]interface{}{ErrInference}, a...)...).AsKind(InferenceKind)
}
