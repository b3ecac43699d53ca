package detect

import (
	"fmt"
	"image"
	"strings"

	"github.com/spf13/afero"
	"github.com/tauraamui/snapwatch/pkg/log"
	"github.com/tauraamui/snapwatch/pkg/video/videoframe"
	"gocv.io/x/gocv"
)

var fs afero.Fs = afero.NewOsFs()

const (
	DefaultConfidence   = 0.5
	DefaultNMSThreshold = 0.3
	DefaultInputSize    = 416

	// YOLO output rows are [cx, cy, w, h, objectness, class scores...]
	rowScoresOffset = 5
)

type yoloDetector struct {
	net         gocv.Net
	outputNames []string
	classNames  []string
	sett        Settings
}

// NewYOLO loads a darknet or ONNX model through the OpenCV DNN module.
// It is not safe for concurrent use, each pipeline owns its own detector.
func NewYOLO(settings Settings) (Detector, error) {
	if settings.Confidence <= 0 {
		settings.Confidence = DefaultConfidence
	}
	if settings.NMSThreshold <= 0 {
		settings.NMSThreshold = DefaultNMSThreshold
	}
	if settings.InputSize <= 0 {
		settings.InputSize = DefaultInputSize
	}

	classNames, err := loadClassNames(settings.Names)
	if err != nil {
		return nil, inferenceError("unable to load class names from [%s]: %v", settings.Names, err)
	}

	log.Info("Loading detection model [%s]...", settings.Model)
	net := readNet(settings.Model, settings.Config)
	if net.Empty() {
		net.Close()
		return nil, inferenceError("unable to load detection model [%s]", settings.Model)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &yoloDetector{
		net:         net,
		outputNames: outputLayerNames(&net),
		classNames:  classNames,
		sett:        settings,
	}, nil
}

var readNet = func(model, config string) gocv.Net {
	return gocv.ReadNet(model, config)
}

func loadClassNames(path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	names := parseClassNames(string(data))
	if len(names) == 0 {
		return nil, fmt.Errorf("no class names in %s", path)
	}
	return names, nil
}

func parseClassNames(content string) []string {
	names := []string{}
	for _, line := range strings.Split(content, "\n") {
		name := strings.TrimSpace(line)
		if len(name) == 0 {
			continue
		}
		names = append(names, name)
	}
	return names
}

func outputLayerNames(net *gocv.Net) []string {
	layers := net.GetLayerNames()
	names := []string{}
	for _, id := range net.GetUnconnectedOutLayers() {
		if id-1 < 0 || id-1 >= len(layers) {
			continue
		}
		names = append(names, layers[id-1])
	}
	return names
}

func (d *yoloDetector) Detect(frame videoframe.NoCloser) ([]Detection, error) {
	mat, release, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer release()

	if mat.Empty() {
		return nil, inferenceError("cannot run detection on empty frame")
	}

	size := d.sett.InputSize
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outputNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	if len(outputs) == 0 {
		return nil, inferenceError("model produced no outputs")
	}

	dimensions := frame.Dimensions()
	found := []candidate{}
	for _, out := range outputs {
		found = append(found, parseOutput(out, dimensions, d.sett.Confidence)...)
	}

	return d.suppress(found), nil
}

func (d *yoloDetector) suppress(found []candidate) []Detection {
	if len(found) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(found))
	scores := make([]float32, len(found))
	for i, c := range found {
		boxes[i] = c.box
		scores[i] = c.confidence
	}

	indices := gocv.NMSBoxes(boxes, scores, d.sett.Confidence, d.sett.NMSThreshold)
	detections := make([]Detection, 0, len(indices))
	for _, i := range indices {
		detections = append(detections, Detection{
			Box:        found[i].box,
			Label:      className(d.classNames, found[i].classID),
			Confidence: found[i].confidence,
		})
	}
	return detections
}

func (d *yoloDetector) Close() error {
	return d.net.Close()
}

// toMat returns the frame as a BGR mat plus the func releasing
// whatever had to be allocated for it.
func toMat(frame videoframe.NoCloser) (gocv.Mat, func(), error) {
	switch ref := frame.DataRef().(type) {
	case *gocv.Mat:
		return *ref, func() {}, nil
	case image.Image:
		mat, err := gocv.ImageToMatRGB(ref)
		if err != nil {
			return gocv.Mat{}, func() {}, inferenceError("unable to convert Go image into OpenCV mat: %v", err)
		}
		return mat, func() { mat.Close() }, nil
	default:
		return gocv.Mat{}, func() {}, inferenceError("unsupported frame data type %T", ref)
	}
}

func parseOutput(out gocv.Mat, dimensions videoframe.Dimensions, threshold float32) []candidate {
	found := []candidate{}
	cols := out.Cols()
	if cols <= rowScoresOffset {
		return found
	}

	row := make([]float32, cols)
	for i := 0; i < out.Rows(); i++ {
		for j := 0; j < cols; j++ {
			row[j] = out.GetFloatAt(i, j)
		}
		if c, ok := rowToCandidate(row, dimensions, threshold); ok {
			found = append(found, c)
		}
	}
	return found
}

type candidate struct {
	box        image.Rectangle
	classID    int
	confidence float32
}

// rowToCandidate scales one normalised YOLO row onto the frame and keeps it
// only when its best class score clears the threshold.
func rowToCandidate(row []float32, dimensions videoframe.Dimensions, threshold float32) (candidate, bool) {
	if len(row) <= rowScoresOffset {
		return candidate{}, false
	}

	classID, best := 0, float32(0)
	for i, score := range row[rowScoresOffset:] {
		if score > best {
			classID, best = i, score
		}
	}
	if best <= threshold {
		return candidate{}, false
	}

	w, h := float32(dimensions.W), float32(dimensions.H)
	width := int(row[2] * w)
	height := int(row[3] * h)
	left := int(row[0]*w) - width/2
	top := int(row[1]*h) - height/2

	return candidate{
		box:        image.Rect(left, top, left+width, top+height),
		classID:    classID,
		confidence: best,
	}, true
}

func className(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return fmt.Sprintf("class %d", id)
}
