package configdef

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gopkg.in/dealancer/validate.v2"
)

type Camera struct {
	Address        string `json:"address" validate:"empty=false"`
	TimeoutSeconds int    `json:"timeout_seconds" validate:"gte=0 & lte=300"`
}

func (c Camera) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type View struct {
	Title       string `json:"title" validate:"empty=false"`
	QuitKey     string `json:"quit_key" validate:"empty=false"`
	PollDelayMS int    `json:"poll_delay_ms" validate:"gte=1 & lte=1000"`
}

// Key returns the first rune of the configured quit key.
func (v View) Key() rune {
	r, _ := utf8.DecodeRuneInString(v.QuitKey)
	return r
}

func (v View) PollDelay() time.Duration {
	return time.Duration(v.PollDelayMS) * time.Millisecond
}

type Detector struct {
	Kind            string  `json:"kind" validate:"one_of=yolo,none"`
	Model           string  `json:"model"`
	Config          string  `json:"config"`
	Names           string  `json:"names"`
	Confidence      float32 `json:"confidence" validate:"gte=0 & lte=1"`
	NMSThreshold    float32 `json:"nms_threshold" validate:"gte=0 & lte=1"`
	InputSize       int     `json:"input_size" validate:"gte=32 & lte=2048"`
	WriteConfidence bool    `json:"write_confidence"`
}

type Values struct {
	Debug         bool     `json:"debug"`
	LogLevel      string   `json:"log_level"`
	VideoBackend  string   `json:"video_backend" validate:"one_of=opencv,image"`
	Camera        Camera   `json:"camera"`
	LiveView      View     `json:"live_view"`
	DetectionView View     `json:"detection_view"`
	Detector      Detector `json:"detector"`
}

func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return err
	}
	return v.Validate()
}

func (v Values) Validate() error {
	const validationErrorHeader = "validation failed: %w"
	if v.LiveView.Title == v.DetectionView.Title {
		return fmt.Errorf(validationErrorHeader, errors.New("view titles must be unique"))
	}
	if !isSingleRune(v.LiveView.QuitKey) || !isSingleRune(v.DetectionView.QuitKey) {
		return fmt.Errorf(validationErrorHeader, errors.New("quit keys must be a single character"))
	}
	if v.LiveView.Key() == v.DetectionView.Key() {
		return fmt.Errorf(validationErrorHeader, errors.New("quit keys must differ between views"))
	}
	if v.Detector.Kind == "yolo" && (len(v.Detector.Model) == 0 || len(v.Detector.Names) == 0) {
		return fmt.Errorf(validationErrorHeader, errors.New("yolo detector requires model and names files"))
	}
	return nil
}

func isSingleRune(s string) bool {
	return utf8.RuneCountInString(s) == 1
}
