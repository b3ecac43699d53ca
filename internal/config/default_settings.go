package config

import "github.com/tauraamui/snapwatch/pkg/configdef"

const (
	DefaultCameraAddress = "http://192.168.10.162/cam-hi.jpg"
	LiveViewTitle        = "live transmission"
	DetectionViewTitle   = "detection"
)

// defaultValues are used as the base that a config file, when present,
// is unmarshalled over.
func defaultValues() configdef.Values {
	return configdef.Values{
		VideoBackend: "opencv",
		Camera: configdef.Camera{
			Address:        DefaultCameraAddress,
			TimeoutSeconds: 10,
		},
		LiveView: configdef.View{
			Title: LiveViewTitle, QuitKey: "q", PollDelayMS: 5,
		},
		DetectionView: configdef.View{
			Title: DetectionViewTitle, QuitKey: "d", PollDelayMS: 5,
		},
		Detector: configdef.Detector{
			Kind:         "yolo",
			Model:        "yolov3.weights",
			Config:       "yolov3.cfg",
			Names:        "coco.names",
			Confidence:   0.5,
			NMSThreshold: 0.3,
			InputSize:    416,
		},
	}
}
